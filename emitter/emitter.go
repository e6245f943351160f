// Package emitter formats and writes one textual record per extracted
// signature to an append-only sink, publishing the finished batch under a
// height-range filename once a run completes.
package emitter

import (
	"context"
	"fmt"

	"github.com/chainforensics/sigharvest/bitcoin"
)

// SubSystem is used by the logger package.
const SubSystem = "Emitter"

// fieldSeparator and lineTerminator fix the CSV-like record format: fields
// separated by a semicolon, one record per line.
const (
	fieldSeparator = ";"
	lineTerminator = "\n"
	tempFileName   = "signatures.csv.tmp"

	// scalarByteWidth is the width R and S are zero-padded to before hex
	// encoding, the secp256k1 group order's byte length. big.Int.Bytes
	// strips leading zero bytes, which would silently shorten the hex
	// encoding of a scalar with a leading zero byte.
	scalarByteWidth = 32
)

// Record is one decoded signature, ready to be written out.
type Record struct {
	R              string
	S              string
	PubKey         string
	TxID           string
	MessageHash    string
	BlockTimestamp uint32
}

// NewRecord builds a Record from the decoded signature components.
func NewRecord(sig bitcoin.Signature, pubKey []byte, txid, messageHash bitcoin.Hash32,
	blockTimestamp uint32) Record {

	var rBuf, sBuf [scalarByteWidth]byte
	sig.R.FillBytes(rBuf[:])
	sig.S.FillBytes(sBuf[:])

	return Record{
		R:              fmt.Sprintf("%x", rBuf[:]),
		S:              fmt.Sprintf("%x", sBuf[:]),
		PubKey:         fmt.Sprintf("%x", pubKey),
		TxID:           txid.String(),
		MessageHash:    messageHash.String(),
		BlockTimestamp: blockTimestamp,
	}
}

// Line renders the record in the fixed field order and separator spec.md
// names: r;s;pubkey;txid;message_hash;block_timestamp.
func (r Record) Line() string {
	return r.R + fieldSeparator + r.S + fieldSeparator + r.PubKey + fieldSeparator +
		r.TxID + fieldSeparator + r.MessageHash + fieldSeparator +
		fmt.Sprintf("%d", r.BlockTimestamp) + lineTerminator
}

// Sink is the outbound record destination. Append is called once per
// decoded signature; Flush pushes buffered records out early and is not
// called by extract.Driver during a run; Complete is called exactly once,
// at the end of a run, to flush and publish the batch under its final name.
type Sink interface {
	Append(ctx context.Context, record Record) error
	Flush(ctx context.Context) error
	Complete(ctx context.Context, startHeight, endHeight uint64) error
}
