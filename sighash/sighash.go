// Package sighash reconstructs the exact byte sequence a legacy Bitcoin
// signer hashed before signing a transaction input, and its double-SHA-256
// digest. It implements the pre-segwit algorithm only: the per-input script
// zeroing pattern with no BIP-143 value commitment, matching the decoder in
// bitcoin.SignatureFromScriptBytes and the single hash-type byte it splits
// off. Segwit/BIP-143 digests and alternative sighash variants are out of
// scope; the teacher's own txbuilder.SignatureHash implements that algorithm
// and is not reused here.
package sighash

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chainforensics/sigharvest/bitcoin"
	"github.com/chainforensics/sigharvest/wire"
)

// estimateSize returns a rough pre-sizing hint for the preimage buffer so
// typical transactions don't force a reallocation while it is built.
func estimateSize(tx *wire.MsgTx, subscriptLen int) int {
	n := 4 + 9 + 9 + 8 // version + two varints (worst case) + locktime+hashtype
	for range tx.TxIn {
		n += 36 + 9 + 0 + 4 // outpoint + varint + (script added below) + sequence
	}
	n += subscriptLen
	for _, out := range tx.TxOut {
		n += out.SerializeSize()
	}
	return n
}

// Digest reconstructs the legacy sighash digest for input index of tx,
// spending an output whose locking script is subscript (empty if the
// previous output could not be resolved), signed with the given hash-type
// byte. It returns an error only if index is out of range for tx's inputs.
func Digest(tx *wire.MsgTx, index int, subscript []byte, hashType bitcoin.HashType) (*bitcoin.Hash32, error) {
	buf := bytes.NewBuffer(make([]byte, 0, estimateSize(tx, len(subscript))))
	if err := writePreimage(buf, tx, index, subscript, hashType); err != nil {
		return nil, err
	}

	digest := bitcoin.Hash32{}
	copy(digest[:], bitcoin.DoubleSha256(buf.Bytes()))
	return &digest, nil
}

// writePreimage writes the "to-be-signed" byte sequence M to w: version,
// input count, each input with its script zeroed except at index (where it
// carries subscript), output count, outputs unchanged, locktime, and the
// hash-type byte zero-extended to 32 bits.
func writePreimage(w io.Writer, tx *wire.MsgTx, index int, subscript []byte, hashType bitcoin.HashType) error {
	if index < 0 || index >= len(tx.TxIn) {
		return fmt.Errorf("sighash: input index %d out of range for %d inputs", index, len(tx.TxIn))
	}

	if err := binary.Write(w, binary.LittleEndian, tx.Version); err != nil {
		return err
	}

	if err := wire.WriteVarInt(w, uint64(len(tx.TxIn))); err != nil {
		return err
	}

	for j, in := range tx.TxIn {
		if err := in.PreviousOutPoint.Serialize(w); err != nil {
			return err
		}

		script := subscript
		if j != index {
			script = nil
		}
		if err := wire.WriteVarBytes(w, script); err != nil {
			return err
		}

		if err := binary.Write(w, binary.LittleEndian, in.Sequence); err != nil {
			return err
		}
	}

	if err := wire.WriteVarInt(w, uint64(len(tx.TxOut))); err != nil {
		return err
	}

	for _, out := range tx.TxOut {
		if err := out.Serialize(w); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.LittleEndian, tx.LockTime); err != nil {
		return err
	}

	return binary.Write(w, binary.LittleEndian, uint32(hashType))
}
