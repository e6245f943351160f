// Package oracle adapts external previous-output lookups for the sighash
// reconstructor. The extractor never maintains its own UTXO index; it asks a
// TxSource for the outputs of a previous transaction and treats a miss as
// non-fatal, exactly as spec.md's oracle adapter requires.
package oracle

import (
	"context"

	"github.com/chainforensics/sigharvest/bitcoin"

	"github.com/pkg/errors"
)

// SubSystem is used by the logger package.
const SubSystem = "Oracle"

// ErrNotFound is returned by a TxSource when it has no knowledge of the
// requested transaction. Callers treat this as a miss, not a fatal error.
var ErrNotFound = errors.New("Previous output not found")

// TxOutput is the subset of a transaction output the sighash reconstructor
// needs: the locking script it is paying to, and the value it carries.
type TxOutput struct {
	Index         uint32
	Value         uint64
	LockingScript bitcoin.Script
}

// TxSource resolves the outputs of a previously seen transaction, identified
// by its internal (little-endian) txid. Implementations may be backed by an
// RPC node, an on-disk index, a cache, or a fixture map in tests.
type TxSource interface {
	GetOutputs(ctx context.Context, txid bitcoin.Hash32) ([]TxOutput, error)
}

// Output returns the output at index from the result of GetOutputs, or
// ErrNotFound if the source has no record of the transaction or the index is
// out of range. This is the shape the extractor actually consumes: "what did
// output N of txid look like".
func Output(ctx context.Context, source TxSource, txid bitcoin.Hash32, index uint32) (TxOutput, error) {
	outputs, err := source.GetOutputs(ctx, txid)
	if err != nil {
		return TxOutput{}, errors.Wrap(err, "get outputs")
	}

	if int(index) >= len(outputs) {
		return TxOutput{}, errors.Wrapf(ErrNotFound, "index %d/%d : %s", index, len(outputs), txid)
	}

	return outputs[index], nil
}

// FixtureSource is a map-backed TxSource for tests, grounded on the teacher's
// MockRpcNode: the whole previous transaction's outputs are stored under its
// txid and returned verbatim.
type FixtureSource struct {
	outputs map[bitcoin.Hash32][]TxOutput
}

// NewFixtureSource returns an empty FixtureSource.
func NewFixtureSource() *FixtureSource {
	return &FixtureSource{outputs: make(map[bitcoin.Hash32][]TxOutput)}
}

// Add registers the outputs of txid for later lookup.
func (f *FixtureSource) Add(txid bitcoin.Hash32, outputs []TxOutput) {
	f.outputs[txid] = outputs
}

// GetOutputs implements TxSource.
func (f *FixtureSource) GetOutputs(ctx context.Context, txid bitcoin.Hash32) ([]TxOutput, error) {
	outputs, ok := f.outputs[txid]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, txid.String())
	}
	return outputs, nil
}
