// Package extract drives the per-block, per-transaction, per-input walk that
// turns raw blocks into signature records: classify each unlocking script,
// decode the signature it carries, resolve the output it spends through an
// oracle, reconstruct the legacy sighash digest, and append the result to a
// sink.
package extract

import (
	"context"

	"github.com/chainforensics/sigharvest/bitcoin"
	"github.com/chainforensics/sigharvest/emitter"
	"github.com/chainforensics/sigharvest/logger"
	"github.com/chainforensics/sigharvest/oracle"
	"github.com/chainforensics/sigharvest/sighash"
	"github.com/chainforensics/sigharvest/wire"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// SubSystem is used by the logger package.
const SubSystem = "Extract"

// Counters accumulates run totals, surfaced to the caller when a run
// completes.
type Counters struct {
	Blocks           uint64
	Transactions     uint64
	Inputs           uint64
	Outputs          uint64
	SignaturesFound  uint64
	OutputsNotFound  uint64
	NonStandardInput uint64
	InvalidSignature uint64
}

// Driver walks blocks in height order, decoding signatures from every
// non-coinbase input and appending one record per signature to Sink. It
// holds no in-memory index of prior outputs; all lookups go through Source.
type Driver struct {
	Source oracle.TxSource
	Sink   emitter.Sink

	traceID  string
	counters Counters
}

// NewDriver returns a Driver ready to process a run. A fresh trace
// identifier is generated for log correlation across a run's blocks.
func NewDriver(source oracle.TxSource, sink emitter.Sink) *Driver {
	return &Driver{
		Source:  source,
		Sink:    sink,
		traceID: uuid.New().String(),
	}
}

// Start logs the beginning of a run. height is the first block height that
// will be processed.
func (d *Driver) Start(ctx context.Context, height uint64) {
	ctx = logger.ContextWithLogTrace(ctx, d.traceID)
	logger.Info(ctx, "Starting extraction at height %d", height)
}

// Block processes every transaction in block, in order, and every input and
// output of each, in order. Coinbase transactions are counted like any
// other but excluded from signature extraction, since they carry no
// unlocking script worth classifying. Errors resolving a previous output
// are non-fatal: they are counted and logged, and the input's record is
// still emitted with an empty subscript. An error appending to Sink is fatal and is returned
// immediately, matching spec.md's policy that sink failures abort the run.
func (d *Driver) Block(ctx context.Context, block *wire.Block, height uint64) error {
	ctx = logger.ContextWithLogTrace(ctx, d.traceID)
	d.counters.Blocks++

	for _, tx := range block.Txs {
		d.counters.Transactions++
		d.counters.Inputs += uint64(len(tx.TxIn))
		d.counters.Outputs += uint64(len(tx.TxOut))

		if tx.IsCoinBase() {
			continue
		}

		for index, in := range tx.TxIn {
			if err := d.processInput(ctx, tx, index, in, block.Header.Timestamp); err != nil {
				return errors.Wrap(err, "process input")
			}
		}
	}

	return nil
}

// processInput classifies one input's unlocking script and, if it carries a
// standard signature+pubkey pattern, resolves the spent output, rebuilds the
// sighash digest, and appends the resulting record. Any failure short of a
// sink error is recorded in the counters and swallowed.
func (d *Driver) processInput(ctx context.Context, tx *wire.MsgTx, index int, in *wire.TxIn,
	blockTimestamp uint32) error {

	pattern := bitcoin.ClassifyUnlockingScript(in.UnlockingScript)
	if pattern.Kind != bitcoin.ScriptPatternSignature {
		d.counters.NonStandardInput++
		return nil
	}

	sig, hashType, err := bitcoin.SignatureFromScriptBytes(pattern.Signature)
	if err != nil {
		d.counters.InvalidSignature++
		logger.Warn(ctx, "Invalid signature encoding : input %d of %s : %s", index,
			tx.TxHash(), err)
		return nil
	}

	if err := sig.Validate(); err != nil {
		d.counters.InvalidSignature++
		logger.Warn(ctx, "Signature failed validation : input %d of %s : %s", index,
			tx.TxHash(), err)
		return nil
	}

	// A missing prior output is never fatal: the subscript degrades to
	// empty and the record is still emitted, so the digest simply won't
	// verify rather than being dropped.
	var subscript []byte
	prevOut := in.PreviousOutPoint
	output, err := oracle.Output(ctx, d.Source, prevOut.Hash, prevOut.Index)
	if err != nil {
		d.counters.OutputsNotFound++
		logger.Warn(ctx, "Previous output not found : input %d of %s : %s", index,
			tx.TxHash(), err)
	} else {
		subscript = output.LockingScript
	}

	digest, err := sighash.Digest(tx, index, subscript, hashType)
	if err != nil {
		return errors.Wrap(err, "digest")
	}

	txid := tx.TxHash()
	record := emitter.NewRecord(sig, pattern.PubKey, *txid, *digest, blockTimestamp)
	if err := d.Sink.Append(ctx, record); err != nil {
		return errors.Wrap(err, "append record")
	}

	d.counters.SignaturesFound++
	return nil
}

// Complete flushes and publishes the sink under the given height range and
// logs the final counters.
func (d *Driver) Complete(ctx context.Context, startHeight, endHeight uint64) (Counters, error) {
	ctx = logger.ContextWithLogTrace(ctx, d.traceID)

	if err := d.Sink.Complete(ctx, startHeight, endHeight); err != nil {
		return d.counters, errors.Wrap(err, "complete sink")
	}

	logger.Info(ctx, "Completed : blocks %d, txs %d, inputs %d, outputs %d, signatures %d, "+
		"outputs not found %d, non-standard %d, invalid signatures %d",
		d.counters.Blocks, d.counters.Transactions, d.counters.Inputs, d.counters.Outputs,
		d.counters.SignaturesFound, d.counters.OutputsNotFound, d.counters.NonStandardInput,
		d.counters.InvalidSignature)

	return d.counters, nil
}

// Snapshot returns a snapshot of the run's current totals.
func (d *Driver) Snapshot() Counters {
	return d.counters
}
