package wire

import (
	"bytes"
	"testing"

	"github.com/chainforensics/sigharvest/bitcoin"
)

func TestMsgTxSerializeDeserializeRoundTrip(t *testing.T) {
	tx := NewMsgTx(1)

	var prevHash bitcoin.Hash32
	prevHash[0] = 0x01
	tx.AddTxIn(NewTxIn(NewOutPoint(&prevHash, 0), bitcoin.Script([]byte{0x01, 0x02})))
	tx.AddTxOut(NewTxOut(5000000000, bitcoin.Script([]byte{0x76, 0xa9, 0x14})))
	tx.LockTime = 0

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("Serialize failed : %s", err)
	}

	if got := tx.SerializeSize(); got != buf.Len() {
		t.Fatalf("SerializeSize() = %d, want %d", got, buf.Len())
	}

	var reread MsgTx
	if err := reread.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize failed : %s", err)
	}

	if reread.Version != tx.Version {
		t.Fatalf("Version mismatch : got %d want %d", reread.Version, tx.Version)
	}
	if len(reread.TxIn) != 1 || len(reread.TxOut) != 1 {
		t.Fatalf("Wrong input/output count : %d/%d", len(reread.TxIn), len(reread.TxOut))
	}
	if !bytes.Equal(reread.TxIn[0].UnlockingScript, tx.TxIn[0].UnlockingScript) {
		t.Fatalf("UnlockingScript mismatch")
	}
	if reread.TxOut[0].Value != tx.TxOut[0].Value {
		t.Fatalf("Value mismatch : got %d want %d", reread.TxOut[0].Value, tx.TxOut[0].Value)
	}
	if !reread.TxHash().Equal(tx.TxHash()) {
		t.Fatalf("TxHash mismatch after round trip")
	}
}

func TestMsgTxIsCoinBase(t *testing.T) {
	coinbase := NewMsgTx(1)
	var zero bitcoin.Hash32
	coinbase.AddTxIn(NewTxIn(NewOutPoint(&zero, MaxPrevOutIndex), bitcoin.Script([]byte{0x00})))
	coinbase.AddTxOut(NewTxOut(5000000000, bitcoin.Script([]byte{0x76})))

	if !coinbase.IsCoinBase() {
		t.Fatalf("Expected coinbase transaction to be recognized")
	}

	var prevHash bitcoin.Hash32
	prevHash[0] = 0x01
	regular := NewMsgTx(1)
	regular.AddTxIn(NewTxIn(NewOutPoint(&prevHash, 0), bitcoin.Script([]byte{0x00})))
	regular.AddTxOut(NewTxOut(1000, bitcoin.Script([]byte{0x76})))

	if regular.IsCoinBase() {
		t.Fatalf("Did not expect a regular spend to be recognized as coinbase")
	}
}

func TestOutPointStringAndFromStr(t *testing.T) {
	var hash bitcoin.Hash32
	hash[0] = 0xab

	op := NewOutPoint(&hash, 3)
	s := op.String()

	parsed, err := OutPointFromStr(s)
	if err != nil {
		t.Fatalf("OutPointFromStr failed : %s", err)
	}

	if !parsed.Hash.Equal(&op.Hash) || parsed.Index != op.Index {
		t.Fatalf("OutPoint round trip mismatch")
	}
}
