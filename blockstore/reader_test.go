package blockstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/chainforensics/sigharvest/bitcoin"
	"github.com/chainforensics/sigharvest/wire"
)

func writeTestBlock(t *testing.T, dir string, height uint64) {
	t.Helper()

	tx := wire.NewMsgTx(1)
	var prevHash bitcoin.Hash32
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), bitcoin.Script([]byte{0x00})))
	tx.AddTxOut(wire.NewTxOut(1000, bitcoin.Script([]byte{0x76})))

	block := &wire.Block{
		Header: wire.BlockHeader{Timestamp: uint32(height)},
		Txs:    []*wire.MsgTx{tx},
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.blk", height))
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s : %s", path, err)
	}
	defer file.Close()

	if err := block.Serialize(file); err != nil {
		t.Fatalf("serialize : %s", err)
	}
}

func TestReaderOrdersByHeight(t *testing.T) {
	dir := t.TempDir()
	writeTestBlock(t, dir, 200)
	writeTestBlock(t, dir, 100)
	writeTestBlock(t, dir, 150)

	reader, err := NewReader(dir)
	if err != nil {
		t.Fatalf("NewReader failed : %s", err)
	}

	if reader.StartHeight() != 100 {
		t.Fatalf("Expected start height 100, got %d", reader.StartHeight())
	}

	var heights []uint64
	for {
		_, height, ok, err := reader.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed : %s", err)
		}
		if !ok {
			break
		}
		heights = append(heights, height)
	}

	want := []uint64{100, 150, 200}
	if len(heights) != len(want) {
		t.Fatalf("Expected %d blocks, got %d", len(want), len(heights))
	}
	for i := range want {
		if heights[i] != want[i] {
			t.Fatalf("Height order mismatch at %d : got %d want %d", i, heights[i], want[i])
		}
	}
}

func TestReaderOnMissingDirectory(t *testing.T) {
	reader, err := NewReader(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("NewReader on a missing directory should not error : %s", err)
	}

	_, _, ok, err := reader.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed : %s", err)
	}
	if ok {
		t.Fatalf("Expected no blocks from a missing directory")
	}
}
