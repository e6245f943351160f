package emitter

import (
	"bufio"
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chainforensics/sigharvest/bitcoin"
)

func testRecord() Record {
	var txid, msgHash bitcoin.Hash32
	txid[0] = 0x01
	msgHash[0] = 0x02

	return Record{
		R:              "ab",
		S:              "cd",
		PubKey:         "02ef",
		TxID:           txid.String(),
		MessageHash:    msgHash.String(),
		BlockTimestamp: 1700000000,
	}
}

func TestRecordLineFieldOrder(t *testing.T) {
	record := testRecord()
	line := record.Line()

	if !strings.HasSuffix(line, lineTerminator) {
		t.Fatalf("Expected line to end with the line terminator")
	}

	fields := strings.Split(strings.TrimSuffix(line, lineTerminator), fieldSeparator)
	if len(fields) != 6 {
		t.Fatalf("Expected 6 fields, got %d : %v", len(fields), fields)
	}

	if fields[0] != record.R || fields[1] != record.S || fields[2] != record.PubKey ||
		fields[3] != record.TxID || fields[4] != record.MessageHash {
		t.Fatalf("Field order mismatch : %v", fields)
	}
}

// TestNewRecordPreservesLeadingZeroByte ensures a scalar with a leading
// zero byte keeps its full width in the hex encoding rather than being
// shortened by big.Int.Bytes' minimal-length representation.
func TestNewRecordPreservesLeadingZeroByte(t *testing.T) {
	sig := bitcoin.Signature{
		R: *new(big.Int).SetBytes(append([]byte{0x00, 0x01}, bytesOfValue(0x02, 30)...)),
		S: *big.NewInt(67890),
	}

	var txid, msgHash bitcoin.Hash32
	record := NewRecord(sig, []byte{0x02}, txid, msgHash, 1700000000)

	if len(record.R) != scalarByteWidth*2 {
		t.Fatalf("Expected R to be %d hex characters wide, got %d : %s",
			scalarByteWidth*2, len(record.R), record.R)
	}
	if !strings.HasPrefix(record.R, "0001") {
		t.Fatalf("Expected R to preserve its leading zero byte, got %s", record.R)
	}
	if len(record.S) != scalarByteWidth*2 {
		t.Fatalf("Expected S to be %d hex characters wide, got %d : %s",
			scalarByteWidth*2, len(record.S), record.S)
	}
}

func bytesOfValue(v byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func TestFilesystemAppendAndComplete(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "sigharvest-emitter-test")
	os.RemoveAll(dir)
	defer os.RemoveAll(dir)

	ctx := context.Background()

	sink, err := NewFilesystem(ctx, dir)
	if err != nil {
		t.Fatalf("NewFilesystem failed : %s", err)
	}

	records := []Record{testRecord(), testRecord()}
	for _, record := range records {
		if err := sink.Append(ctx, record); err != nil {
			t.Fatalf("Append failed : %s", err)
		}
	}

	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush failed : %s", err)
	}

	if err := sink.Complete(ctx, 100, 200); err != nil {
		t.Fatalf("Complete failed : %s", err)
	}

	finalPath := filepath.Join(dir, "signatures-100-200.csv")
	file, err := os.Open(finalPath)
	if err != nil {
		t.Fatalf("Expected published file to exist : %s", err)
	}
	defer file.Close()

	lineCount := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineCount++
	}

	if lineCount != len(records) {
		t.Fatalf("Expected %d lines, got %d", len(records), lineCount)
	}

	if _, err := os.Stat(filepath.Join(dir, tempFileName)); !os.IsNotExist(err) {
		t.Fatalf("Expected temp file to be renamed away")
	}
}

func TestNewFilesystemCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(os.TempDir(), "sigharvest-emitter-test-missing", "nested")
	os.RemoveAll(filepath.Dir(dir))
	defer os.RemoveAll(filepath.Dir(dir))

	if _, err := NewFilesystem(context.Background(), dir); err != nil {
		t.Fatalf("NewFilesystem failed to create missing directory : %s", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("Expected directory to have been created : %s", err)
	}
}
