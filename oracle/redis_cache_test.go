package oracle

import (
	"testing"
)

func TestEncodeDecodeOutputsRoundTrip(t *testing.T) {
	outputs := []TxOutput{
		{Index: 0, Value: 5000, LockingScript: []byte{0x76, 0xa9, 0x14}},
		{Index: 1, Value: 0, LockingScript: nil},
	}

	encoded, err := encodeOutputs(outputs)
	if err != nil {
		t.Fatalf("encodeOutputs failed : %s", err)
	}

	decoded, err := decodeOutputs(encoded)
	if err != nil {
		t.Fatalf("decodeOutputs failed : %s", err)
	}

	if len(decoded) != len(outputs) {
		t.Fatalf("Expected %d outputs, got %d", len(outputs), len(decoded))
	}

	for i := range outputs {
		if decoded[i].Index != outputs[i].Index || decoded[i].Value != outputs[i].Value {
			t.Fatalf("Output %d mismatch : got %+v want %+v", i, decoded[i], outputs[i])
		}
		if len(decoded[i].LockingScript) != len(outputs[i].LockingScript) {
			t.Fatalf("Output %d script length mismatch", i)
		}
	}
}

func TestDecodeOutputsRejectsTruncatedPayload(t *testing.T) {
	if _, err := decodeOutputs([]byte{0x01, 0x00, 0x00}); err == nil {
		t.Fatalf("Expected an error for a payload too short to contain its own count")
	}
}
