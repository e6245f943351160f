package bitcoin

import (
	"bytes"
	"testing"
)

func TestParsePushDataScript(t *testing.T) {
	tests := []struct {
		name     string
		script   []byte
		wantData []byte
	}{
		{"single byte push", []byte{0x03, 0x01, 0x02, 0x03}, []byte{0x01, 0x02, 0x03}},
		{"OP_PUSHDATA1", append([]byte{OP_PUSH_DATA_1, 0x04}, []byte{1, 2, 3, 4}...), []byte{1, 2, 3, 4}},
		{"OP_1", []byte{OP_1}, []byte{0x01}},
		{"OP_1NEGATE", []byte{OP_1NEGATE}, []byte{0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bytes.NewReader(tt.script)
			_, data, err := ParsePushDataScript(buf)
			if err != nil {
				t.Fatalf("Failed to parse push data : %s", err)
			}
			if !bytes.Equal(data, tt.wantData) {
				t.Fatalf("Wrong data : got %x want %x", data, tt.wantData)
			}
		})
	}
}

func TestParsePushDataScriptSize(t *testing.T) {
	buf := bytes.NewReader([]byte{0x14})
	size, err := ParsePushDataScriptSize(buf)
	if err != nil {
		t.Fatalf("Failed to parse push data size : %s", err)
	}
	if size != 20 {
		t.Fatalf("Wrong size : got %d want 20", size)
	}
}

func TestParsePushDataScriptRejectsNonPush(t *testing.T) {
	buf := bytes.NewReader([]byte{0xac}) // OP_CHECKSIG, not a push op
	if _, _, err := ParsePushDataScript(buf); err == nil {
		t.Fatalf("Expected error for non-push opcode")
	}
}
