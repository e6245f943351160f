package bitcoin

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func Test_ConvertBytesToJSONHex(t *testing.T) {
	tests := []struct {
		h  string
		js string
	}{
		{
			h:  "619c335025c7f4012e556c2a58b2506e30b8511b53ade95ea316fd8c3286feb9",
			js: `"619c335025c7f4012e556c2a58b2506e30b8511b53ade95ea316fd8c3286feb9"`,
		},
		{
			h:  "e30b8511b53ade95ea316fd8c328",
			js: `"e30b8511b53ade95ea316fd8c328"`,
		},
		{
			h:  "",
			js: `""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.h, func(t *testing.T) {
			b, err := hex.DecodeString(tt.h)
			if err != nil {
				t.Fatalf("Failed to decode hex : %s", err)
			}

			js, err := ConvertBytesToJSONHex(b)
			if err != nil {
				t.Fatalf("Failed to convert to json hex : %s", err)
			}

			if string(js) != tt.js {
				t.Errorf("Wrong json : got %s, want %s", string(js), tt.js)
			}

			b2, err := ConvertJSONHexToBytes(js)
			if err != nil {
				t.Errorf("Failed to convert from json hex : %s", err)
			}

			if !bytes.Equal(b, b2) {
				t.Errorf("Wrong value : got %x, want %x", b2, b)
			}
		})
	}
}

func Test_ConvertJSONHexToBytes_ErrMissingQuotes(t *testing.T) {
	if _, err := ConvertJSONHexToBytes([]byte(`12`)); err != ErrMissingQuotes {
		t.Errorf("Wrong error : got %s, want %s", err, ErrMissingQuotes)
	}
}

func Test_ConvertJSONHexToBytes_InvalidHex(t *testing.T) {
	if _, err := ConvertJSONHexToBytes([]byte(`"12t"`)); err == nil {
		t.Errorf("Did not get error")
	}
}
