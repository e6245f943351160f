package bitcoin

import (
	"encoding/hex"
	"errors"
)

var (
	ErrMissingQuotes = errors.New("Must be contained in quotes")
)

// ConvertBytesToJSONHex encodes b, in the given byte order, as a quoted hex
// string rather than the default base64 JSON encoding of a byte slice.
func ConvertBytesToJSONHex(b []byte) ([]byte, error) {
	hexLen := hex.EncodedLen(len(b))

	result := make([]byte, hexLen+2)
	result[0] = '"'
	hex.Encode(result[1:], b)
	result[hexLen+1] = '"'

	return result, nil
}

func ConvertJSONHexToBytes(js []byte) ([]byte, error) {
	l := len(js)
	if l < 2 {
		return nil, ErrMissingQuotes
	}
	if js[0] != '"' || js[l-1] != '"' {
		return nil, ErrMissingQuotes
	}

	byteLen := hex.DecodedLen(l - 2)
	b := make([]byte, byteLen)
	_, err := hex.Decode(b, js[1:l-1])
	if err != nil {
		return nil, err
	}

	return b, nil
}
