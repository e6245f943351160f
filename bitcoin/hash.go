package bitcoin

import (
	"crypto/sha256"

	"github.com/pkg/errors"
)

// ErrWrongSize is returned when a fixed-size value is constructed from the wrong number of bytes.
var ErrWrongSize = errors.New("Wrong Size")

// Sha256 returns the SHA256 (Secure Hash Algorithm) of the input.
func Sha256(b []byte) []byte {
	result := sha256.Sum256(b)
	return result[:]
}

// DoubleSha256 performs a double Sha256 hash on the bytes, the digest algorithm bitcoin commits
// signatures and block/transaction hashes to.
func DoubleSha256(b []byte) []byte {
	return Sha256(Sha256(b))
}

var hexChars = []byte("0123456789abcdef")

var hexValues = func() [256]byte {
	var v [256]byte
	for i := range v {
		v[i] = 0xff
	}
	for i := byte(0); i <= 9; i++ {
		v['0'+i] = i
	}
	for i := byte(0); i <= 5; i++ {
		v['a'+i] = 10 + i
		v['A'+i] = 10 + i
	}
	return v
}()

// ConvertJSONHexToReverseBytes decodes a quoted, big-endian (display order) hex JSON string into
// little-endian bytes, the convention Hash32's JSON encoding uses.
func ConvertJSONHexToReverseBytes(js []byte) ([]byte, error) {
	b, err := ConvertJSONHexToBytes(js)
	if err != nil {
		return nil, err
	}

	result := make([]byte, len(b))
	for i, v := range b {
		result[len(b)-1-i] = v
	}
	return result, nil
}
