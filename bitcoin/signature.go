package bitcoin

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/pkg/errors"
)

// HashType is the single trailing byte appended to a legacy script signature that selects which
// parts of the transaction the signature commits to.
type HashType byte

const (
	SigHashAll          HashType = 0x01
	SigHashNone         HashType = 0x02
	SigHashSingle       HashType = 0x03
	SigHashAnyOneCanPay HashType = 0x80
)

// Signature is an elliptic curve signature using the secp256k1 elliptic curve.
type Signature struct {
	R big.Int
	S big.Int
}

// SignatureFromStr converts signature text to a signature.
func SignatureFromStr(s string) (Signature, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, err
	}

	return SignatureFromBytes(b)
}

// SignatureFromScriptBytes splits the trailing hash-type byte off a script-sig push and DER
// decodes the remainder. The hash-type byte is required and is not validated beyond being
// present; callers decide which combinations of flag bits they accept.
func SignatureFromScriptBytes(b []byte) (Signature, HashType, error) {
	if len(b) < 1 {
		return Signature{}, 0, errors.New("Signature push empty")
	}

	hashType := HashType(b[len(b)-1])
	sig, err := SignatureFromBytes(b[:len(b)-1])
	if err != nil {
		return Signature{}, 0, err
	}

	return sig, hashType, nil
}

// SignatureFromBytes decodes a binary bitcoin signature. It returns the signature and an error if
//   there was an issue.
func SignatureFromBytes(b []byte) (Signature, error) {
	// 0x30 <length of whole message> <0x02> <length of R> <R> 0x2
	// <length of S> <S>.

	if len(b) < 8 {
		return Signature{}, errors.New("Signature too short")
	}
	// 0x30
	index := 0
	if b[index] != 0x30 {
		return Signature{}, errors.New("Signature missing header byte")
	}
	index++
	// length of remaining message
	length := b[index]
	index++

	// length should be less than the entire message and greater than
	// the minimal message size.
	if int(length+2) > len(b) || int(length+2) < 8 {
		return Signature{}, errors.New("Signature has bad length")
	}
	// trim the slice we're working on so we only look at what matters.
	b = b[:length+2]

	// 0x02
	if b[index] != 0x02 {
		return Signature{}, errors.New("Signature missing 1st int marker")
	}
	index++

	// Length of R.
	rLen := int(b[index])
	// must be positive, must be able to fit in another 0x2, <len> <s>
	// hence the -3. We assume that the length must be at least one byte.
	index++
	if rLen <= 0 || rLen > len(b)-index-3 {
		return Signature{}, errors.New("Signature has bad R length")
	}

	// Then R itself.
	rBytes := b[index : index+rLen]
	switch err := canonicalPadding(rBytes); err {
	case errNegativeValue:
		return Signature{}, errors.New("Signature R is negative")
	case errExcessivelyPaddedValue:
		return Signature{}, errors.New("Signature R is excessively padded")
	}
	var r big.Int
	r.SetBytes(rBytes)
	index += rLen
	// 0x02. length already checked in previous if.
	if b[index] != 0x02 {
		return Signature{}, errors.New("malformed signature: no 2nd int marker")
	}
	index++

	// Length of signature S.
	sLen := int(b[index])
	index++
	// S should be the rest of the string.
	if sLen <= 0 || sLen > len(b)-index {
		return Signature{}, errors.New("Signature has bad S length")
	}

	// Then S itself.
	sBytes := b[index : index+sLen]
	switch err := canonicalPadding(sBytes); err {
	case errNegativeValue:
		return Signature{}, errors.New("Signature S is negative")
	case errExcessivelyPaddedValue:
		return Signature{}, errors.New("Signature S is excessively padded")
	}
	var s big.Int
	s.SetBytes(sBytes)
	index += sLen

	// sanity check length parsing
	if index != len(b) {
		return Signature{}, fmt.Errorf("Signature has bad final length %v != %v", index, len(b))
	}

	result := Signature{R: r, S: s}
	return result, result.Validate()
}

func (s Signature) Serialize(w io.Writer) error {
	// low 'S' malleability breaker
	sigS := s.S
	if sigS.Cmp(curveHalfOrder) == 1 {
		sigS.Sub(curveS256.N, &sigS)
	}
	// Ensure the encoded bytes for the r and s values are canonical and
	// thus suitable for DER encoding.
	rb := canonicalizeInt(s.R)
	sb := canonicalizeInt(sigS)

	// total length of returned signature is 1 byte for each magic and
	// length (4 total), plus lengths of r and s
	length := 4 + len(rb) + len(sb)

	// Header
	b := make([]byte, 4)
	b[0] = 0x30
	b[1] = byte(length)

	// Write R
	b[2] = 0x02
	b[3] = byte(len(rb))
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "header")
	}
	if _, err := w.Write(rb); err != nil {
		return errors.Wrap(err, "r")
	}

	// Write S
	b = make([]byte, 2)
	b[0] = 0x02
	b[1] = byte(len(sb))
	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "header")
	}
	if _, err := w.Write(sb); err != nil {
		return errors.Wrap(err, "s")
	}

	return nil
}

func (s *Signature) Deserialize(r io.Reader) error {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return errors.Wrap(err, "header byte")
	}

	// 0x30
	if b[0] != 0x30 {
		return errors.New("Signature missing header byte")
	}

	// length of remaining message
	if _, err := io.ReadFull(r, b); err != nil {
		return errors.Wrap(err, "length")
	}

	b = make([]byte, b[0])
	if _, err := io.ReadFull(r, b); err != nil {
		return errors.Wrap(err, "data")
	}

	// 0x02
	index := 0
	if b[index] != 0x02 {
		return errors.New("Signature missing 1st int marker")
	}
	index++

	// Length of R.
	rLen := int(b[index])
	index++
	if rLen <= 0 || rLen > len(b)-index-3 {
		return errors.New("Signature has bad R length")
	}

	// Then R itself.
	rBytes := b[index : index+rLen]
	switch err := canonicalPadding(rBytes); err {
	case errNegativeValue:
		return errors.New("Signature R is negative")
	case errExcessivelyPaddedValue:
		return errors.New("Signature R is excessively padded")
	}

	s.R.SetBytes(rBytes)
	index += rLen
	// 0x02. length already checked in previous if.
	if b[index] != 0x02 {
		return errors.New("malformed signature: no 2nd int marker")
	}
	index++

	// Length of signature S.
	sLen := int(b[index])
	index++
	if sLen <= 0 || sLen > len(b)-index {
		return errors.New("Signature has bad S length")
	}

	// Then S itself.
	sBytes := b[index : index+sLen]
	switch err := canonicalPadding(sBytes); err {
	case errNegativeValue:
		return errors.New("Signature S is negative")
	case errExcessivelyPaddedValue:
		return errors.New("Signature S is excessively padded")
	}

	s.S.SetBytes(sBytes)
	index += sLen

	// sanity check length parsing
	if index != len(b) {
		return fmt.Errorf("Signature has bad final length %v != %v", index, len(b))
	}

	return s.Validate()
}

// Validate checks the mathematical validity of the signature's R and S values : both must be in
// the range [1, N-1] for the curve order N. A signature failing this check is never emitted.
func (s Signature) Validate() error {
	if s.R.Sign() != 1 {
		return errors.New("signature R isn't 1 or more")
	}
	if s.S.Sign() != 1 {
		return errors.New("signature S isn't 1 or more")
	}
	if s.R.Cmp(curveS256Params.N) >= 0 {
		return errors.New("signature R is >= curve.N")
	}
	if s.S.Cmp(curveS256Params.N) >= 0 {
		return errors.New("signature S is >= curve.N")
	}

	return nil
}

// String returns the signature data encoded as hex.
func (s Signature) String() string {
	return hex.EncodeToString(s.Bytes())
}

// SetString decodes a signature from hex text.
func (s *Signature) SetString(str string) error {
	ns, err := SignatureFromStr(str)
	if err != nil {
		return err
	}

	*s = ns
	return nil
}

// SetBytes decodes the signature from bytes.
func (s *Signature) SetBytes(b []byte) error {
	ns, err := SignatureFromBytes(b)
	if err != nil {
		return err
	}

	*s = ns
	return nil
}

// Bytes returns the DER encoding of the signature.
func (s Signature) Bytes() []byte {
	// low 'S' malleability breaker
	sigS := s.S
	if sigS.Cmp(curveHalfOrder) == 1 {
		sigS.Sub(curveS256.N, &sigS)
	}
	rb := canonicalizeInt(s.R)
	sb := canonicalizeInt(sigS)

	length := 6 + len(rb) + len(sb)
	b := make([]byte, length)

	b[0] = 0x30
	b[1] = byte(length - 2)
	b[2] = 0x02
	b[3] = byte(len(rb))
	offset := copy(b[4:], rb) + 4
	b[offset] = 0x02
	b[offset+1] = byte(len(sb))
	copy(b[offset+2:], sb)
	return b
}

// MarshalJSON converts to json.
func (s Signature) MarshalJSON() ([]byte, error) {
	return []byte("\"" + s.String() + "\""), nil
}

// UnmarshalJSON converts from json.
func (s *Signature) UnmarshalJSON(data []byte) error {
	return s.SetString(string(data[1 : len(data)-1]))
}

// MarshalText returns the text encoding of the signature.
// Implements encoding.TextMarshaler interface.
func (s Signature) MarshalText() ([]byte, error) {
	b := s.Bytes()
	result := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(result, b)
	return result, nil
}

// UnmarshalText parses a text encoded signature and sets the value of this object.
// Implements encoding.TextUnmarshaler interface.
func (s *Signature) UnmarshalText(text []byte) error {
	b := make([]byte, hex.DecodedLen(len(text)))
	_, err := hex.Decode(b, text)
	if err != nil {
		return err
	}

	return s.SetBytes(b)
}

// MarshalBinary returns the binary encoding of the signature.
// Implements encoding.BinaryMarshaler interface.
func (s Signature) MarshalBinary() ([]byte, error) {
	return s.Bytes(), nil
}

// UnmarshalBinary parses a binary encoded signature and sets the value of this object.
// Implements encoding.BinaryUnmarshaler interface.
func (s *Signature) UnmarshalBinary(data []byte) error {
	return s.SetBytes(data)
}

// Scan converts from a database column.
func (s *Signature) Scan(data interface{}) error {
	b, ok := data.([]byte)
	if !ok {
		return errors.New("Signature db column not bytes")
	}

	c := make([]byte, len(b))
	copy(c, b)
	return s.SetBytes(c)
}

func (s Signature) Equal(o Signature) bool {
	return s.S.Cmp(&o.S) == 0 && s.R.Cmp(&o.R) == 0
}

var (
	// Errors returned by canonicalPadding.
	errNegativeValue          = errors.New("value may be interpreted as negative")
	errExcessivelyPaddedValue = errors.New("value is excessively padded")
)

// canonicalizeInt returns the bytes for the passed big integer adjusted as
// necessary to ensure that a big-endian encoded integer can't possibly be
// misinterpreted as a negative number.  This can happen when the most
// significant bit is set, so it is padded by a leading zero byte in this case.
// Also, the returned bytes will have at least a single byte when the passed
// value is 0.  This is required for DER encoding.
func canonicalizeInt(val big.Int) []byte {
	b := val.Bytes()
	if len(b) == 0 {
		b = []byte{0x00}
	}
	if b[0]&0x80 != 0 {
		paddedBytes := make([]byte, len(b)+1)
		copy(paddedBytes[1:], b)
		b = paddedBytes
	}
	return b
}

// canonicalPadding checks whether a big-endian encoded integer could
// possibly be misinterpreted as a negative number (even though OpenSSL
// treats all numbers as unsigned), or if there is any unnecessary
// leading zero padding.
func canonicalPadding(b []byte) error {
	switch {
	case b[0]&0x80 == 0x80:
		return errNegativeValue
	case len(b) > 1 && b[0] == 0x00 && b[1]&0x80 != 0x80:
		return errExcessivelyPaddedValue
	default:
		return nil
	}
}
