// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	// MaxVarIntPayload is the maximum payload size for a variable length integer.
	MaxVarIntPayload = uint64(9)
)

var (
	endian = binary.LittleEndian
)

// errNonCanonicalVarInt is the common format string used for non-canonically
// encoded variable length integer errors.
var errNonCanonicalVarInt = "non-canonical varint %x - discriminant %x must " +
	"encode a value greater than %x"

// readElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to. Only the element
// types the transaction codec actually uses are given a fast path; everything
// else falls through to binary.Read.
func readElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		var rv int32
		if err := binary.Read(r, endian, &rv); err != nil {
			return err
		}
		*e = rv
		return nil

	case *uint32:
		var rv uint32
		if err := binary.Read(r, endian, &rv); err != nil {
			return err
		}
		*e = rv
		return nil

	case *int64:
		var rv int64
		if err := binary.Read(r, endian, &rv); err != nil {
			return err
		}
		*e = rv
		return nil

	case *uint64:
		var rv uint64
		if err := binary.Read(r, endian, &rv); err != nil {
			return err
		}
		*e = rv
		return nil
	}

	// Fall back to the slower binary.Read if a fast path was not available
	// above.
	return binary.Read(r, endian, element)
}

// writeElement writes the little endian representation of element to w.
func writeElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		return binary.Write(w, endian, uint32(e))

	case uint32:
		return binary.Write(w, endian, e)

	case int64:
		return binary.Write(w, endian, uint64(e))

	case uint64:
		return binary.Write(w, endian, e)
	}

	// Fall back to the slower binary.Write if a fast path was not available
	// above.
	return binary.Write(w, endian, element)
}

// ReadVarInt reads a variable length integer from r and returns it as a uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	_, result, err := ReadVarIntN(r)
	return result, err
}

// ReadVarIntN reads a variable length integer from r and returns its size and value as uint64s.
func ReadVarIntN(r io.Reader) (uint64, uint64, error) {
	var discriminant uint8
	if err := binary.Read(r, endian, &discriminant); err != nil {
		return 0, 0, err
	}

	switch discriminant {
	case 0xff:
		var sv uint64
		if err := binary.Read(r, endian, &sv); err != nil {
			return 0, 0, err
		}

		// The encoding is not canonical if the value could have been
		// encoded using fewer bytes.
		min := uint64(0x100000000)
		if sv < min {
			return 0, 0, fmt.Errorf(errNonCanonicalVarInt, sv, discriminant, min)
		}

		return 9, sv, nil

	case 0xfe:
		var sv uint32
		if err := binary.Read(r, endian, &sv); err != nil {
			return 0, 0, err
		}

		min := uint32(0x10000)
		if sv < min {
			return 0, 0, fmt.Errorf(errNonCanonicalVarInt, sv, discriminant, min)
		}

		return 5, uint64(sv), nil

	case 0xfd:
		var sv uint16
		if err := binary.Read(r, endian, &sv); err != nil {
			return 0, 0, err
		}

		min := uint16(0xfd)
		if sv < min {
			return 0, 0, fmt.Errorf(errNonCanonicalVarInt, sv, discriminant, min)
		}

		return 3, uint64(sv), nil

	default:
		return 1, uint64(discriminant), nil
	}
}

// WriteVarInt serializes val to w using a variable number of bytes depending
// on its value.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		return binary.Write(w, endian, uint8(val))
	}

	if val <= math.MaxUint16 {
		if err := binary.Write(w, endian, uint8(0xfd)); err != nil {
			return err
		}
		return binary.Write(w, endian, uint16(val))
	}

	if val <= math.MaxUint32 {
		if err := binary.Write(w, endian, uint8(0xfe)); err != nil {
			return err
		}
		return binary.Write(w, endian, uint32(val))
	}

	if err := binary.Write(w, endian, uint8(0xff)); err != nil {
		return err
	}
	return binary.Write(w, endian, val)
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	if val < 0xfd {
		return 1
	}

	if val <= math.MaxUint16 {
		return 3
	}

	if val <= math.MaxUint32 {
		return 5
	}

	return 9
}

// ReadVarBytes reads a variable length byte array. A byte array is encoded
// as a varint containing the length of the array followed by the bytes
// themselves. An error is returned if the length is greater than the passed
// maxAllowed parameter, which helps protect against memory exhaustion attacks
// and forced panics through malformed messages. The fieldName parameter is
// only used for the error message so it provides more context in the error.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}

	if count > maxAllowed {
		return nil, fmt.Errorf("%s is larger than the max allowed size [count %d, max %d]",
			fieldName, count, maxAllowed)
	}

	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes serializes a variable length byte array to w as a varint
// containing the number of bytes, followed by the bytes themselves.
func WriteVarBytes(w io.Writer, bytes []byte) error {
	if err := WriteVarInt(w, uint64(len(bytes))); err != nil {
		return err
	}

	_, err := w.Write(bytes)
	return err
}
