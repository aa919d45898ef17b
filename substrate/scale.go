package substrate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyStorageValue is returned when a storage entry that must exist
	// came back empty.
	ErrEmptyStorageValue = errors.New("empty storage value")

	// ErrTruncatedValue is returned when a SCALE encoded value is shorter
	// than its own length prefix claims.
	ErrTruncatedValue = errors.New("truncated scale value")
)

const (
	compactSingleByteMax = 1<<6 - 1
	compactTwoByteMax    = 1<<14 - 1
	compactFourByteMax   = 1<<30 - 1
)

// DecodeCompactLength decodes a SCALE compact integer from the start of b and
// returns its value together with the number of bytes the prefix occupied.
func DecodeCompactLength(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, ErrEmptyStorageValue
	}
	switch b[0] & 0b11 {
	case 0b00:
		return uint64(b[0] >> 2), 1, nil
	case 0b01:
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("%w: compact prefix needs 2 bytes, have %d", ErrTruncatedValue, len(b))
		}
		return uint64(binary.LittleEndian.Uint16(b) >> 2), 2, nil
	case 0b10:
		if len(b) < 4 {
			return 0, 0, fmt.Errorf("%w: compact prefix needs 4 bytes, have %d", ErrTruncatedValue, len(b))
		}
		return uint64(binary.LittleEndian.Uint32(b) >> 2), 4, nil
	default:
		n := int(b[0]>>2) + 4
		if n > 8 {
			return 0, 0, fmt.Errorf("compact integer of %d bytes overflows uint64", n)
		}
		if len(b) < 1+n {
			return 0, 0, fmt.Errorf("%w: compact prefix needs %d bytes, have %d", ErrTruncatedValue, 1+n, len(b))
		}
		var buf [8]byte
		copy(buf[:], b[1:1+n])
		return binary.LittleEndian.Uint64(buf[:]), 1 + n, nil
	}
}

// AppendCompactLength appends the SCALE compact encoding of v to dst.
func AppendCompactLength(dst []byte, v uint64) []byte {
	switch {
	case v <= compactSingleByteMax:
		return append(dst, byte(v<<2))
	case v <= compactTwoByteMax:
		return binary.LittleEndian.AppendUint16(dst, uint16(v<<2)|0b01)
	case v <= compactFourByteMax:
		return binary.LittleEndian.AppendUint32(dst, uint32(v<<2)|0b10)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	n := 8
	for n > 4 && buf[n-1] == 0 {
		n--
	}
	dst = append(dst, byte(n-4)<<2|0b11)
	return append(dst, buf[:n]...)
}

// StripCompactLength splits a length-prefixed byte vector and returns its
// payload.
func StripCompactLength(b []byte) ([]byte, error) {
	length, offset, err := DecodeCompactLength(b)
	if err != nil {
		return nil, err
	}
	rest := b[offset:]
	if length > math.MaxInt || uint64(len(rest)) < length {
		return nil, fmt.Errorf("%w: declared %d bytes, have %d", ErrTruncatedValue, length, len(rest))
	}
	return rest[:length], nil
}

// EncodeBytes returns the SCALE encoding of a byte vector.
func EncodeBytes(payload []byte) []byte {
	out := AppendCompactLength(make([]byte, 0, len(payload)+5), uint64(len(payload)))
	return append(out, payload...)
}
