// Package statuslist implements bitstring revocation lists: one bit per
// issued credential, published as a gzip-compressed base64url bitstring
// inside a status list credential document.
package statuslist

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// MinBitstringSize is the minimum bitstring length in bits. Lists are
// padded to at least this size so list membership leaks as little as
// possible about issuance volume.
const MinBitstringSize = 131072

// maxDecodedSize caps decompression of fetched lists.
const maxDecodedSize = 16 << 20

var ErrIndexOutOfRange = errors.New("status list index out of range")

// Bitstring is a growable bit array. The zero value is empty; bits read
// beyond the current length are zero.
type Bitstring struct {
	bits []byte
}

// NewBitstring creates a bitstring pre-sized to MinBitstringSize bits.
func NewBitstring() *Bitstring {
	return &Bitstring{bits: make([]byte, MinBitstringSize/8)}
}

// Len returns the bitstring length in bits.
func (b *Bitstring) Len() int {
	return len(b.bits) * 8
}

// Set sets the bit at the given index, growing the bitstring if needed.
func (b *Bitstring) Set(index int, value bool) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	byteIdx := index / 8
	if byteIdx >= len(b.bits) {
		grown := make([]byte, byteIdx+1)
		copy(grown, b.bits)
		b.bits = grown
	}

	mask := byte(1) << (7 - uint(index%8))
	if value {
		b.bits[byteIdx] |= mask
	} else {
		b.bits[byteIdx] &^= mask
	}
	return nil
}

// Bit returns the bit at the given index. Indices beyond the current
// length read as false.
func (b *Bitstring) Bit(index int) bool {
	if index < 0 {
		return false
	}
	byteIdx := index / 8
	if byteIdx >= len(b.bits) {
		return false
	}
	return b.bits[byteIdx]&(byte(1)<<(7-uint(index%8))) != 0
}

// Encode produces the encodedList value: gzip-compressed bitstring,
// base64url-encoded without padding.
func (b *Bitstring) Encode() (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b.bits); err != nil {
		return "", fmt.Errorf("failed to compress bitstring: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress bitstring: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeBitstring parses an encodedList value back into a Bitstring.
func DecodeBitstring(encoded string) (*Bitstring, error) {
	compressed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		// Tolerate padded input from other producers.
		compressed, err = base64.URLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid base64url encoded list: %w", err)
		}
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("invalid gzip encoded list: %w", err)
	}
	defer func() { _ = zr.Close() }()

	bits, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress encoded list: %w", err)
	}
	return &Bitstring{bits: bits}, nil
}
