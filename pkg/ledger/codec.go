package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// SubjectHash derives the canonical subject identifier hash anchored on
// chain: SHA-256 of the product id, suffixed with "#batch" or "#serial"
// when the passport is batch- or item-granular. Batch takes precedence
// when both are set.
func SubjectHash(productID, batch, serial string) Hash {
	canonical := productID
	switch {
	case batch != "":
		canonical += "#" + batch
	case serial != "":
		canonical += "#" + serial
	}
	return sha256.Sum256([]byte(canonical))
}

// NormalizeHash validates and converts a 32-byte hash from any accepted
// boundary form: hex string with or without a 0x prefix, raw []byte, or
// an already-typed Hash. Anything that is not exactly 32 bytes fails
// before any network round-trip.
func NormalizeHash(v any) (Hash, error) {
	var h Hash
	switch x := v.(type) {
	case Hash:
		return x, nil
	case [32]byte:
		return Hash(x), nil
	case []byte:
		if len(x) != 32 {
			return h, NewError(ErrCodeInvalidInput,
				fmt.Sprintf("hash is %d bytes, want 32", len(x)))
		}
		copy(h[:], x)
		return h, nil
	case string:
		s := strings.TrimPrefix(x, "0x")
		decoded, err := hex.DecodeString(s)
		if err != nil {
			return h, WrapError(ErrCodeInvalidInput, "hash is not valid hex", err)
		}
		if len(decoded) != 32 {
			return h, NewError(ErrCodeInvalidInput,
				fmt.Sprintf("hash decodes to %d bytes, want 32", len(decoded)))
		}
		copy(h[:], decoded)
		return h, nil
	case nil:
		return h, NewError(ErrCodeInvalidInput, "hash is required")
	}
	return h, NewError(ErrCodeInvalidInput, fmt.Sprintf("unsupported hash type %T", v))
}

// normalizeOptionalHash is NormalizeHash for optional fields; nil and
// empty string mean absent.
func normalizeOptionalHash(v any) (*Hash, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, nil
	}
	h, err := NormalizeHash(v)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Hex returns the 0x-prefixed hex form of the hash.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Hex returns the 0x-prefixed hex form of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

// ParseAddress decodes a 0x-prefixed or bare hex 20-byte address.
func ParseAddress(s string) (Address, error) {
	var a Address
	decoded, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, WrapError(ErrCodeInvalidInput, "address is not valid hex", err)
	}
	if len(decoded) != 20 {
		return a, NewError(ErrCodeInvalidInput,
			fmt.Sprintf("address is %d bytes, want 20", len(decoded)))
	}
	copy(a[:], decoded)
	return a, nil
}

// SCALE wire helpers. Token IDs are u128 on chain; this adapter models
// them as uint64 and rejects values beyond that range at the boundary.

func encodeU128(enc scale.Encoder, v uint64) error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], v)
	return enc.Write(buf[:])
}

func decodeU128(dec scale.Decoder) (uint64, error) {
	var buf [16]byte
	if err := dec.Read(buf[:]); err != nil {
		return 0, err
	}
	for _, b := range buf[8:] {
		if b != 0 {
			return 0, NewError(ErrCodeDecodeFailed, "u128 value overflows uint64 token id")
		}
	}
	return binary.LittleEndian.Uint64(buf[:8]), nil
}

// Encode implements scale.Encodeable.
func (h Hash) Encode(enc scale.Encoder) error {
	return enc.Write(h[:])
}

// Decode implements scale.Decodeable.
func (h *Hash) Decode(dec scale.Decoder) error {
	return dec.Read(h[:])
}

// Encode implements scale.Encodeable.
func (a Address) Encode(enc scale.Encoder) error {
	return enc.Write(a[:])
}

// Decode implements scale.Decodeable.
func (a *Address) Decode(dec scale.Decoder) error {
	return dec.Read(a[:])
}

// Encode implements scale.Encodeable.
func (g Granularity) Encode(enc scale.Encoder) error {
	if g > GranularityItem {
		return NewError(ErrCodeInvalidInput, "invalid granularity variant")
	}
	return enc.PushByte(byte(g))
}

// Decode implements scale.Decodeable.
func (g *Granularity) Decode(dec scale.Decoder) error {
	b, err := dec.ReadOneByte()
	if err != nil {
		return err
	}
	if b > byte(GranularityItem) {
		return NewError(ErrCodeDecodeFailed, fmt.Sprintf("unknown granularity variant %d", b))
	}
	*g = Granularity(b)
	return nil
}

// Encode implements scale.Encodeable.
func (s PassportStatus) Encode(enc scale.Encoder) error {
	if s > StatusArchived {
		return NewError(ErrCodeInvalidInput, "invalid status variant")
	}
	return enc.PushByte(byte(s))
}

// Decode implements scale.Decodeable.
func (s *PassportStatus) Decode(dec scale.Decoder) error {
	b, err := dec.ReadOneByte()
	if err != nil {
		return err
	}
	if b > byte(StatusArchived) {
		return NewError(ErrCodeDecodeFailed, fmt.Sprintf("unknown status variant %d", b))
	}
	*s = PassportStatus(b)
	return nil
}

func encodeOptionHash(enc scale.Encoder, h *Hash) error {
	if h == nil {
		return enc.PushByte(0)
	}
	if err := enc.PushByte(1); err != nil {
		return err
	}
	return enc.Write(h[:])
}

func decodeOptionHash(dec scale.Decoder) (*Hash, error) {
	b, err := dec.ReadOneByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case 0:
		return nil, nil
	case 1:
		var h Hash
		if err := dec.Read(h[:]); err != nil {
			return nil, err
		}
		return &h, nil
	}
	return nil, NewError(ErrCodeDecodeFailed, fmt.Sprintf("invalid Option prefix %d", b))
}

func encodeOptionString(enc scale.Encoder, s *string) error {
	if s == nil {
		return enc.PushByte(0)
	}
	if err := enc.PushByte(1); err != nil {
		return err
	}
	return enc.Encode(*s)
}

// Decode implements scale.Decodeable. Field order mirrors the contract's
// storage struct exactly.
func (r *PassportRecord) Decode(dec scale.Decoder) error {
	var err error
	if r.TokenID, err = decodeU128(dec); err != nil {
		return err
	}
	if err = r.Issuer.Decode(dec); err != nil {
		return err
	}
	if err = dec.Decode(&r.DatasetURI); err != nil {
		return err
	}
	if err = r.PayloadHash.Decode(dec); err != nil {
		return err
	}
	if err = dec.Decode(&r.DatasetType); err != nil {
		return err
	}
	if err = dec.Decode(&r.Version); err != nil {
		return err
	}
	if err = r.Status.Decode(dec); err != nil {
		return err
	}
	if err = dec.Decode(&r.CreatedAt); err != nil {
		return err
	}
	if err = dec.Decode(&r.UpdatedAt); err != nil {
		return err
	}
	if err = r.Granularity.Decode(dec); err != nil {
		return err
	}
	r.SubjectIDHash, err = decodeOptionHash(dec)
	return err
}

// Encode implements scale.Encodeable. Used by tests and dry-run fakes;
// the contract itself produces this layout.
func (r PassportRecord) Encode(enc scale.Encoder) error {
	if err := encodeU128(enc, r.TokenID); err != nil {
		return err
	}
	if err := r.Issuer.Encode(enc); err != nil {
		return err
	}
	if err := enc.Encode(r.DatasetURI); err != nil {
		return err
	}
	if err := r.PayloadHash.Encode(enc); err != nil {
		return err
	}
	if err := enc.Encode(r.DatasetType); err != nil {
		return err
	}
	if err := enc.Encode(r.Version); err != nil {
		return err
	}
	if err := r.Status.Encode(enc); err != nil {
		return err
	}
	if err := enc.Encode(r.CreatedAt); err != nil {
		return err
	}
	if err := enc.Encode(r.UpdatedAt); err != nil {
		return err
	}
	if err := r.Granularity.Encode(enc); err != nil {
		return err
	}
	return encodeOptionHash(enc, r.SubjectIDHash)
}

// Decode implements scale.Decodeable.
func (v *VersionHistory) Decode(dec scale.Decoder) error {
	var err error
	if err = dec.Decode(&v.Version); err != nil {
		return err
	}
	if err = dec.Decode(&v.DatasetURI); err != nil {
		return err
	}
	if err = v.PayloadHash.Decode(dec); err != nil {
		return err
	}
	if err = dec.Decode(&v.DatasetType); err != nil {
		return err
	}
	if err = dec.Decode(&v.UpdatedAt); err != nil {
		return err
	}
	return v.UpdatedBy.Decode(dec)
}

// Encode implements scale.Encodeable.
func (v VersionHistory) Encode(enc scale.Encoder) error {
	if err := enc.Encode(v.Version); err != nil {
		return err
	}
	if err := enc.Encode(v.DatasetURI); err != nil {
		return err
	}
	if err := v.PayloadHash.Encode(enc); err != nil {
		return err
	}
	if err := enc.Encode(v.DatasetType); err != nil {
		return err
	}
	if err := enc.Encode(v.UpdatedAt); err != nil {
		return err
	}
	return v.UpdatedBy.Encode(enc)
}

// encodeCompact writes a SCALE compact-encoded unsigned integer.
func encodeCompact(enc scale.Encoder, v uint64) error {
	return enc.EncodeUintCompact(*new(big.Int).SetUint64(v))
}

// scaleEncode serializes a sequence of encode steps into one buffer.
func scaleEncode(steps ...func(scale.Encoder) error) ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	for _, step := range steps {
		if err := step(*enc); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// scaleDecoder wraps raw wire bytes for decoding.
func scaleDecoder(data []byte) *scale.Decoder {
	return scale.NewDecoder(bytes.NewReader(data))
}
