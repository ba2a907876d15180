// Package did provides parsing and construction of DID identifiers for
// issuer organizations. Two methods are supported: did:web (a document
// hosted under the organization's domain) and did:key (self-certifying,
// the Ed25519 public key is embedded in the identifier).
package did

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Common errors returned by this package.
var (
	ErrInvalidDID         = errors.New("invalid DID format")
	ErrUnsupportedMethod  = errors.New("unsupported DID method (only did:web and did:key supported)")
	ErrInvalidKeyDID      = errors.New("invalid did:key format")
	ErrUnsupportedKeyType = errors.New("unsupported key type in did:key (only Ed25519 supported)")
)

// Ed25519PublicKeySize is the size of an Ed25519 public key in bytes.
const Ed25519PublicKeySize = 32

// ed25519Multicodec is the varint-encoded multicodec prefix for Ed25519
// public keys (0xed01).
var ed25519Multicodec = []byte{0xed, 0x01}

// DID represents a parsed DID identifier.
//
// For did:web: did:web:<domain>[:<path-segment>...]
// For did:key: did:key:z<base58btc(multicodec || public_key)>
type DID struct {
	// Method is the DID method ("web" or "key").
	Method string

	// Domain is the domain hosting the DID Document (did:web only).
	Domain string

	// PathSegments are the optional path segments after the domain
	// (did:web only), used for path-scoped organization documents.
	PathSegments []string

	// PublicKey is the Ed25519 public key (did:key only, 32 bytes).
	PublicKey []byte

	// Raw is the original DID string.
	Raw string
}

// Parse parses a DID identifier into its components.
//
// Returns ErrInvalidDID if the format is invalid.
// Returns ErrUnsupportedMethod if the method is not "web" or "key".
//
// Examples:
//   - did:web:acme.example.com
//   - did:web:acme.example.com:suppliers:plant-7
//   - did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK
func Parse(s string) (*DID, error) {
	if s == "" {
		return nil, ErrInvalidDID
	}

	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: expected at least 3 parts, got %d", ErrInvalidDID, len(parts))
	}

	if parts[0] != "did" {
		return nil, fmt.Errorf("%w: must start with 'did:'", ErrInvalidDID)
	}

	switch parts[1] {
	case "web":
		return parseWebDID(parts)
	case "key":
		return parseKeyDID(parts)
	default:
		return nil, fmt.Errorf("%w: got did:%s", ErrUnsupportedMethod, parts[1])
	}
}

func parseWebDID(parts []string) (*DID, error) {
	// did:web percent-encodes special characters in the domain.
	domain, err := url.PathUnescape(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid domain encoding: %v", ErrInvalidDID, err)
	}
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrInvalidDID)
	}

	return &DID{
		Method:       "web",
		Domain:       domain,
		PathSegments: parts[3:],
		Raw:          strings.Join(parts, ":"),
	}, nil
}

func parseKeyDID(parts []string) (*DID, error) {
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: did:key must have exactly 3 parts", ErrInvalidKeyDID)
	}

	multibase := parts[2]
	if multibase == "" {
		return nil, fmt.Errorf("%w: empty key identifier", ErrInvalidKeyDID)
	}

	// Multibase 'z' prefix indicates base58btc.
	if multibase[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' (base58btc) prefix, got '%c'", ErrInvalidKeyDID, multibase[0])
	}

	decoded, err := base58Decode(multibase[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58btc encoding: %v", ErrInvalidKeyDID, err)
	}

	publicKey, err := stripMulticodec(decoded)
	if err != nil {
		return nil, err
	}

	return &DID{
		Method:    "key",
		PublicKey: publicKey,
		Raw:       strings.Join(parts, ":"),
	}, nil
}

// stripMulticodec validates the Ed25519 multicodec prefix and returns the
// raw 32-byte public key.
func stripMulticodec(decoded []byte) ([]byte, error) {
	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: decoded value too short", ErrInvalidKeyDID)
	}
	if decoded[0] != ed25519Multicodec[0] || decoded[1] != ed25519Multicodec[1] {
		return nil, fmt.Errorf("%w: expected Ed25519 multicodec (0xed01), got 0x%02x%02x", ErrUnsupportedKeyType, decoded[0], decoded[1])
	}
	publicKey := decoded[2:]
	if len(publicKey) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrInvalidKeyDID, Ed25519PublicKeySize, len(publicKey))
	}
	return publicKey, nil
}

// String returns the canonical DID string.
func (d *DID) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	if d.Method == "key" && len(d.PublicKey) > 0 {
		return NewKeyDID(d.PublicKey)
	}
	parts := []string{"did", d.Method, url.PathEscape(d.Domain)}
	parts = append(parts, d.PathSegments...)
	return strings.Join(parts, ":")
}

// DocumentURL returns the URL of the hosted DID Document per the did:web
// method:
//
//	did:web:acme.example.com              → https://acme.example.com/.well-known/did.json
//	did:web:acme.example.com:suppliers:x  → https://acme.example.com/suppliers/x/did.json
//
// Returns empty string for did:key (no remote document).
// Uses HTTP for localhost domains, HTTPS otherwise.
func (d *DID) DocumentURL() string {
	if d.Method != "web" {
		return ""
	}

	domain := d.Domain
	if decoded, err := url.PathUnescape(domain); err == nil {
		domain = decoded
	}

	scheme := "https"
	if strings.HasPrefix(domain, "localhost") || strings.HasPrefix(domain, "127.0.0.1") {
		scheme = "http"
	}

	if len(d.PathSegments) == 0 {
		return fmt.Sprintf("%s://%s/.well-known/did.json", scheme, domain)
	}
	return fmt.Sprintf("%s://%s/%s/did.json", scheme, domain, strings.Join(d.PathSegments, "/"))
}

// IsKeyDID returns true if this is a did:key identifier.
func (d *DID) IsKeyDID() bool {
	return d.Method == "key"
}

// IsWebDID returns true if this is a did:web identifier.
func (d *DID) IsWebDID() bool {
	return d.Method == "web"
}

// GetPublicKey returns the embedded Ed25519 public key for did:key
// identifiers, nil for did:web.
func (d *DID) GetPublicKey() ed25519.PublicKey {
	if d.Method != "key" || len(d.PublicKey) != Ed25519PublicKeySize {
		return nil
	}
	return ed25519.PublicKey(d.PublicKey)
}

// NewWebDID constructs a did:web identifier for an organization domain,
// optionally scoped by path segments.
func NewWebDID(domain string, pathSegments ...string) string {
	encoded := url.PathEscape(domain)
	// Colons in the domain (ports) must be percent-encoded per did:web.
	encoded = strings.ReplaceAll(encoded, ":", "%3A")
	parts := append([]string{"did", "web", encoded}, pathSegments...)
	return strings.Join(parts, ":")
}

// NewKeyDID constructs a did:key identifier from an Ed25519 public key.
// Format: did:key:z<base58btc(0xed01 || public_key)>
// Returns empty string if the key is not 32 bytes.
func NewKeyDID(publicKey []byte) string {
	if len(publicKey) != Ed25519PublicKeySize {
		return ""
	}

	prefixed := make([]byte, 0, 2+len(publicKey))
	prefixed = append(prefixed, ed25519Multicodec...)
	prefixed = append(prefixed, publicKey...)

	return "did:key:z" + base58Encode(prefixed)
}

// PublicKeyFromKeyDID extracts the Ed25519 public key from a did:key
// identifier.
func PublicKeyFromKeyDID(s string) (ed25519.PublicKey, error) {
	parsed, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if parsed.Method != "key" {
		return nil, fmt.Errorf("%w: expected did:key, got did:%s", ErrInvalidKeyDID, parsed.Method)
	}
	if len(parsed.PublicKey) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: invalid public key size", ErrInvalidKeyDID)
	}
	return ed25519.PublicKey(parsed.PublicKey), nil
}

// EncodeMultibaseKey encodes an Ed25519 public key in the multibase form
// used by DID Document verification methods (publicKeyMultibase).
func EncodeMultibaseKey(publicKey []byte) string {
	if len(publicKey) != Ed25519PublicKeySize {
		return ""
	}
	prefixed := make([]byte, 0, 2+len(publicKey))
	prefixed = append(prefixed, ed25519Multicodec...)
	prefixed = append(prefixed, publicKey...)
	return "z" + base58Encode(prefixed)
}

// DecodeMultibaseKey decodes a publicKeyMultibase value into the raw
// 32-byte Ed25519 public key.
func DecodeMultibaseKey(s string) (ed25519.PublicKey, error) {
	if s == "" || s[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' multibase prefix", ErrInvalidKeyDID)
	}
	decoded, err := base58Decode(s[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58btc encoding: %v", ErrInvalidKeyDID, err)
	}
	key, err := stripMulticodec(decoded)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(key), nil
}

// base58Alphabet is the Bitcoin Base58 alphabet.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func base58Encode(input []byte) string {
	if len(input) == 0 {
		return ""
	}

	leadingZeros := 0
	for _, b := range input {
		if b != 0 {
			break
		}
		leadingZeros++
	}

	// base58 grows the size by approximately 137/100.
	buf := make([]byte, len(input)*138/100+1)

	var length int
	for _, b := range input {
		carry := int(b)
		for i := 0; i < length || carry != 0; i++ {
			if i < length {
				carry += 256 * int(buf[i])
			}
			buf[i] = byte(carry % 58)
			carry /= 58
			if i >= length {
				length = i + 1
			}
		}
	}

	result := make([]byte, leadingZeros+length)
	for i := 0; i < leadingZeros; i++ {
		result[i] = '1'
	}
	for i := 0; i < length; i++ {
		result[leadingZeros+i] = base58Alphabet[buf[length-1-i]]
	}

	return string(result)
}

func base58Decode(input string) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	alphabetMap := make(map[rune]int)
	for i, c := range base58Alphabet {
		alphabetMap[c] = i
	}

	leadingOnes := 0
	for _, c := range input {
		if c != '1' {
			break
		}
		leadingOnes++
	}

	buf := make([]byte, len(input)*733/1000+1)

	var length int
	for _, c := range input {
		val, ok := alphabetMap[c]
		if !ok {
			return nil, fmt.Errorf("invalid base58 character: %c", c)
		}

		carry := val
		for i := 0; i < length || carry != 0; i++ {
			if i < length {
				carry += 58 * int(buf[i])
			}
			buf[i] = byte(carry % 256)
			carry /= 256
			if i >= length {
				length = i + 1
			}
		}
	}

	result := make([]byte, leadingOnes+length)
	for i := 0; i < length; i++ {
		result[leadingOnes+i] = buf[length-1-i]
	}

	return result, nil
}
