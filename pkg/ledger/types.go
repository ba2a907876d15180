// Package ledger anchors passports on chain through the dpp ink!
// contract. Reads go through the dry-run runtime API; state changes go
// through signed extrinsics, always dry-run first.
package ledger

import (
	"time"
)

// Granularity is the scope of a passport: a whole product class, a
// production batch, or an individual item. Immutable once registered.
type Granularity uint8

const (
	GranularityProductClass Granularity = 0
	GranularityBatch        Granularity = 1
	GranularityItem         Granularity = 2
)

// String returns the API-facing name of the granularity.
func (g Granularity) String() string {
	switch g {
	case GranularityProductClass:
		return "class"
	case GranularityBatch:
		return "batch"
	case GranularityItem:
		return "item"
	}
	return "unknown"
}

// ParseGranularity maps an API-facing name to its wire variant.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "class", "product-class":
		return GranularityProductClass, nil
	case "batch":
		return GranularityBatch, nil
	case "item":
		return GranularityItem, nil
	}
	return 0, NewError(ErrCodeInvalidInput, "unknown granularity: "+s)
}

// PassportStatus is the technical lifecycle state of an anchor, not a
// product lifecycle stage.
type PassportStatus uint8

const (
	StatusDraft     PassportStatus = 0
	StatusActive    PassportStatus = 1
	StatusSuspended PassportStatus = 2
	StatusRevoked   PassportStatus = 3
	StatusArchived  PassportStatus = 4
)

// String returns the API-facing name of the status.
func (s PassportStatus) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	case StatusRevoked:
		return "revoked"
	case StatusArchived:
		return "archived"
	}
	return "unknown"
}

// Hash is a 32-byte payload digest as stored on chain.
type Hash [32]byte

// Address is the contract-native 20-byte account form. Substrate
// 32-byte accounts bridge to it by hashing and truncation.
type Address [20]byte

// AccountID is the ledger-native 32-byte account form.
type AccountID [32]byte

// PassportRecord is the on-chain anchor for one passport token.
type PassportRecord struct {
	TokenID       uint64
	Issuer        Address
	DatasetURI    string
	PayloadHash   Hash
	DatasetType   string
	Version       uint32
	Status        PassportStatus
	CreatedAt     uint32 // block number
	UpdatedAt     uint32 // block number
	Granularity   Granularity
	SubjectIDHash *Hash
}

// VersionHistory is one append-only version entry for a passport.
type VersionHistory struct {
	Version     uint32
	DatasetURI  string
	PayloadHash Hash
	DatasetType string
	UpdatedAt   uint32 // block number
	UpdatedBy   Address
}

// Registration is the input to Register. PayloadHash accepts a hex
// string with or without 0x, or raw 32 bytes; it is normalized before
// any network round-trip.
type Registration struct {
	DatasetURI    string
	PayloadHash   any
	DatasetType   string
	Granularity   Granularity
	SubjectIDHash any // optional; same forms as PayloadHash, nil for none
}

// RegisterResult is the outcome of a successful registration.
type RegisterResult struct {
	TokenID     uint64
	TxHash      string
	BlockNumber uint32
}

// SubmitResult is the outcome of a successful mutating call.
type SubmitResult struct {
	TxHash      string
	BlockNumber uint32
}

// DefaultCallTimeout bounds each ledger round-trip when the caller's
// context carries no deadline.
const DefaultCallTimeout = 30 * time.Second
