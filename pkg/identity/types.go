// Package identity manages organizational issuer identities: creation,
// encrypted key custody, remote DID document verification, and the
// authorized-accounts lists that grant ledger submission authority.
package identity

import (
	"time"

	"github.com/fidesio/dpp-core/pkg/custody"
)

// Method is the DID method backing an issuer identity.
type Method string

const (
	// MethodWeb is a domain-hosted identity (did:web). The organization
	// publishes a DID document under its domain and verification checks
	// the hosted key against the locally stored one.
	MethodWeb Method = "web"

	// MethodKey is a self-certifying identity (did:key). The public key
	// is embedded in the identifier; no remote verification is needed.
	MethodKey Method = "key"
)

// Status is the verification state of an issuer identity.
type Status string

const (
	// StatusUnverified is the zero state before registration completes.
	StatusUnverified Status = "unverified"

	// StatusPending means the identity is registered but its hosted
	// document has not yet been checked.
	StatusPending Status = "pending"

	// StatusVerified means the hosted document matched the stored key.
	StatusVerified Status = "verified"

	// StatusFailed means the last verification attempt failed; LastError
	// carries the reason. A later attempt may move it back to verified.
	StatusFailed Status = "failed"
)

// AuthorizedAccount grants a ledger account the authority to submit
// transactions on the issuer's behalf. Distinct from the signing key.
type AuthorizedAccount struct {
	// Address is the ledger account address (SS58 or hex).
	Address string `json:"address"`

	// Network identifies the chain the authority applies to.
	Network string `json:"network"`

	// AddedAt is when the authorization was granted.
	AddedAt time.Time `json:"addedAt"`
}

// IssuerIdentity is one organizational or self-certifying signer.
// Identities are never physically deleted; failed verification attempts
// and revoked authorizations remain observable in the record.
type IssuerIdentity struct {
	// DID is the identity's decentralized identifier.
	DID string `json:"did"`

	// Method is immutable after creation.
	Method Method `json:"method"`

	// PublicKey is the Ed25519 public key (32 bytes).
	PublicKey []byte `json:"publicKey"`

	// EncryptedSeed is the AES-256-GCM envelope around the Ed25519 seed.
	// Nil for identities whose private key is held elsewhere.
	EncryptedSeed *custody.EncryptedKey `json:"encryptedSeed,omitempty"`

	// LegacySeed holds an unencrypted seed from records written before
	// envelope encryption existed. It is migrated to EncryptedSeed on
	// first read and must never be written by new code.
	LegacySeed []byte `json:"privateKeySeed,omitempty"`

	// Status is the verification state machine position.
	Status Status `json:"status"`

	// LastError is the reason for the most recent failed verification.
	LastError string `json:"lastError,omitempty"`

	// LastAttemptAt is when verification was last attempted.
	LastAttemptAt time.Time `json:"lastAttemptAt,omitzero"`

	// AuthorizedAccounts is the ordered list of ledger accounts allowed
	// to act for this issuer.
	AuthorizedAccounts []AuthorizedAccount `json:"authorizedAccounts,omitempty"`

	// Metadata carries free-form organization data (name, domain, pilot
	// markers, trusted-supplier allowlist).
	Metadata map[string]string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsAuthorized reports whether the (address, network) pair is in the
// identity's authorization list.
func (id *IssuerIdentity) IsAuthorized(address, network string) bool {
	for _, acc := range id.AuthorizedAccounts {
		if acc.Address == address && acc.Network == network {
			return true
		}
	}
	return false
}

// VerificationResult is the outcome of a verification attempt. A failed
// attempt is a result, not an error: Error carries the human-readable
// reason and the identity record is updated either way.
type VerificationResult struct {
	Success bool   `json:"success"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
}
