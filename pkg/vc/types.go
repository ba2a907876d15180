// Package vc is the credential engine: it builds and signs JSON
// verifiable credentials for product passports, verifies third-party
// tokens, and consults the status list manager for revocation.
package vc

import (
	"bytes"
	"encoding/json"

	"github.com/fidesio/dpp-core/pkg/statuslist"
)

// Anchor records the on-chain coordinates of a credential's passport.
// It is metadata inside the credential, never signing material: the
// issuer's custody key signs, not the ledger account.
type Anchor struct {
	// Network identifies the chain the passport is anchored on.
	Network string `json:"network"`

	// Account is the ledger account that submitted the anchor.
	Account string `json:"account"`

	// Version counts re-anchorings of the same subject. Starts at 1 and
	// increments each time a credential is issued over a subject that
	// already carries an anchor.
	Version int `json:"version"`
}

// Document is the vc claim of an issued credential.
type Document struct {
	Context []string `json:"@context,omitempty"`
	Type    []string `json:"type"`

	// CredentialSubject is the passport payload: a single JSON object,
	// or an array of records for multi-event traceability credentials.
	CredentialSubject json.RawMessage `json:"credentialSubject"`

	// CredentialStatus is the revocation reference. Absent on
	// credentials issued before revocation support existed.
	CredentialStatus *statuslist.Entry `json:"credentialStatus,omitempty"`
}

// Claims is the signed JWT payload of a credential token.
type Claims struct {
	// Issuer is the issuing identity's DID.
	Issuer string `json:"iss"`

	// Subject identifies the product the credential describes.
	Subject string `json:"sub,omitempty"`

	// ID is the credential identifier (urn:uuid). Keys status list
	// mappings.
	ID string `json:"jti"`

	// NotBefore is the issuance instant (unix seconds).
	NotBefore int64 `json:"nbf"`

	// Expiry is the expiration instant (unix seconds), zero for
	// non-expiring credentials.
	Expiry int64 `json:"exp,omitempty"`

	// VC is the embedded credential document.
	VC Document `json:"vc"`

	// Anchor is set on multi-subject credentials, where no single
	// subject object can carry it. Single-subject credentials embed the
	// anchor inside the subject document instead.
	Anchor *Anchor `json:"anchor,omitempty"`
}

// Header is the decoded JOSE header of a credential token.
type Header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ,omitempty"`
	KeyID     string `json:"kid,omitempty"`
}

// Envelope is the decoded view of a credential token. Decoding does not
// verify; the envelope is re-derivable from the token at any time.
type Envelope struct {
	Header Header  `json:"header"`
	Claims *Claims `json:"claims"`

	// Token is the opaque compact JWS.
	Token string `json:"token"`
}

// MultiSubject reports whether the credential subject is an array of
// records rather than a single object.
func (d *Document) MultiSubject() bool {
	trimmed := bytes.TrimLeft(d.CredentialSubject, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
