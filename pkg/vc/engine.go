package vc

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"

	"github.com/fidesio/dpp-core/pkg/did"
	"github.com/fidesio/dpp-core/pkg/identity"
	"github.com/fidesio/dpp-core/pkg/statuslist"
)

// CredentialType is the credential-specific type value alongside
// VerifiableCredential.
const CredentialType = "ProductPassportCredential"

// credentialContext is the JSON-LD context list for issued credentials.
var credentialContext = []string{"https://www.w3.org/ns/credentials/v2"}

// Engine issues, verifies and decodes product passport credentials.
// Construct one per process and inject it.
type Engine struct {
	identities *identity.Registry
	resolver   *identity.Resolver
	status     *statuslist.Manager

	// Now overrides the clock (for testing).
	Now func() time.Time
}

// NewEngine creates a credential engine. The status list manager may be
// nil; issuance then produces credentials without revocation entries and
// verification reports their absence as a warning.
func NewEngine(identities *identity.Registry, resolver *identity.Resolver, status *statuslist.Manager) *Engine {
	if resolver == nil {
		resolver = identity.NewResolver()
	}
	return &Engine{identities: identities, resolver: resolver, status: status}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// IssueOptions configures credential issuance.
type IssueOptions struct {
	// Subject is the sub claim: the product identifier the credential
	// describes. When empty, the subject document's "id" field is used.
	Subject string

	// LedgerAccount and Network locate the on-chain anchor recorded in
	// the credential. Empty LedgerAccount issues without an anchor.
	LedgerAccount string
	Network       string

	// Expiry sets a validity window. Zero issues a non-expiring
	// credential.
	Expiry time.Duration

	// CredentialID overrides the generated urn:uuid jti.
	CredentialID string

	// SkipStatus issues without a revocation entry even when a status
	// list manager is configured.
	SkipStatus bool
}

// IssueResult is the outcome of a successful issuance.
type IssueResult struct {
	// Envelope is the decoded view of the issued credential.
	Envelope *Envelope

	// Warnings lists non-fatal degradations (status list unavailable).
	Warnings []string
}

// Issue builds, signs and returns a credential over the subject
// document. The subject is a single JSON object, or a JSON array of
// records for multi-event traceability credentials; arrays take the
// compact signing path where the anchor lives at claim level.
func (e *Engine) Issue(ctx context.Context, subject json.RawMessage, issuerDID string, opts IssueOptions) (*IssueResult, error) {
	key, err := e.identities.SigningKey(issuerDID)
	if err != nil {
		return nil, err
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, WrapError(ErrCodeUnsupportedKey,
			fmt.Sprintf("signing key is %d bytes, want %d", len(key), ed25519.PrivateKeySize), nil)
	}

	credentialID := opts.CredentialID
	if credentialID == "" {
		credentialID = "urn:uuid:" + uuid.NewString()
	}

	result := &IssueResult{}
	claims := &Claims{
		Issuer:    issuerDID,
		Subject:   opts.Subject,
		ID:        credentialID,
		NotBefore: e.now().Unix(),
		VC: Document{
			Context: credentialContext,
			Type:    []string{"VerifiableCredential", CredentialType},
		},
	}
	if opts.Expiry > 0 {
		claims.Expiry = e.now().Add(opts.Expiry).Unix()
	}

	doc := Document{CredentialSubject: subject}
	if doc.MultiSubject() {
		// Compact path: the subject array is signed as-is and the anchor
		// cannot live inside any single record.
		var records []json.RawMessage
		if err := json.Unmarshal(subject, &records); err != nil {
			return nil, WrapError(ErrCodeClaimsInvalid, "subject array is not valid JSON", err)
		}
		claims.VC.CredentialSubject = subject
		if opts.LedgerAccount != "" {
			claims.Anchor = &Anchor{Network: opts.Network, Account: opts.LedgerAccount, Version: 1}
		}
	} else {
		embedded, sub, err := embedAnchor(subject, opts)
		if err != nil {
			return nil, err
		}
		claims.VC.CredentialSubject = embedded
		if claims.Subject == "" {
			claims.Subject = sub
		}
	}

	if e.status != nil && !opts.SkipStatus {
		entry, err := e.status.AssignIndex(ctx, issuerDID, credentialID)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Status List assignment failed: %v", err))
		} else {
			claims.VC.CredentialStatus = entry
		}
	}

	kid := e.selectKeyID(ctx, issuerDID, key.Public().(ed25519.PublicKey))

	token, err := signClaims(claims, key, kid)
	if err != nil {
		return nil, err
	}

	result.Envelope = &Envelope{
		Header: Header{Algorithm: string(jose.EdDSA), Type: tokenType, KeyID: kid},
		Claims: claims,
		Token:  token,
	}
	return result, nil
}

// embedAnchor merges anchor metadata into a single-subject document,
// preserving and incrementing any prior anchor's version counter. The
// second return value is the subject document's own id, if present.
func embedAnchor(subject json.RawMessage, opts IssueOptions) (json.RawMessage, string, error) {
	var m map[string]any
	if err := json.Unmarshal(subject, &m); err != nil {
		return nil, "", WrapError(ErrCodeClaimsInvalid, "subject document is not a JSON object", err)
	}

	sub, _ := m["id"].(string)

	if opts.LedgerAccount == "" {
		return subject, sub, nil
	}

	version := 1
	if prior, ok := m["anchor"].(map[string]any); ok {
		if v, ok := prior["version"].(float64); ok {
			version = int(v) + 1
		}
	}
	m["anchor"] = Anchor{Network: opts.Network, Account: opts.LedgerAccount, Version: version}

	embedded, err := json.Marshal(m)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal subject document: %w", err)
	}
	return embedded, sub, nil
}

const tokenType = "vc+jwt"

// selectKeyID picks a verification-method identifier for the kid header.
// Domain-hosted identities can publish the same key under several
// representations; naming the hosted method lets verifiers match it
// directly. Resolution failure just omits the kid.
func (e *Engine) selectKeyID(ctx context.Context, issuerDID string, pub ed25519.PublicKey) string {
	parsed, err := did.Parse(issuerDID)
	if err != nil {
		return ""
	}

	if parsed.IsKeyDID() {
		return issuerDID + "#" + strings.TrimPrefix(issuerDID, "did:key:")
	}

	doc, err := e.resolver.ResolveDocument(ctx, issuerDID)
	if err != nil {
		return ""
	}
	for _, vm := range doc.VerificationMethod {
		key, err := did.DecodeMultibaseKey(vm.PublicKeyMultibase)
		if err != nil {
			continue
		}
		if key.Equal(pub) {
			return vm.ID
		}
	}
	return ""
}

func signClaims(claims *Claims, key ed25519.PrivateKey, kid string) (string, error) {
	signerOpts := (&jose.SignerOptions{}).WithType(tokenType)
	if kid != "" {
		signerOpts = signerOpts.WithHeader(jose.HeaderKey("kid"), kid)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key}, signerOpts)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	jwsObj, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	token, err := jwsObj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize JWS: %w", err)
	}
	return token, nil
}
