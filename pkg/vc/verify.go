package vc

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"

	"github.com/fidesio/dpp-core/pkg/did"
	"github.com/fidesio/dpp-core/pkg/identity"
)

// VerifyOptions configures credential verification.
type VerifyOptions struct {
	// TrustedIssuers restricts accepted issuer DIDs. Empty accepts any
	// issuer whose signature verifies.
	TrustedIssuers []string

	// SkipStatusCheck disables the revocation check.
	SkipStatusCheck bool

	// RequireStatusCheck turns a failed revocation check into a hard
	// failure instead of a warning. Off by default: a storage outage
	// should not make verification all-or-nothing.
	RequireStatusCheck bool

	// Now overrides the current time (for testing).
	Now func() time.Time
}

// VerifyResult is the outcome of a verification. A failed verification
// is reported in Errors alongside the returned error; Warnings carry
// degraded-mode conditions on otherwise valid credentials.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Issuer   string `json:"issuer,omitempty"`

	IssuanceDate   time.Time `json:"issuanceDate,omitzero"`
	ExpirationDate time.Time `json:"expirationDate,omitzero"`

	Claims *Claims `json:"claims,omitempty"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Verify checks a credential token: signature against the resolved
// issuer key, validity window, and revocation state. The result is
// always non-nil; on failure the returned error is the coded cause and
// result.Errors mirrors it.
func (e *Engine) Verify(ctx context.Context, token string, opts VerifyOptions) (*VerifyResult, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	result := &VerifyResult{}

	// 1. Parse. Only EdDSA tokens are accepted.
	jwsObj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return fail(result, WrapError(ErrCodeMalformed, "failed to parse token", err))
	}

	// 2. Decode claims without trusting them, to learn the issuer.
	var unverified Claims
	if err := json.Unmarshal(jwsObj.UnsafePayloadWithoutVerification(), &unverified); err != nil {
		return fail(result, WrapError(ErrCodeMalformed, "failed to unmarshal claims", err))
	}
	if unverified.Issuer == "" {
		return fail(result, NewError(ErrCodeClaimsInvalid, "missing iss claim"))
	}
	result.Issuer = unverified.Issuer

	// 3. Resolve the issuer to candidate verification keys.
	kid := ""
	if len(jwsObj.Signatures) > 0 {
		kid = jwsObj.Signatures[0].Header.KeyID
	}
	keys, resolveErr := e.issuerKeys(ctx, unverified.Issuer, kid)
	if resolveErr != nil {
		return fail(result, resolveErr)
	}

	// 4. Verify the signature over the exact signing input.
	var payload []byte
	verified := false
	for _, key := range keys {
		if p, err := jwsObj.Verify(key); err == nil {
			payload = p
			verified = true
			break
		}
	}
	if !verified {
		return fail(result, NewError(ErrCodeSignatureInvalid, "signature does not match any issuer key"))
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return fail(result, WrapError(ErrCodeMalformed, "failed to unmarshal verified claims", err))
	}
	result.Claims = &claims
	result.IssuanceDate = time.Unix(claims.NotBefore, 0).UTC()
	if claims.Expiry != 0 {
		result.ExpirationDate = time.Unix(claims.Expiry, 0).UTC()
	}

	// 5. Validity window.
	nowUnix := now().Unix()
	if claims.Expiry != 0 && claims.Expiry <= nowUnix {
		return fail(result, NewError(ErrCodeExpired,
			fmt.Sprintf("credential expired at %s", result.ExpirationDate.Format(time.RFC3339))))
	}
	if claims.NotBefore > nowUnix {
		return fail(result, NewError(ErrCodeNotYetValid,
			fmt.Sprintf("credential not valid until %s", result.IssuanceDate.Format(time.RFC3339))))
	}

	// 6. Issuer allowlist.
	if len(opts.TrustedIssuers) > 0 {
		trusted := false
		for _, iss := range opts.TrustedIssuers {
			if claims.Issuer == iss {
				trusted = true
				break
			}
		}
		if !trusted {
			return fail(result, NewError(ErrCodeIssuerUnresolvable,
				fmt.Sprintf("issuer %s not in trusted list", claims.Issuer)))
		}
	}

	// 7. Revocation.
	if !opts.SkipStatusCheck {
		if err := e.checkStatus(ctx, &claims, opts, result); err != nil {
			return fail(result, err)
		}
	}

	result.Verified = true
	return result, nil
}

func fail(result *VerifyResult, err *Error) (*VerifyResult, error) {
	result.Errors = append(result.Errors, err.Error())
	return result, err
}

// issuerKeys resolves an issuer DID to its candidate Ed25519 keys.
// Self-certifying identifiers resolve locally; domain-hosted ones fetch
// the published document. When a kid names a hosted method, that key is
// tried first.
func (e *Engine) issuerKeys(ctx context.Context, issuer, kid string) ([]ed25519.PublicKey, *Error) {
	parsed, err := did.Parse(issuer)
	if err != nil {
		return nil, WrapError(ErrCodeIssuerUnresolvable, "invalid issuer DID", err)
	}

	if parsed.IsKeyDID() {
		key, err := did.PublicKeyFromKeyDID(issuer)
		if err != nil {
			return nil, WrapError(ErrCodeIssuerUnresolvable, "invalid did:key issuer", err)
		}
		return []ed25519.PublicKey{key}, nil
	}

	doc, err := e.resolver.ResolveDocument(ctx, issuer)
	if err != nil {
		if errors.Is(err, identity.ErrDocumentNotHosted) {
			return nil, WrapError(ErrCodeIssuerNotHosted,
				fmt.Sprintf("no DID document is hosted for %s; publish it at its deterministic URL", issuer), err)
		}
		return nil, WrapError(ErrCodeIssuerUnresolvable,
			fmt.Sprintf("failed to resolve issuer %s", issuer), err)
	}
	if doc.ID != issuer {
		return nil, NewError(ErrCodeIssuerUnresolvable,
			fmt.Sprintf("hosted document id %q does not match issuer %q", doc.ID, issuer))
	}

	var keys []ed25519.PublicKey
	for _, vm := range doc.VerificationMethod {
		key, err := did.DecodeMultibaseKey(vm.PublicKeyMultibase)
		if err != nil {
			continue
		}
		if kid != "" && vm.ID == kid {
			keys = append([]ed25519.PublicKey{key}, keys...)
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, NewError(ErrCodeIssuerUnresolvable,
			fmt.Sprintf("document for %s has no usable verification method", issuer))
	}
	return keys, nil
}

// checkStatus consults the status list. A set bit is a hard failure; an
// inability to check degrades to a warning unless the caller opted into
// RequireStatusCheck. A credential with no status entry at all is valid
// with a warning: such credentials predate revocation support.
func (e *Engine) checkStatus(ctx context.Context, claims *Claims, opts VerifyOptions, result *VerifyResult) *Error {
	if claims.VC.CredentialStatus == nil {
		result.Warnings = append(result.Warnings,
			"credential carries no revocation status entry")
		return nil
	}
	if e.status == nil {
		result.Warnings = append(result.Warnings,
			"Status List check skipped: no status list manager configured")
		return nil
	}

	revoked, err := e.status.IsRevoked(ctx, claims.ID)
	if err != nil {
		if opts.RequireStatusCheck {
			return WrapError(ErrCodeStatusCheckFailed, "revocation status could not be determined", err)
		}
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Status List check failed: %v", err))
		return nil
	}
	if revoked {
		return NewError(ErrCodeRevoked, fmt.Sprintf("credential %s has been revoked", claims.ID))
	}
	return nil
}

// Decode parses a token into its envelope without verifying anything.
// Decode is not verification: the claims are attacker-controlled until
// Verify succeeds.
func (e *Engine) Decode(token string) (*Envelope, error) {
	jwsObj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return nil, WrapError(ErrCodeMalformed, "failed to parse token", err)
	}

	var claims Claims
	if err := json.Unmarshal(jwsObj.UnsafePayloadWithoutVerification(), &claims); err != nil {
		return nil, WrapError(ErrCodeMalformed, "failed to unmarshal claims", err)
	}

	header := Header{}
	if len(jwsObj.Signatures) > 0 {
		h := jwsObj.Signatures[0].Header
		header.Algorithm = h.Algorithm
		header.KeyID = h.KeyID
		if typ, ok := h.ExtraHeaders[jose.HeaderType].(string); ok {
			header.Type = typ
		}
	}

	return &Envelope{Header: header, Claims: &claims, Token: token}, nil
}
