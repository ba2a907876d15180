package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fidesio/dpp-core/pkg/custody"
	"github.com/fidesio/dpp-core/pkg/did"
)

// Registry errors.
var (
	// ErrMigrationRequiresMasterKey is fatal by design: a stored
	// plaintext seed with no master key to migrate it under is an
	// unrecoverable security gap, not a warning.
	ErrMigrationRequiresMasterKey = errors.New("identity record holds a plaintext seed but no master key is configured")

	ErrNoSigningKey = errors.New("identity has no signing key in custody")
)

// RegisterOptions configures identity registration.
type RegisterOptions struct {
	// Domain is the organization's domain for did:web identities.
	// Ignored when SelfCertifying is set.
	Domain string

	// PathSegments optionally scope the did:web document below the
	// domain (e.g. ["suppliers", "plant-7"]).
	PathSegments []string

	// DID registers an explicit pre-built identifier instead of
	// deriving one from Domain. Mutually exclusive with Domain.
	DID string

	// SelfCertifying registers a did:key identity derived from the
	// generated public key.
	SelfCertifying bool

	// OrgName is recorded in the identity metadata.
	OrgName string

	// Metadata is merged into the identity metadata.
	Metadata map[string]string
}

// Registry creates, persists and verifies issuer identities.
// Construct one per process and inject it; there is no package-level
// shared instance.
type Registry struct {
	store     Store
	custodian *custody.Custodian
	resolver  *Resolver
}

// NewRegistry creates a Registry. The custodian may be nil for
// read-only deployments; registration and signing then fail closed.
func NewRegistry(store Store, custodian *custody.Custodian, resolver *Resolver) *Registry {
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Registry{store: store, custodian: custodian, resolver: resolver}
}

// Register creates a new issuer identity: generates an Ed25519 seed,
// envelopes it immediately, and persists the record. The plaintext seed
// does not outlive this call.
func (r *Registry) Register(opts RegisterOptions) (*IssuerIdentity, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate seed: %w", err)
	}
	defer custody.Zero(seed)

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	var (
		identifier string
		method     Method
		status     Status
	)
	switch {
	case opts.SelfCertifying:
		identifier = did.NewKeyDID(pub)
		method = MethodKey
		// Self-certifying identities need no remote document.
		status = StatusVerified
	case opts.DID != "":
		parsed, err := did.Parse(opts.DID)
		if err != nil {
			return nil, err
		}
		if !parsed.IsWebDID() {
			return nil, fmt.Errorf("%w: explicit DID must be did:web", did.ErrUnsupportedMethod)
		}
		identifier = opts.DID
		method = MethodWeb
		status = StatusPending
	case opts.Domain != "":
		identifier = did.NewWebDID(opts.Domain, opts.PathSegments...)
		method = MethodWeb
		status = StatusPending
	default:
		return nil, errors.New("registration requires a domain, an explicit DID, or SelfCertifying")
	}

	if _, err := r.store.Get(identifier); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrIdentityExists, identifier)
	}

	envelope, err := r.custodian.Encrypt(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to envelope signing seed: %w", err)
	}

	metadata := make(map[string]string, len(opts.Metadata)+2)
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	if opts.OrgName != "" {
		metadata["organizationName"] = opts.OrgName
	}
	if opts.Domain != "" {
		metadata["domain"] = opts.Domain
	}

	now := time.Now().UTC()
	id := &IssuerIdentity{
		DID:           identifier,
		Method:        method,
		PublicKey:     append([]byte(nil), pub...),
		EncryptedSeed: envelope,
		Status:        status,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := r.store.Put(id); err != nil {
		return nil, err
	}
	return id, nil
}

// Get loads an identity, transparently migrating plaintext seeds from
// records written before envelope encryption. The migration is persisted
// before the identity is returned.
func (r *Registry) Get(didStr string) (*IssuerIdentity, error) {
	id, err := r.store.Get(didStr)
	if err != nil {
		return nil, err
	}

	if len(id.LegacySeed) > 0 {
		if r.custodian == nil {
			return nil, fmt.Errorf("%w: %s", ErrMigrationRequiresMasterKey, didStr)
		}
		envelope, err := r.custodian.Encrypt(id.LegacySeed)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate plaintext seed: %w", err)
		}
		custody.Zero(id.LegacySeed)
		id.LegacySeed = nil
		id.EncryptedSeed = envelope
		id.UpdatedAt = time.Now().UTC()
		if err := r.store.Put(id); err != nil {
			return nil, fmt.Errorf("failed to persist seed migration: %w", err)
		}
		log.Printf("identity %s: migrated plaintext seed to encrypted custody", didStr)
	}

	return id, nil
}

// List returns all stored identities without triggering migration.
func (r *Registry) List() ([]*IssuerIdentity, error) {
	return r.store.List()
}

// PatchMetadata merges the patch into the identity's metadata.
func (r *Registry) PatchMetadata(didStr string, patch map[string]string) error {
	return r.store.PatchMetadata(didStr, patch)
}

// ResolveURL maps a DID to its hosted document URL.
func (r *Registry) ResolveURL(didStr string) (string, error) {
	return r.resolver.ResolveURL(didStr)
}

// Verify runs a remote verification attempt for the identity and updates
// its state machine. A mismatch or fetch failure is a failed result with
// a human-readable reason, never an error that aborts the caller; the
// returned error is reserved for store failures.
func (r *Registry) Verify(ctx context.Context, didStr string) (*VerificationResult, error) {
	id, err := r.Get(didStr)
	if err != nil {
		return nil, err
	}

	id.LastAttemptAt = time.Now().UTC()

	if id.Method == MethodKey {
		// Self-certifying: the identifier embeds the key; re-check it.
		embedded, err := did.PublicKeyFromKeyDID(id.DID)
		if err != nil || !embedded.Equal(ed25519.PublicKey(id.PublicKey)) {
			return r.fail(id, "embedded key does not match stored key")
		}
		return r.pass(id)
	}

	doc, err := r.resolver.ResolveDocument(ctx, id.DID)
	if err != nil {
		return r.fail(id, err.Error())
	}

	if doc.ID != id.DID {
		return r.fail(id, fmt.Sprintf("document id mismatch: hosted %q, expected %q", doc.ID, id.DID))
	}
	if len(doc.VerificationMethod) == 0 {
		return r.fail(id, "document has no verification methods")
	}

	matched := false
	var reason string
	for _, vm := range doc.VerificationMethod {
		key, err := did.DecodeMultibaseKey(vm.PublicKeyMultibase)
		if err != nil {
			reason = fmt.Sprintf("verification method %s: %v", vm.ID, err)
			continue
		}
		if key.Equal(ed25519.PublicKey(id.PublicKey)) {
			matched = true
			break
		}
		reason = fmt.Sprintf("verification method %s: public key mismatch", vm.ID)
	}
	if !matched {
		if reason == "" {
			reason = "no verification method matches the stored key"
		}
		return r.fail(id, reason)
	}

	return r.pass(id)
}

func (r *Registry) pass(id *IssuerIdentity) (*VerificationResult, error) {
	id.Status = StatusVerified
	id.LastError = ""
	id.UpdatedAt = time.Now().UTC()
	if err := r.store.Put(id); err != nil {
		return nil, err
	}
	return &VerificationResult{Success: true, Status: StatusVerified}, nil
}

func (r *Registry) fail(id *IssuerIdentity, reason string) (*VerificationResult, error) {
	id.Status = StatusFailed
	id.LastError = reason
	id.UpdatedAt = time.Now().UTC()
	if err := r.store.Put(id); err != nil {
		return nil, err
	}
	return &VerificationResult{Success: false, Status: StatusFailed, Error: reason}, nil
}

// AuthorizeAccount grants a ledger account authority for the issuer.
// Idempotent: re-authorizing an existing (address, network) pair is a
// no-op. Authorization is independent of verification status.
func (r *Registry) AuthorizeAccount(didStr, address, network string) error {
	id, err := r.store.Get(didStr)
	if err != nil {
		return err
	}

	if id.IsAuthorized(address, network) {
		return nil
	}

	id.AuthorizedAccounts = append(id.AuthorizedAccounts, AuthorizedAccount{
		Address: address,
		Network: network,
		AddedAt: time.Now().UTC(),
	})
	id.UpdatedAt = time.Now().UTC()
	return r.store.Put(id)
}

// RevokeAccount removes a ledger account authorization. Removing an
// absent pair is a no-op.
func (r *Registry) RevokeAccount(didStr, address, network string) error {
	id, err := r.store.Get(didStr)
	if err != nil {
		return err
	}

	kept := id.AuthorizedAccounts[:0]
	for _, acc := range id.AuthorizedAccounts {
		if acc.Address == address && acc.Network == network {
			continue
		}
		kept = append(kept, acc)
	}
	if len(kept) == len(id.AuthorizedAccounts) {
		return nil
	}
	id.AuthorizedAccounts = kept
	id.UpdatedAt = time.Now().UTC()
	return r.store.Put(id)
}

// IsAuthorized checks the local authorization list.
func (r *Registry) IsAuthorized(didStr, address, network string) (bool, error) {
	id, err := r.store.Get(didStr)
	if err != nil {
		return false, err
	}
	return id.IsAuthorized(address, network), nil
}

// IsAuthorizedRemote checks the authorization-accounts service published
// in the issuer's hosted DID document. Used by verifiers that do not
// share this registry's store.
func (r *Registry) IsAuthorizedRemote(ctx context.Context, didStr, address, network string) (bool, error) {
	doc, err := r.resolver.ResolveDocument(ctx, didStr)
	if err != nil {
		return false, err
	}

	for _, svc := range doc.Service {
		if svc.Type != AuthorizedAccountsServiceType {
			continue
		}
		accounts, err := r.resolver.FetchAccounts(ctx, svc.ServiceEndpoint)
		if err != nil {
			return false, err
		}
		return accounts.HasAddress(address, network), nil
	}
	return false, nil
}

// SigningKey decrypts the issuer's seed and returns the Ed25519 private
// key. Fails closed when no master key is configured.
func (r *Registry) SigningKey(didStr string) (ed25519.PrivateKey, error) {
	id, err := r.Get(didStr)
	if err != nil {
		return nil, err
	}
	if id.EncryptedSeed == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSigningKey, didStr)
	}

	seed, err := r.custodian.Decrypt(id.EncryptedSeed)
	if err != nil {
		return nil, err
	}
	defer custody.Zero(seed)

	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("custody returned a %d-byte seed, want %d", len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// RotateKey replaces the issuer's signing key with a freshly generated
// one. Domain-hosted identities drop back to pending until the hosted
// document is updated and re-verified.
func (r *Registry) RotateKey(didStr string) (*IssuerIdentity, error) {
	id, err := r.Get(didStr)
	if err != nil {
		return nil, err
	}
	if id.Method == MethodKey {
		return nil, errors.New("did:key identities cannot rotate: the key is the identifier")
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate seed: %w", err)
	}
	defer custody.Zero(seed)

	envelope, err := r.custodian.Encrypt(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to envelope signing seed: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	id.PublicKey = append([]byte(nil), priv.Public().(ed25519.PublicKey)...)
	id.EncryptedSeed = envelope
	id.Status = StatusPending
	id.LastError = ""
	id.UpdatedAt = time.Now().UTC()

	if err := r.store.Put(id); err != nil {
		return nil, err
	}
	return id, nil
}
