package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fidesio/dpp-core/pkg/custody"
	"github.com/fidesio/dpp-core/pkg/did"
)

func testCustodian(t *testing.T) *custody.Custodian {
	t.Helper()
	master := make([]byte, 32)
	for i := range master {
		master[i] = byte(i)
	}
	c, err := custody.New(master)
	require.NoError(t, err)
	return c
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	resolver := &Resolver{Client: http.DefaultClient, AllowHTTP: true}
	return NewRegistry(NewMemoryStore(), testCustodian(t), resolver)
}

// serveDocument hosts a DID document on a local test server and returns
// the did:web identifier the server answers for.
func serveDocument(t *testing.T, doc *Document) (*httptest.Server, string) {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	webDID := did.NewWebDID(u.Host)

	if doc.ID == "" {
		doc.ID = webDID
	}
	mux.HandleFunc("/.well-known/did.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})

	return server, webDID
}

func TestRegisterSelfCertifying(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Register(RegisterOptions{SelfCertifying: true, OrgName: "Acme GmbH"})
	require.NoError(t, err)

	assert.Equal(t, MethodKey, id.Method)
	assert.Equal(t, StatusVerified, id.Status, "did:key needs no hosted document")
	assert.True(t, strings.HasPrefix(id.DID, "did:key:z"))
	assert.Len(t, id.PublicKey, ed25519.PublicKeySize)
	assert.NotNil(t, id.EncryptedSeed)
	assert.Nil(t, id.LegacySeed)
	assert.Equal(t, "Acme GmbH", id.Metadata["organizationName"])

	// The enveloped seed must reproduce the advertised public key.
	priv, err := reg.SigningKey(id.DID)
	require.NoError(t, err)
	assert.Equal(t, ed25519.PublicKey(id.PublicKey), priv.Public())
}

func TestRegisterWebIdentity(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Register(RegisterOptions{Domain: "acme.example.com", OrgName: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, "did:web:acme.example.com", id.DID)
	assert.Equal(t, MethodWeb, id.Method)
	assert.Equal(t, StatusPending, id.Status)
	assert.Equal(t, "acme.example.com", id.Metadata["domain"])

	docURL, err := reg.ResolveURL(id.DID)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.example.com/.well-known/did.json", docURL)
}

func TestRegisterDuplicate(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.Register(RegisterOptions{Domain: "acme.example.com"})
	require.NoError(t, err)

	_, err = reg.Register(RegisterOptions{Domain: "acme.example.com"})
	assert.ErrorIs(t, err, ErrIdentityExists)
}

func TestRegisterRequiresTarget(t *testing.T) {
	reg := testRegistry(t)
	_, err := reg.Register(RegisterOptions{})
	assert.Error(t, err)
}

func TestRegisterWithoutMasterKeyFailsClosed(t *testing.T) {
	resolver := &Resolver{Client: http.DefaultClient, AllowHTTP: true}
	reg := NewRegistry(NewMemoryStore(), nil, resolver)

	_, err := reg.Register(RegisterOptions{SelfCertifying: true})
	assert.ErrorIs(t, err, custody.ErrNoMasterKey)
}

func TestVerifyHostedDocument(t *testing.T) {
	reg := testRegistry(t)

	doc := &Document{}
	_, webDID := serveDocument(t, doc)

	id, err := reg.Register(RegisterOptions{DID: webDID})
	require.NoError(t, err)
	require.Equal(t, StatusPending, id.Status)

	doc.VerificationMethod = []VerificationMethod{{
		ID:                 webDID + "#key-1",
		Type:               "Ed25519VerificationKey2020",
		Controller:         webDID,
		PublicKeyMultibase: did.EncodeMultibaseKey(id.PublicKey),
	}}

	result, err := reg.Verify(context.Background(), webDID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StatusVerified, result.Status)

	stored, err := reg.Get(webDID)
	require.NoError(t, err)
	assert.Equal(t, StatusVerified, stored.Status)
	assert.Empty(t, stored.LastError)
	assert.False(t, stored.LastAttemptAt.IsZero())
}

func TestVerifyKeyMismatch(t *testing.T) {
	reg := testRegistry(t)

	otherPub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	doc := &Document{}
	_, webDID := serveDocument(t, doc)

	id, err := reg.Register(RegisterOptions{DID: webDID})
	require.NoError(t, err)

	// Hosted document advertises a key we do not hold.
	doc.VerificationMethod = []VerificationMethod{{
		ID:                 webDID + "#key-1",
		PublicKeyMultibase: did.EncodeMultibaseKey(otherPub),
	}}

	result, err := reg.Verify(context.Background(), webDID)
	require.NoError(t, err, "a mismatch is a failed result, not an error")
	assert.False(t, result.Success)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "mismatch")

	stored, err := reg.Get(webDID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Contains(t, stored.LastError, "mismatch")

	// Fixing the hosted document moves the identity back to verified.
	doc.VerificationMethod[0].PublicKeyMultibase = did.EncodeMultibaseKey(id.PublicKey)
	result, err = reg.Verify(context.Background(), webDID)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestVerifyDocumentIDMismatch(t *testing.T) {
	reg := testRegistry(t)

	doc := &Document{ID: "did:web:somewhere.else"}
	_, webDID := serveDocument(t, doc)

	_, err := reg.Register(RegisterOptions{DID: webDID})
	require.NoError(t, err)

	result, err := reg.Verify(context.Background(), webDID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "document id mismatch")
}

func TestVerifyDocumentNotHosted(t *testing.T) {
	reg := testRegistry(t)

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	webDID := did.NewWebDID(u.Host)

	_, err = reg.Register(RegisterOptions{DID: webDID})
	require.NoError(t, err)

	result, err := reg.Verify(context.Background(), webDID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not yet hosted")
}

func TestVerifySelfCertifying(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Register(RegisterOptions{SelfCertifying: true})
	require.NoError(t, err)

	result, err := reg.Verify(context.Background(), id.DID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StatusVerified, result.Status)
}

func TestLegacySeedMigration(t *testing.T) {
	store := NewMemoryStore()
	custodian := testCustodian(t)
	reg := NewRegistry(store, custodian, &Resolver{Client: http.DefaultClient, AllowHTTP: true})

	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(0x40 + i)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	legacy := &IssuerIdentity{
		DID:        "did:web:legacy.example.com",
		Method:     MethodWeb,
		PublicKey:  priv.Public().(ed25519.PublicKey),
		LegacySeed: append([]byte(nil), seed...),
		Status:     StatusVerified,
	}
	require.NoError(t, store.Put(legacy))

	id, err := reg.Get(legacy.DID)
	require.NoError(t, err)
	assert.Nil(t, id.LegacySeed)
	require.NotNil(t, id.EncryptedSeed)

	// The migration is persisted, not just applied in memory.
	persisted, err := store.Get(legacy.DID)
	require.NoError(t, err)
	assert.Nil(t, persisted.LegacySeed)
	assert.NotNil(t, persisted.EncryptedSeed)

	// The migrated envelope decrypts back to the original key.
	got, err := reg.SigningKey(legacy.DID)
	require.NoError(t, err)
	assert.Equal(t, priv.Public(), got.Public())
}

func TestLegacySeedMigrationWithoutMasterKey(t *testing.T) {
	store := NewMemoryStore()
	reg := NewRegistry(store, nil, &Resolver{Client: http.DefaultClient, AllowHTTP: true})

	require.NoError(t, store.Put(&IssuerIdentity{
		DID:        "did:web:legacy.example.com",
		Method:     MethodWeb,
		LegacySeed: make([]byte, ed25519.SeedSize),
	}))

	_, err := reg.Get("did:web:legacy.example.com")
	assert.ErrorIs(t, err, ErrMigrationRequiresMasterKey)
}

func TestAuthorizeAccount(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Register(RegisterOptions{Domain: "acme.example.com"})
	require.NoError(t, err)

	require.NoError(t, reg.AuthorizeAccount(id.DID, "0xAb01", "moonbase-alpha"))
	require.NoError(t, reg.AuthorizeAccount(id.DID, "0xAb01", "moonbase-alpha"), "re-authorizing is a no-op")
	require.NoError(t, reg.AuthorizeAccount(id.DID, "0xAb01", "moonbeam"))

	stored, err := reg.Get(id.DID)
	require.NoError(t, err)
	assert.Len(t, stored.AuthorizedAccounts, 2)

	ok, err := reg.IsAuthorized(id.DID, "0xAb01", "moonbase-alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.IsAuthorized(id.DID, "0xAb01", "astar")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reg.RevokeAccount(id.DID, "0xAb01", "moonbase-alpha"))
	require.NoError(t, reg.RevokeAccount(id.DID, "0xAb01", "moonbase-alpha"), "re-revoking is a no-op")

	ok, err = reg.IsAuthorized(id.DID, "0xAb01", "moonbase-alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsAuthorizedRemote(t *testing.T) {
	reg := testRegistry(t)

	doc := &Document{}
	server, webDID := serveDocument(t, doc)
	doc.Service = []Service{{
		ID:              webDID + "#accounts",
		Type:            AuthorizedAccountsServiceType,
		ServiceEndpoint: server.URL + "/accounts.json",
	}}

	mux := server.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("/accounts.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(AccountsDocument{
			DID: webDID,
			Accounts: []AccountEntry{
				{Network: "moonbase-alpha", Addresses: []string{"0xAb01", "0xAb02"}},
			},
		})
	})

	ok, err := reg.IsAuthorizedRemote(context.Background(), webDID, "0xAb02", "moonbase-alpha")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reg.IsAuthorizedRemote(context.Background(), webDID, "0xAb02", "moonbeam")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRotateKey(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Register(RegisterOptions{Domain: "acme.example.com"})
	require.NoError(t, err)
	oldKey := append([]byte(nil), id.PublicKey...)

	rotated, err := reg.RotateKey(id.DID)
	require.NoError(t, err)
	assert.NotEqual(t, oldKey, rotated.PublicKey)
	assert.Equal(t, StatusPending, rotated.Status, "hosted document must be re-verified after rotation")

	priv, err := reg.SigningKey(id.DID)
	require.NoError(t, err)
	assert.Equal(t, ed25519.PublicKey(rotated.PublicKey), priv.Public())
}

func TestRotateKeyRejectedForKeyDID(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Register(RegisterOptions{SelfCertifying: true})
	require.NoError(t, err)

	_, err = reg.RotateKey(id.DID)
	assert.Error(t, err)
}

func TestPatchMetadata(t *testing.T) {
	reg := testRegistry(t)

	id, err := reg.Register(RegisterOptions{Domain: "acme.example.com", Metadata: map[string]string{
		"pilot": "battery-2026",
	}})
	require.NoError(t, err)

	require.NoError(t, reg.PatchMetadata(id.DID, map[string]string{
		"pilot":   "",
		"contact": "ops@acme.example.com",
	}))

	stored, err := reg.Get(id.DID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Metadata, "pilot")
	assert.Equal(t, "ops@acme.example.com", stored.Metadata["contact"])
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	id := &IssuerIdentity{
		DID:       "did:web:acme.example.com:suppliers:plant-7",
		Method:    MethodWeb,
		PublicKey: make([]byte, ed25519.PublicKeySize),
		Status:    StatusPending,
	}
	require.NoError(t, store.Put(id))

	got, err := store.Get(id.DID)
	require.NoError(t, err)
	assert.Equal(t, id.DID, got.DID)
	assert.Equal(t, StatusPending, got.Status)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.Get("did:web:unknown.example.com")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}
