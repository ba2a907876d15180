package did_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/fidesio/dpp-core/pkg/did"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebDID(t *testing.T) {
	t.Run("bare domain", func(t *testing.T) {
		d, err := did.Parse("did:web:acme.example.com")
		require.NoError(t, err)
		assert.Equal(t, "web", d.Method)
		assert.Equal(t, "acme.example.com", d.Domain)
		assert.Empty(t, d.PathSegments)
		assert.True(t, d.IsWebDID())
	})

	t.Run("path scoped", func(t *testing.T) {
		d, err := did.Parse("did:web:acme.example.com:suppliers:plant-7")
		require.NoError(t, err)
		assert.Equal(t, "acme.example.com", d.Domain)
		assert.Equal(t, []string{"suppliers", "plant-7"}, d.PathSegments)
	})

	t.Run("encoded port", func(t *testing.T) {
		d, err := did.Parse("did:web:localhost%3A8080")
		require.NoError(t, err)
		assert.Equal(t, "localhost:8080", d.Domain)
	})
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", did.ErrInvalidDID},
		{"too few parts", "did:web", did.ErrInvalidDID},
		{"wrong prefix", "id:web:example.com", did.ErrInvalidDID},
		{"unsupported method", "did:ethr:0xabc", did.ErrUnsupportedMethod},
		{"bad multibase prefix", "did:key:abc", did.ErrInvalidKeyDID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := did.Parse(tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDocumentURL(t *testing.T) {
	t.Run("bare domain uses well-known path", func(t *testing.T) {
		d, err := did.Parse("did:web:acme.example.com")
		require.NoError(t, err)
		assert.Equal(t, "https://acme.example.com/.well-known/did.json", d.DocumentURL())
	})

	t.Run("path scoped uses per-path document", func(t *testing.T) {
		d, err := did.Parse("did:web:acme.example.com:suppliers:plant-7")
		require.NoError(t, err)
		assert.Equal(t, "https://acme.example.com/suppliers/plant-7/did.json", d.DocumentURL())
	})

	t.Run("localhost uses http", func(t *testing.T) {
		d, err := did.Parse("did:web:localhost%3A8080")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/.well-known/did.json", d.DocumentURL())
	})

	t.Run("did:key has no document", func(t *testing.T) {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		d, err := did.Parse(did.NewKeyDID(pub))
		require.NoError(t, err)
		assert.Empty(t, d.DocumentURL())
	})
}

func TestKeyDIDRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	s := did.NewKeyDID(pub)
	require.NotEmpty(t, s)
	assert.Contains(t, s, "did:key:z")

	d, err := did.Parse(s)
	require.NoError(t, err)
	assert.True(t, d.IsKeyDID())
	assert.Equal(t, []byte(pub), d.PublicKey)

	extracted, err := did.PublicKeyFromKeyDID(s)
	require.NoError(t, err)
	assert.Equal(t, pub, extracted)
}

func TestNewKeyDIDRejectsBadLength(t *testing.T) {
	assert.Empty(t, did.NewKeyDID(make([]byte, 31)))
	assert.Empty(t, did.NewKeyDID(make([]byte, 33)))
}

func TestMultibaseKeyRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	encoded := did.EncodeMultibaseKey(pub)
	require.NotEmpty(t, encoded)
	assert.Equal(t, byte('z'), encoded[0])

	decoded, err := did.DecodeMultibaseKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, pub, decoded)
}

func TestNewWebDID(t *testing.T) {
	assert.Equal(t, "did:web:acme.example.com", did.NewWebDID("acme.example.com"))
	assert.Equal(t, "did:web:acme.example.com:suppliers:plant-7", did.NewWebDID("acme.example.com", "suppliers", "plant-7"))
	assert.Equal(t, "did:web:localhost%3A8080", did.NewWebDID("localhost:8080"))
}
