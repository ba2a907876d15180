// Package cas defines the content-addressed blob store contract consumed
// by the status list manager and credential publication. The production
// deployment backs this with an external pinning service; the memory and
// file implementations here serve tests and single-node setups.
package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Common errors returned by this package.
var (
	ErrNotFound       = errors.New("blob not found")
	ErrInvalidAddress = errors.New("invalid blob address")
)

// addressPrefix identifies the digest scheme inside an address.
const addressPrefix = "sha256:"

// Store is a content-addressed blob store. Put returns the address of
// the stored bytes; Get retrieves them. Addresses are deterministic:
// storing the same bytes twice yields the same address.
type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
}

// Address computes the content address for a blob without storing it.
func Address(data []byte) string {
	sum := sha256.Sum256(data)
	return addressPrefix + hex.EncodeToString(sum[:])
}

// verify checks that an address is well-formed and, when data is
// non-nil, that it matches the content.
func verify(address string, data []byte) error {
	digest, ok := strings.CutPrefix(address, addressPrefix)
	if !ok || len(digest) != sha256.Size*2 {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if data != nil && Address(data) != address {
		return fmt.Errorf("%w: content does not match address %q", ErrInvalidAddress, address)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores the blob and returns its address.
func (s *MemoryStore) Put(_ context.Context, data []byte) (string, error) {
	addr := Address(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[addr] = stored

	return addr, nil
}

// Get retrieves a blob by address.
func (s *MemoryStore) Get(_ context.Context, address string) ([]byte, error) {
	if err := verify(address, nil); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// FileStore implements Store on the local filesystem, one file per blob.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a file-backed blob store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) blobPath(address string) string {
	// Addresses contain a ':' which is not filename-safe everywhere.
	return filepath.Join(s.dir, strings.ReplaceAll(address, ":", "_"))
}

// Put stores the blob with an atomic write-then-rename.
func (s *FileStore) Put(_ context.Context, data []byte) (string, error) {
	addr := Address(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.blobPath(addr)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return addr, nil
}

// Get retrieves a blob by address and re-verifies the content digest.
func (s *FileStore) Get(_ context.Context, address string) ([]byte, error) {
	if err := verify(address, nil); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.blobPath(address))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	if err := verify(address, data); err != nil {
		return nil, err
	}
	return data, nil
}
