package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Common errors returned by identity stores.
var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityExists   = errors.New("identity already exists")
)

// Store is the persistence contract for issuer identities. Put must be
// at least an atomic single-key replace.
type Store interface {
	// Get retrieves an identity by DID.
	Get(did string) (*IssuerIdentity, error)

	// List returns all stored identities.
	List() ([]*IssuerIdentity, error)

	// Put inserts or replaces an identity record.
	Put(identity *IssuerIdentity) error

	// PatchMetadata merges the patch into the identity's metadata.
	// An empty value in the patch deletes the key.
	PatchMetadata(did string, patch map[string]string) error
}

// FileStore implements Store with one JSON file per identity.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// DefaultIdentityDir returns the default identity store directory.
func DefaultIdentityDir() string {
	if envPath := os.Getenv("FIDES_IDENTITY_PATH"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fides/identities"
	}
	return filepath.Join(home, ".fides", "identities")
}

// NewFileStore creates a file-based identity store.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = DefaultIdentityDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) identityPath(did string) string {
	return filepath.Join(s.dir, sanitizeFilename(did)+".json")
}

// Get retrieves an identity by DID.
func (s *FileStore) Get(did string) (*IssuerIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(did)
}

func (s *FileStore) read(did string) (*IssuerIdentity, error) {
	data, err := os.ReadFile(s.identityPath(did))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, did)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}

	var id IssuerIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("failed to parse identity record: %w", err)
	}
	return &id, nil
}

// List returns all stored identities.
func (s *FileStore) List() ([]*IssuerIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity directory: %w", err)
	}

	var ids []*IssuerIdentity
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var id IssuerIdentity
		if err := json.Unmarshal(data, &id); err != nil {
			continue
		}
		ids = append(ids, &id)
	}

	return ids, nil
}

// Put inserts or replaces an identity record. The write is atomic: the
// record is written to a temp file and renamed into place.
func (s *FileStore) Put(identity *IssuerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(identity)
}

func (s *FileStore) write(identity *IssuerIdentity) error {
	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	path := s.identityPath(identity.DID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit identity: %w", err)
	}
	return nil
}

// PatchMetadata merges the patch into the identity's metadata.
func (s *FileStore) PatchMetadata(did string, patch map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.read(did)
	if err != nil {
		return err
	}

	if id.Metadata == nil {
		id.Metadata = make(map[string]string)
	}
	for k, v := range patch {
		if v == "" {
			delete(id.Metadata, k)
			continue
		}
		id.Metadata[k] = v
	}
	id.UpdatedAt = time.Now().UTC()

	return s.write(id)
}

// sanitizeFilename converts a DID to a safe filename.
func sanitizeFilename(did string) string {
	var b strings.Builder
	b.Grow(len(did))
	for _, c := range did {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '%':
			b.WriteByte('_')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu         sync.RWMutex
	identities map[string]*IssuerIdentity
}

// NewMemoryStore creates an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{identities: make(map[string]*IssuerIdentity)}
}

// Get retrieves an identity by DID.
func (s *MemoryStore) Get(did string) (*IssuerIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identities[did]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIdentityNotFound, did)
	}
	clone := *id
	return &clone, nil
}

// List returns all stored identities.
func (s *MemoryStore) List() ([]*IssuerIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]*IssuerIdentity, 0, len(s.identities))
	for _, id := range s.identities {
		clone := *id
		ids = append(ids, &clone)
	}
	return ids, nil
}

// Put inserts or replaces an identity record.
func (s *MemoryStore) Put(identity *IssuerIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *identity
	s.identities[identity.DID] = &clone
	return nil
}

// PatchMetadata merges the patch into the identity's metadata.
func (s *MemoryStore) PatchMetadata(did string, patch map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.identities[did]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIdentityNotFound, did)
	}
	if id.Metadata == nil {
		id.Metadata = make(map[string]string)
	}
	for k, v := range patch {
		if v == "" {
			delete(id.Metadata, k)
			continue
		}
		id.Metadata[k] = v
	}
	id.UpdatedAt = time.Now().UTC()
	return nil
}
