package statuslist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store errors.
var (
	ErrMappingNotFound = errors.New("status list mapping not found")
	ErrNoCurrentList   = errors.New("issuer has no published status list")
)

// Mapping ties an issued credential to its bit in the issuer's list.
// The index is immutable once assigned. ListCID records the document
// that was current at assignment time; it goes stale on republication
// and must not be used for revocation checks.
type Mapping struct {
	IssuerDID    string    `json:"issuerDid"`
	CredentialID string    `json:"credentialId"`
	Index        int       `json:"index"`
	ListCID      string    `json:"listCid"`
	AssignedAt   time.Time `json:"assignedAt"`
}

// Store is the persistence contract for status list bookkeeping.
// NextIndex must be an atomic read-modify-write per issuer: indices are
// never reused, even after revocation.
type Store interface {
	// NextIndex reserves and returns the next free bit index for the
	// issuer.
	NextIndex(issuerDID string) (int, error)

	// SaveMapping persists a credential-to-index mapping.
	SaveMapping(m *Mapping) error

	// GetMapping retrieves the mapping for a credential.
	GetMapping(credentialID string) (*Mapping, error)

	// ListMappingsForIssuer returns all mappings for an issuer.
	ListMappingsForIssuer(issuerDID string) ([]*Mapping, error)

	// GetCurrentCID returns the issuer's current status document address.
	GetCurrentCID(issuerDID string) (string, error)

	// SetCurrentCID updates the issuer's version pointer.
	SetCurrentCID(issuerDID, cid string) error
}

// state is the serialized form of a file-backed store.
type state struct {
	Counters map[string]int      `json:"counters"`
	Mappings map[string]*Mapping `json:"mappings"`
	Versions map[string]string   `json:"versions"`
}

func newState() *state {
	return &state{
		Counters: make(map[string]int),
		Mappings: make(map[string]*Mapping),
		Versions: make(map[string]string),
	}
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu sync.Mutex
	st *state
}

// NewMemoryStore creates an empty in-memory status list store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newState()}
}

// NextIndex reserves the next free index for the issuer.
func (s *MemoryStore) NextIndex(issuerDID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.st.Counters[issuerDID]
	s.st.Counters[issuerDID] = idx + 1
	return idx, nil
}

// SaveMapping persists a credential-to-index mapping.
func (s *MemoryStore) SaveMapping(m *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *m
	s.st.Mappings[m.CredentialID] = &clone
	return nil
}

// GetMapping retrieves the mapping for a credential.
func (s *MemoryStore) GetMapping(credentialID string) (*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.Mappings[credentialID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, credentialID)
	}
	clone := *m
	return &clone, nil
}

// ListMappingsForIssuer returns all mappings for an issuer.
func (s *MemoryStore) ListMappingsForIssuer(issuerDID string) ([]*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Mapping
	for _, m := range s.st.Mappings {
		if m.IssuerDID == issuerDID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

// GetCurrentCID returns the issuer's current status document address.
func (s *MemoryStore) GetCurrentCID(issuerDID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cid, ok := s.st.Versions[issuerDID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoCurrentList, issuerDID)
	}
	return cid, nil
}

// SetCurrentCID updates the issuer's version pointer.
func (s *MemoryStore) SetCurrentCID(issuerDID, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Versions[issuerDID] = cid
	return nil
}

// FileStore implements Store in a single JSON state file with atomic
// replace on every mutation. All mutations hold the store lock across
// the read-modify-write, so counter reservation is atomic within the
// process; cross-process deployments need a shared store instead.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed status list store.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create status list directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) load() (*state, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return newState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status list state: %w", err)
	}
	st := newState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to parse status list state: %w", err)
	}
	return st, nil
}

func (s *FileStore) save(st *state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status list state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write status list state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to commit status list state: %w", err)
	}
	return nil
}

// NextIndex reserves the next free index for the issuer and persists
// the counter before returning it.
func (s *FileStore) NextIndex(issuerDID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return 0, err
	}
	idx := st.Counters[issuerDID]
	st.Counters[issuerDID] = idx + 1
	if err := s.save(st); err != nil {
		return 0, err
	}
	return idx, nil
}

// SaveMapping persists a credential-to-index mapping.
func (s *FileStore) SaveMapping(m *Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	clone := *m
	st.Mappings[m.CredentialID] = &clone
	return s.save(st)
}

// GetMapping retrieves the mapping for a credential.
func (s *FileStore) GetMapping(credentialID string) (*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	m, ok := st.Mappings[credentialID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMappingNotFound, credentialID)
	}
	return m, nil
}

// ListMappingsForIssuer returns all mappings for an issuer.
func (s *FileStore) ListMappingsForIssuer(issuerDID string) ([]*Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []*Mapping
	for _, m := range st.Mappings {
		if m.IssuerDID == issuerDID {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetCurrentCID returns the issuer's current status document address.
func (s *FileStore) GetCurrentCID(issuerDID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return "", err
	}
	cid, ok := st.Versions[issuerDID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoCurrentList, issuerDID)
	}
	return cid, nil
}

// SetCurrentCID updates the issuer's version pointer.
func (s *FileStore) SetCurrentCID(issuerDID, cid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	st.Versions[issuerDID] = cid
	return s.save(st)
}
