package statuslist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fidesio/dpp-core/pkg/cas"
)

// Signer optionally signs a status document before publication. The
// returned bytes replace the bare JSON as the published blob.
type Signer func(doc *Credential) ([]byte, error)

// Manager assigns revocation indices, maintains per-issuer bitstrings,
// and publishes status documents to content-addressed storage.
//
// Construct one per process and inject it; revocation checks always go
// through the issuer's current version pointer, never through the
// address embedded in a credential.
type Manager struct {
	store Store
	blobs cas.Store

	// Sign, when set, signs documents before publication. Nil publishes
	// bare JSON.
	Sign Signer

	// Decode, when set, recovers the document from a published blob
	// produced by Sign. Nil assumes bare JSON.
	Decode func(data []byte) (*Credential, error)
}

// NewManager creates a status list manager.
func NewManager(store Store, blobs cas.Store) *Manager {
	return &Manager{store: store, blobs: blobs}
}

// AssignIndex reserves a revocation bit for a credential and returns the
// credentialStatus entry to embed. The entry's document address is the
// issuer's list as published at assignment time; republication does not
// rewrite issued credentials. Re-assigning a credential that already has
// a mapping returns the existing entry.
func (m *Manager) AssignIndex(ctx context.Context, issuerDID, credentialID string) (*Entry, error) {
	if existing, err := m.store.GetMapping(credentialID); err == nil {
		return m.entryFor(existing), nil
	}

	cid, err := m.store.GetCurrentCID(issuerDID)
	switch {
	case errors.Is(err, ErrNoCurrentList):
		// First assignment for this issuer: publish an empty list so the
		// embedded reference resolves from day one. Only the no-list-yet
		// case bootstraps; publishing an empty list over a transient store
		// error would wipe the issuer's revocation state.
		cid, err = m.publish(ctx, issuerDID, NewBitstring())
		if err != nil {
			return nil, fmt.Errorf("failed to publish initial status list: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read current status list: %w", err)
	}

	index, err := m.store.NextIndex(issuerDID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve status list index: %w", err)
	}

	mapping := &Mapping{
		IssuerDID:    issuerDID,
		CredentialID: credentialID,
		Index:        index,
		ListCID:      cid,
		AssignedAt:   time.Now().UTC(),
	}
	if err := m.store.SaveMapping(mapping); err != nil {
		return nil, fmt.Errorf("failed to persist status list mapping: %w", err)
	}
	return m.entryFor(mapping), nil
}

func (m *Manager) entryFor(mapping *Mapping) *Entry {
	return &Entry{
		ID:         mapping.ListCID + "#" + strconv.Itoa(mapping.Index),
		Type:       EntryType,
		Purpose:    StatusPurposeRevocation,
		Index:      strconv.Itoa(mapping.Index),
		Credential: mapping.ListCID,
	}
}

// Revoke flips the credential's bit, republishes the issuer's status
// document, and advances the version pointer. Returns the new document
// address. Revoking an already-revoked credential republishes the same
// bit state and is harmless.
func (m *Manager) Revoke(ctx context.Context, issuerDID, credentialID string) (string, error) {
	mapping, err := m.store.GetMapping(credentialID)
	if err != nil {
		return "", err
	}
	if mapping.IssuerDID != issuerDID {
		return "", fmt.Errorf("credential %s belongs to %s, not %s", credentialID, mapping.IssuerDID, issuerDID)
	}

	bits, err := m.currentBitstring(ctx, issuerDID)
	if err != nil {
		return "", err
	}
	if err := bits.Set(mapping.Index, true); err != nil {
		return "", err
	}

	cid, err := m.publish(ctx, issuerDID, bits)
	if err != nil {
		return "", fmt.Errorf("failed to publish status list: %w", err)
	}
	return cid, nil
}

// IsRevoked reports whether the credential's bit is set in the issuer's
// current status document. The current version pointer is the source of
// truth; the address stored in the mapping (and embedded in the
// credential) may be stale.
func (m *Manager) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	mapping, err := m.store.GetMapping(credentialID)
	if err != nil {
		return false, err
	}

	bits, err := m.currentBitstring(ctx, mapping.IssuerDID)
	if err != nil {
		return false, err
	}
	return bits.Bit(mapping.Index), nil
}

// CurrentCID returns the issuer's current status document address.
func (m *Manager) CurrentCID(issuerDID string) (string, error) {
	return m.store.GetCurrentCID(issuerDID)
}

func (m *Manager) currentBitstring(ctx context.Context, issuerDID string) (*Bitstring, error) {
	cid, err := m.store.GetCurrentCID(issuerDID)
	if err != nil {
		return nil, err
	}
	data, err := m.blobs.Get(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status document %s: %w", cid, err)
	}
	if m.Decode != nil {
		doc, err := m.Decode(data)
		if err != nil {
			return nil, err
		}
		return DecodeBitstring(doc.Subject.EncodedList)
	}

	_, bits, err := parseCredential(data)
	if err != nil {
		return nil, err
	}
	return bits, nil
}

func (m *Manager) publish(ctx context.Context, issuerDID string, bits *Bitstring) (string, error) {
	doc, err := buildCredential(issuerDID, bits)
	if err != nil {
		return "", err
	}

	var payload []byte
	if m.Sign != nil {
		payload, err = m.Sign(doc)
	} else {
		payload, err = json.Marshal(doc)
	}
	if err != nil {
		return "", fmt.Errorf("failed to serialize status document: %w", err)
	}

	cid, err := m.blobs.Put(ctx, payload)
	if err != nil {
		return "", err
	}
	if err := m.store.SetCurrentCID(issuerDID, cid); err != nil {
		return "", err
	}
	return cid, nil
}
