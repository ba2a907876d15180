package statuslist

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusPurposeRevocation is the only status purpose this core publishes.
const StatusPurposeRevocation = "revocation"

// Credential is a published status list document. It follows the W3C
// bitstring status list shape; when the manager is given a signer the
// serialized form is a signed token instead of this bare JSON.
type Credential struct {
	Context      []string `json:"@context"`
	ID           string   `json:"id,omitempty"`
	Type         []string `json:"type"`
	Issuer       string   `json:"issuer"`
	IssuanceDate string   `json:"issuanceDate"`
	Subject      Subject  `json:"credentialSubject"`
}

// Subject carries the encoded bitstring of a status list credential.
type Subject struct {
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	Purpose     string `json:"statusPurpose"`
	EncodedList string `json:"encodedList"`
}

// Entry is the credentialStatus reference embedded into an issued
// credential. The StatusListCredential address points at the document
// that was current at issuance time; it is never updated afterwards,
// so verifiers must resolve the issuer's current version pointer
// instead of trusting it.
type Entry struct {
	ID         string `json:"id,omitempty"`
	Type       string `json:"type"`
	Purpose    string `json:"statusPurpose"`
	Index      string `json:"statusListIndex"`
	Credential string `json:"statusListCredential"`
}

// EntryType is the credentialStatus type value for bitstring entries.
const EntryType = "BitstringStatusListEntry"

// buildCredential assembles the status document for an issuer's
// bitstring.
func buildCredential(issuerDID string, bits *Bitstring) (*Credential, error) {
	encoded, err := bits.Encode()
	if err != nil {
		return nil, err
	}
	return &Credential{
		Context: []string{
			"https://www.w3.org/ns/credentials/v2",
		},
		Type:         []string{"VerifiableCredential", "BitstringStatusListCredential"},
		Issuer:       issuerDID,
		IssuanceDate: time.Now().UTC().Format(time.RFC3339),
		Subject: Subject{
			Type:        "BitstringStatusList",
			Purpose:     StatusPurposeRevocation,
			EncodedList: encoded,
		},
	}, nil
}

// parseCredential decodes a published status document and extracts its
// bitstring.
func parseCredential(data []byte) (*Credential, *Bitstring, error) {
	var doc Credential
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse status document: %w", err)
	}
	if doc.Subject.Purpose != StatusPurposeRevocation {
		return nil, nil, fmt.Errorf("unexpected status purpose %q", doc.Subject.Purpose)
	}
	bits, err := DecodeBitstring(doc.Subject.EncodedList)
	if err != nil {
		return nil, nil, err
	}
	return &doc, bits, nil
}
