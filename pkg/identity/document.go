package identity

// Document is a hosted DID document as served from the organization's
// domain (did.json). Only the fields this core consumes are modeled.
type Document struct {
	// Context is the JSON-LD context list.
	Context []string `json:"@context,omitempty"`

	// ID must equal the DID the document was resolved for.
	ID string `json:"id"`

	// VerificationMethod lists the public keys the organization controls.
	VerificationMethod []VerificationMethod `json:"verificationMethod"`

	// Authentication references verification method IDs.
	Authentication []string `json:"authentication,omitempty"`

	// Service lists auxiliary endpoints, including the authorized
	// accounts service consumed by remote authorization checks.
	Service []Service `json:"service,omitempty"`
}

// VerificationMethod is one public-key entry in a DID document.
type VerificationMethod struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Controller string `json:"controller"`

	// PublicKeyMultibase is the multibase (base58btc, Ed25519
	// multicodec) encoding of the public key.
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// Service is one service entry in a DID document.
type Service struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// AuthorizedAccountsServiceType is the service type whose endpoint
// serves an AccountsDocument.
const AuthorizedAccountsServiceType = "AuthorizedAccounts"

// AccountsDocument is the payload served by an authorized-accounts
// service endpoint.
type AccountsDocument struct {
	DID      string         `json:"did"`
	Accounts []AccountEntry `json:"accounts"`
}

// AccountEntry groups authorized addresses by network.
type AccountEntry struct {
	Network   string   `json:"network"`
	Addresses []string `json:"addresses"`
}

// HasAddress reports whether the document authorizes the address on the
// given network.
func (d *AccountsDocument) HasAddress(address, network string) bool {
	for _, entry := range d.Accounts {
		if entry.Network != network {
			continue
		}
		for _, a := range entry.Addresses {
			if a == address {
				return true
			}
		}
	}
	return false
}
