package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fidesio/dpp-core/pkg/did"
)

// Resolution errors. ErrDocumentNotHosted is a distinguished class: it
// means the DID is syntactically valid but nothing is published at its
// document URL yet, which has an actionable fix for operators.
var (
	ErrDocumentNotHosted   = errors.New("DID document is not yet hosted")
	ErrResolutionTimeout   = errors.New("DID resolution timed out")
	ErrResolutionFailed    = errors.New("DID resolution failed")
	ErrNoRemoteDocument    = errors.New("DID method has no remote document")
	ErrInsecureDocumentURL = errors.New("refusing to resolve over plain HTTP (set AllowHTTP for local testing)")
)

// DefaultResolveTimeout bounds every remote document fetch.
const DefaultResolveTimeout = 10 * time.Second

// Resolver fetches hosted DID documents and authorization-accounts
// documents over HTTPS.
type Resolver struct {
	// Client is the HTTP client used for fetches. Its timeout applies
	// when the caller's context carries no deadline.
	Client *http.Client

	// AllowHTTP permits plain-HTTP document URLs. Intended for local and
	// test deployments only; localhost URLs are always allowed.
	AllowHTTP bool
}

// NewResolver creates a Resolver with the default timeout.
func NewResolver() *Resolver {
	return &Resolver{
		Client: &http.Client{Timeout: DefaultResolveTimeout},
	}
}

// ResolveURL maps a DID to its hosted document URL.
func (r *Resolver) ResolveURL(didStr string) (string, error) {
	parsed, err := did.Parse(didStr)
	if err != nil {
		return "", err
	}
	if !parsed.IsWebDID() {
		return "", fmt.Errorf("%w: %s", ErrNoRemoteDocument, didStr)
	}
	return parsed.DocumentURL(), nil
}

// ResolveDocument fetches and decodes the DID document for a did:web
// identifier. A timeout is surfaced as ErrResolutionTimeout, a 404 as
// ErrDocumentNotHosted, and any other failure as ErrResolutionFailed.
func (r *Resolver) ResolveDocument(ctx context.Context, didStr string) (*Document, error) {
	docURL, err := r.ResolveURL(didStr)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(docURL, "http://") && !r.AllowHTTP && !isLocalURL(docURL) {
		return nil, ErrInsecureDocumentURL
	}

	var doc Document
	if err := r.fetchJSON(ctx, docURL, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FetchAccounts fetches the authorization-accounts document from a
// service endpoint found in a DID document.
func (r *Resolver) FetchAccounts(ctx context.Context, endpoint string) (*AccountsDocument, error) {
	var doc AccountsDocument
	if err := r.fetchJSON(ctx, endpoint, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *Resolver) fetchJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: %s", ErrResolutionTimeout, url)
		}
		return fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrDocumentNotHosted, url)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrResolutionFailed, url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: invalid JSON from %s: %v", ErrResolutionFailed, url, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isLocalURL(url string) bool {
	return strings.HasPrefix(url, "http://localhost") || strings.HasPrefix(url, "http://127.0.0.1")
}
