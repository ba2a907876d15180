package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fidesio/dpp-core/pkg/cas"
	"github.com/fidesio/dpp-core/pkg/custody"
	"github.com/fidesio/dpp-core/pkg/identity"
	"github.com/fidesio/dpp-core/pkg/statuslist"
	"github.com/fidesio/dpp-core/pkg/vc"
)

// fidesHome returns the state directory: FIDES_HOME, or ~/.fides.
func fidesHome() (string, error) {
	if dir := os.Getenv("FIDES_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".fides"), nil
}

// openRegistry wires the identity registry over the CLI's file store.
// The custodian comes from FIDES_MASTER_KEY; without it, registration
// and signing fail closed while reads still work.
func openRegistry() (*identity.Registry, *identity.Resolver, error) {
	home, err := fidesHome()
	if err != nil {
		return nil, nil, err
	}
	store, err := identity.NewFileStore(filepath.Join(home, "identities"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	custodian, err := custody.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	resolver := identity.NewResolver()
	return identity.NewRegistry(store, custodian, resolver), resolver, nil
}

// openStatus wires the status list manager over the CLI's file-backed
// state and blob store.
func openStatus() (*statuslist.Manager, error) {
	home, err := fidesHome()
	if err != nil {
		return nil, err
	}
	store, err := statuslist.NewFileStore(filepath.Join(home, "status.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open status list store: %w", err)
	}
	blobs, err := cas.NewFileStore(filepath.Join(home, "blobs"))
	if err != nil {
		return nil, fmt.Errorf("failed to open blob store: %w", err)
	}
	return statuslist.NewManager(store, blobs), nil
}

// openEngine wires the full credential engine.
func openEngine() (*vc.Engine, error) {
	registry, resolver, err := openRegistry()
	if err != nil {
		return nil, err
	}
	status, err := openStatus()
	if err != nil {
		return nil, err
	}
	return vc.NewEngine(registry, resolver, status), nil
}
