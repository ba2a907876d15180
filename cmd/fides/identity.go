package main

import (
	"fmt"
	"strings"

	"github.com/fidesio/dpp-core/pkg/identity"
	"github.com/spf13/cobra"
)

var (
	registerDomain string
	registerPath   string
	registerDID    string
	registerSelf   bool
	registerOrg    string

	authorizeAccount string
	authorizeNetwork string
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage issuer identities",
	Long: `Manage issuer identities.

An issuer identity binds a DID (did:web or did:key) to an Ed25519
signing key held in encrypted custody. did:web identities must host
their DID document before they verify; did:key identities are
self-certifying and verify immediately.`,
}

var identityRegisterCmd = &cobra.Command{
	Use:     "register",
	Short:   "Register a new issuer identity",
	Example: `  # Domain-bound identity (must host its DID document to verify)
  fides identity register --domain supplier.example.com --org "Supplier GmbH"

  # Path-scoped below the domain
  fides identity register --domain supplier.example.com --path suppliers,plant-7

  # Self-certifying did:key identity (no hosting required)
  fides identity register --self`,
	RunE: func(_ *cobra.Command, _ []string) error {
		registry, _, err := openRegistry()
		if err != nil {
			return err
		}

		opts := identity.RegisterOptions{
			Domain:         registerDomain,
			DID:            registerDID,
			SelfCertifying: registerSelf,
			OrgName:        registerOrg,
		}
		if registerPath != "" {
			opts.PathSegments = strings.Split(registerPath, ",")
		}

		ident, err := registry.Register(opts)
		if err != nil {
			return err
		}

		fmt.Printf("Registered %s\n", ident.DID)
		fmt.Printf("   Method: %s\n", ident.Method)
		fmt.Printf("   Status: %s\n", ident.Status)
		if ident.Method == identity.MethodWeb {
			url, err := registry.ResolveURL(ident.DID)
			if err == nil {
				fmt.Printf("   Host the DID document at: %s\n", url)
				fmt.Printf("   Then run: fides identity verify %s\n", ident.DID)
			}
		}
		return nil
	},
}

var identityVerifyCmd = &cobra.Command{
	Use:   "verify <did>",
	Short: "Verify an issuer identity against its hosted DID document",
	Long: `Verify an issuer identity.

For did:web identities this fetches the DID document from its
deterministic URL and checks that it carries the registered public key.
A mismatch or missing document marks the identity failed; it can be
re-verified at any time after the document is fixed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, _, err := openRegistry()
		if err != nil {
			return err
		}

		result, err := registry.Verify(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if result.Success {
			fmt.Printf("Verified: %s\n", args[0])
			fmt.Printf("   Status: %s\n", result.Status)
			return nil
		}
		fmt.Printf("Verification failed: %s\n", args[0])
		fmt.Printf("   Status: %s\n", result.Status)
		fmt.Printf("   Reason: %s\n", result.Error)
		return fmt.Errorf("identity did not verify")
	},
}

var identityAuthorizeCmd = &cobra.Command{
	Use:   "authorize <did>",
	Short: "Authorize a ledger account for an issuer identity",
	Long: `Record a ledger account as authorized to anchor passports on
behalf of an issuer identity. The account list is per network.`,
	Example: `  fides identity authorize did:web:supplier.example.com \
    --account 0x1234... --network polkadot-test`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if authorizeAccount == "" {
			return fmt.Errorf("--account is required")
		}
		registry, _, err := openRegistry()
		if err != nil {
			return err
		}

		if err := registry.AuthorizeAccount(args[0], authorizeAccount, authorizeNetwork); err != nil {
			return err
		}
		fmt.Printf("Authorized %s on %s for %s\n", authorizeAccount, authorizeNetwork, args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(identityCmd)
	identityCmd.AddCommand(identityRegisterCmd)
	identityCmd.AddCommand(identityVerifyCmd)
	identityCmd.AddCommand(identityAuthorizeCmd)

	identityRegisterCmd.Flags().StringVar(&registerDomain, "domain", "", "Organization domain for did:web")
	identityRegisterCmd.Flags().StringVar(&registerPath, "path", "", "Comma-separated path segments below the domain")
	identityRegisterCmd.Flags().StringVar(&registerDID, "did", "", "Explicit did:web identifier (instead of --domain)")
	identityRegisterCmd.Flags().BoolVar(&registerSelf, "self", false, "Register a self-certifying did:key identity")
	identityRegisterCmd.Flags().StringVar(&registerOrg, "org", "", "Organization name recorded in metadata")

	identityAuthorizeCmd.Flags().StringVar(&authorizeAccount, "account", "", "Ledger account address to authorize")
	identityAuthorizeCmd.Flags().StringVar(&authorizeNetwork, "network", "polkadot-test", "Ledger network the account belongs to")
}
