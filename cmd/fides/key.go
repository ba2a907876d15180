package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fidesio/dpp-core/pkg/did"
	"github.com/go-jose/go-jose/v4"
	"github.com/spf13/cobra"
)

var (
	keyOutPrivate string
	keyOutPublic  string
	keyShowDID    bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage cryptographic keys",
}

var keyGenCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a new Ed25519 key pair",
	Long: `Generate a new Ed25519 key pair for credential signing.

Outputs:
  - Private key in JWK format (for signing credentials)
  - Public key in JWK format (for verification)
  - did:key identifier (for self-certifying issuers)

The did:key identifier encodes the public key with the Ed25519
multicodec prefix and can be used directly as an issuer DID without
hosting a DID document.`,
	Example: `  # Generate keys with default names
  fides key gen

  # Generate keys with custom names
  fides key gen --out-priv issuer.key.jwk --out-pub issuer.pub.jwk

  # Only print the did:key (for scripting)
  fides key gen --show-did`,
	RunE: func(_ *cobra.Command, _ []string) error {
		// 1. Generate key pair
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}

		// 2. Derive the did:key identifier and use it as the kid
		didKey := did.NewKeyDID(pub)

		privJwk := jose.JSONWebKey{
			Key:       priv,
			KeyID:     didKey,
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		}
		pubJwk := jose.JSONWebKey{
			Key:       pub,
			KeyID:     didKey,
			Algorithm: string(jose.EdDSA),
			Use:       "sig",
		}

		// 3. Save both halves
		privBytes, err := json.MarshalIndent(privJwk, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(keyOutPrivate, privBytes, 0600); err != nil {
			return fmt.Errorf("failed to write private key: %w", err)
		}
		fmt.Printf("Private key saved to %s\n", keyOutPrivate)

		pubBytes, err := json.MarshalIndent(pubJwk, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(keyOutPublic, pubBytes, 0644); err != nil {
			return fmt.Errorf("failed to write public key: %w", err)
		}
		fmt.Printf("Public key saved to %s\n", keyOutPublic)

		if keyShowDID {
			fmt.Println(didKey)
		} else {
			fmt.Printf("did:key: %s\n", didKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyGenCmd)

	keyGenCmd.Flags().StringVar(&keyOutPrivate, "out-priv", "private.jwk", "Output path for private key (JWK format)")
	keyGenCmd.Flags().StringVar(&keyOutPublic, "out-pub", "public.jwk", "Output path for public key (JWK format)")
	keyGenCmd.Flags().BoolVar(&keyShowDID, "show-did", false, "Only output did:key to stdout (for scripting)")
}
