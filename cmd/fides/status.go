package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	revokeIssuer string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Manage credential revocation status",
	Long: `Manage bitstring status lists.

Each issuer maintains one revocation list. Revoking a credential sets
its bit and republishes the list; checks always read the issuer's
current list version, so a revocation is visible immediately.`,
}

var statusRevokeCmd = &cobra.Command{
	Use:     "revoke <credential-id>",
	Short:   "Revoke a credential",
	Example: `  fides status revoke urn:uuid:a1b2... --issuer did:web:supplier.example.com`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if revokeIssuer == "" {
			return fmt.Errorf("--issuer is required")
		}
		manager, err := openStatus()
		if err != nil {
			return err
		}

		cid, err := manager.Revoke(cmd.Context(), revokeIssuer, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Revoked %s\n", args[0])
		fmt.Printf("   New status list version: %s\n", cid)
		return nil
	},
}

var statusCheckCmd = &cobra.Command{
	Use:   "check <credential-id>",
	Short: "Check whether a credential is revoked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := openStatus()
		if err != nil {
			return err
		}

		revoked, err := manager.IsRevoked(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if revoked {
			fmt.Printf("REVOKED: %s\n", args[0])
			return nil
		}
		fmt.Printf("Active: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.AddCommand(statusRevokeCmd)
	statusCmd.AddCommand(statusCheckCmd)

	statusRevokeCmd.Flags().StringVar(&revokeIssuer, "issuer", "", "Issuer DID that owns the credential")
}
