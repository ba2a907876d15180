// Package main is the entry point for the Fides CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fides",
	Short: "Fides Product Passport CLI",
	Long: `Issue and verify anchored product passport credentials.
Manages issuer identities, signs verifiable credentials, and maintains
bitstring status lists for revocation.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
