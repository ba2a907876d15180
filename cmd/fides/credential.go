package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fidesio/dpp-core/pkg/vc"
	"github.com/spf13/cobra"
)

var (
	issueIssuer     string
	issueSubject    string
	issueSubjectIn  string
	issueAccount    string
	issueNetwork    string
	issueExpiry     time.Duration
	issueSkipStatus bool

	verifyTrustedIssuers string
	verifySkipStatus     bool
	verifyRequireStatus  bool
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Issue, verify and decode product passport credentials",
	Long: `Issue, verify and decode product passport credentials.

Credentials are EdDSA-signed JWS tokens (vc+jwt). Issuance embeds the
on-chain anchor in the subject, attaches a revocation status entry, and
signs with the issuer identity's custodied key.`,
}

// readSubject loads the credential subject JSON from a file or stdin.
func readSubject(path string) (json.RawMessage, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read subject document: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("subject document is not valid JSON")
	}
	return data, nil
}

var credentialIssueCmd = &cobra.Command{
	Use:     "issue",
	Short:   "Issue a signed product passport credential",
	Example: `  # Issue over a subject document, anchored on chain
  fides credential issue --issuer did:web:supplier.example.com \
    --subject-file passport.json \
    --account 0x1234... --network polkadot-test

  # Issue without an anchor (subject file from stdin)
  cat passport.json | fides credential issue --issuer did:key:z6Mk... --subject-file -`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if issueIssuer == "" {
			return fmt.Errorf("--issuer is required")
		}
		subject, err := readSubject(issueSubjectIn)
		if err != nil {
			return err
		}

		engine, err := openEngine()
		if err != nil {
			return err
		}

		result, err := engine.Issue(cmd.Context(), subject, issueIssuer, vc.IssueOptions{
			Subject:       issueSubject,
			LedgerAccount: issueAccount,
			Network:       issueNetwork,
			Expiry:        issueExpiry,
			SkipStatus:    issueSkipStatus,
		})
		if err != nil {
			return err
		}

		// Token on stdout, everything else on stderr so the output pipes.
		fmt.Println(result.Envelope.Token)

		claims := result.Envelope.Claims
		fmt.Fprintf(os.Stderr, "\nCredential issued:\n")
		fmt.Fprintf(os.Stderr, "   ID: %s\n", claims.ID)
		fmt.Fprintf(os.Stderr, "   Issuer: %s\n", claims.Issuer)
		if claims.Subject != "" {
			fmt.Fprintf(os.Stderr, "   Subject: %s\n", claims.Subject)
		}
		if claims.Expiry != 0 {
			fmt.Fprintf(os.Stderr, "   Expires: %s\n", time.Unix(claims.Expiry, 0).Format(time.RFC3339))
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "   Warning: %s\n", w)
		}
		return nil
	},
}

var credentialVerifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Verify a product passport credential",
	Long: `Verify a product passport credential: signature against the
issuer's resolved DID document, validity window, and revocation status.

A failed status list lookup degrades to a warning by default so that
storage outages do not block verification; pass --require-status to
make it a hard failure.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}

		opts := vc.VerifyOptions{
			SkipStatusCheck:    verifySkipStatus,
			RequireStatusCheck: verifyRequireStatus,
		}
		if verifyTrustedIssuers != "" {
			for _, iss := range strings.Split(verifyTrustedIssuers, ",") {
				opts.TrustedIssuers = append(opts.TrustedIssuers, strings.TrimSpace(iss))
			}
		}

		result, err := engine.Verify(cmd.Context(), args[0], opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Verification failed\n")
			if code := vc.GetErrorCode(err); code != "" {
				fmt.Fprintf(os.Stderr, "   Error: %s\n", code)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "   %s\n", e)
			}
			return fmt.Errorf("verification failed")
		}

		fmt.Printf("Credential valid\n\n")
		fmt.Printf("   ID: %s\n", result.Claims.ID)
		fmt.Printf("   Issuer: %s\n", result.Issuer)
		if result.Claims.Subject != "" {
			fmt.Printf("   Subject: %s\n", result.Claims.Subject)
		}
		if !result.IssuanceDate.IsZero() {
			fmt.Printf("   Issued: %s\n", result.IssuanceDate.Format(time.RFC3339))
		}
		if !result.ExpirationDate.IsZero() {
			fmt.Printf("   Expires: %s\n", result.ExpirationDate.Format(time.RFC3339))
		}
		if len(result.Warnings) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, w := range result.Warnings {
				fmt.Printf("   - %s\n", w)
			}
		}
		return nil
	},
}

var credentialDecodeCmd = &cobra.Command{
	Use:   "decode [token]",
	Short: "Decode a credential without verifying it",
	Long: `Decode a credential's header and claims without checking the
signature. For inspection only; never treat decoded output as trusted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		engine, err := openEngine()
		if err != nil {
			return err
		}

		envelope, err := engine.Decode(args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(envelope, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialIssueCmd)
	credentialCmd.AddCommand(credentialVerifyCmd)
	credentialCmd.AddCommand(credentialDecodeCmd)

	credentialIssueCmd.Flags().StringVar(&issueIssuer, "issuer", "", "Issuer DID (must be registered)")
	credentialIssueCmd.Flags().StringVar(&issueSubject, "subject", "", "Subject identifier (defaults to the document's id field)")
	credentialIssueCmd.Flags().StringVar(&issueSubjectIn, "subject-file", "passport.json", "Path to the subject JSON document (- for stdin)")
	credentialIssueCmd.Flags().StringVar(&issueAccount, "account", "", "Ledger account the anchor was submitted from")
	credentialIssueCmd.Flags().StringVar(&issueNetwork, "network", "polkadot-test", "Ledger network of the anchor")
	credentialIssueCmd.Flags().DurationVar(&issueExpiry, "exp", 0, "Validity window (0 = non-expiring)")
	credentialIssueCmd.Flags().BoolVar(&issueSkipStatus, "skip-status", false, "Issue without a revocation status entry")

	credentialVerifyCmd.Flags().StringVar(&verifyTrustedIssuers, "trusted-issuers", "", "Comma-separated list of accepted issuer DIDs")
	credentialVerifyCmd.Flags().BoolVar(&verifySkipStatus, "skip-status", false, "Skip the revocation check")
	credentialVerifyCmd.Flags().BoolVar(&verifyRequireStatus, "require-status", false, "Fail when the revocation check cannot complete")
}
