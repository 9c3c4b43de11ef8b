package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/crewdeck/crewdeck/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Token utilities",
	}

	cmd.AddCommand(newTokenHashCmd())
	cmd.AddCommand(newTokenGenerateCmd())
	return cmd
}

func newTokenHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Prompt for a token and print its SHA-256 digest",
		Long: `Reads a token without echoing it and prints the hex SHA-256 digest.
Useful for storing a comparable fingerprint of the admin token in
secret managers or audit records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenHash(cmd)
		},
	}
}

func runTokenHash(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	token, err := readSecret(cmd, "Token: ")
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	fmt.Fprintln(out, auth.Digest(token))
	return nil
}

func newTokenGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a fresh agent-format API token",
		Long: `Mints a token in the agent format along with its lookup key and
digest. The token is shown once; only the lookup key and digest belong
in the database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, lookup, digest, err := auth.GenerateToken()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "token:  %s\n", token)
			fmt.Fprintf(out, "lookup: %s\n", lookup)
			fmt.Fprintf(out, "digest: %s\n", digest)
			return nil
		},
	}
}

// readSecret reads a line without echo when stdin is a terminal, falling
// back to a plain line read for pipes and tests.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, prompt)

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return "", nil
	}
	return strings.TrimSpace(scanner.Text()), nil
}
