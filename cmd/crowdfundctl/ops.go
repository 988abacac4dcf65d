package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crowdfund/internal/platform/config"
	"crowdfund/internal/platform/postgres"
	"crowdfund/internal/secrets"
)

func migrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			db, err := postgres.Open(cmd.Context(), postgres.Config{URL: cfg.Database.URL})
			if err != nil {
				return err
			}
			defer db.Close()

			if !status {
				if err := postgres.Migrate(db); err != nil {
					return err
				}
			}
			version, dirty, err := postgres.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print the applied version without migrating")
	return cmd
}

func hashSecretCmd() *cobra.Command {
	var generate bool
	var check string
	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Hash an admin token for ADMIN_TOKEN_HASH",
		Long: `Reads a token from stdin and prints its bcrypt hash. With --generate a
random token is created and printed alongside its hash. With --check the
token is verified against the given hash instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			var token string
			if generate {
				t, err := secrets.Generate()
				if err != nil {
					return err
				}
				token = t
				fmt.Fprintf(out, "token: %s\n", token)
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}

			if check != "" {
				if err := secrets.Verify(token, check); err != nil {
					return err
				}
				fmt.Fprintln(out, "ok")
				return nil
			}
			hash, err := secrets.Hash(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "hash: %s\n", hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&generate, "generate", false, "generate a new random token")
	cmd.Flags().StringVar(&check, "check", "", "verify the token against this bcrypt hash")
	return cmd
}
