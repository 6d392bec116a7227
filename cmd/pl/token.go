package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/punchlist/internal/db"
	"github.com/zulandar/punchlist/internal/identity"
)

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		email      string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, configPath, email, ttl)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&email, "email", "", "email of the user (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runToken(cmd *cobra.Command, configPath, email string, ttl time.Duration) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	u, err := userByEmail(gormDB, email)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}
	tok, err := identity.Issue(cfg.Auth.JWTSecret, u.ID, ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
