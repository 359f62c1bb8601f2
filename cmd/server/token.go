package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tyrowin/securechat/internal/auth"
	"github.com/Tyrowin/securechat/internal/config"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed token for a user id",
	Long: `token signs a credential with JWT_SECRET so a client can connect as the
given user. The token is printed to stdout.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id to embed in the token (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(tokenUser) == "" {
		return configError(errors.New("--user must not be empty"))
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return configError(fmt.Errorf("config error: %w", err))
	}

	ttl := cfg.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}

	token, err := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, ttl).Issue(tokenUser)
	if err != nil {
		return runtimeError(fmt.Errorf("issuing token: %w", err))
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
