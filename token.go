package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"billing-relay/internal/auth"
	"billing-relay/internal/config"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the trigger endpoints",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "ops", "Token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleOperator), "Role: viewer, operator or admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	token, err := auth.IssueJWT([]byte(cfg.JWTSecret), tokenSubject, auth.Role(tokenRole), tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
