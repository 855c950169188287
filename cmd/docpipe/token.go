package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	middleware "github.com/markdave123-py/docpipe/internal/api/middlewares"
	"github.com/markdave123-py/docpipe/internal/core"
)

var (
	tokenCaller string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for the HTTP trigger",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenCaller, "caller", "ops", "Caller id stored in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _ := loadRuntime(cmd)
	if cfg.Server.JWTSecret == "" {
		return core.NewConfigError("JWT_SECRET", "is required to sign tokens")
	}
	tok, err := middleware.GenerateToken(cfg.Server.JWTSecret, tokenCaller, tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
	return err
}
