package main

import (
	"fmt"
	"time"

	"backend-carbondrive/internal/auth"
	"backend-carbondrive/internal/config"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		user   string
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for local development",
		Long:  `Token signs a bearer token accepted by the tracking routes. The secret defaults to JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = config.Load().JWTSecret
			}
			token, err := auth.Sign(secret, user, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id to embed (required)")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
