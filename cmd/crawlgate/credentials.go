// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/crawlgate/internal/platform/constants"
	"github.com/taibuivan/crawlgate/internal/platform/sec"
)

func apiKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey",
		Short: "Generate a crawler API key and the hash to configure",
		Long: "Prints a fresh API key for the crawler and its bcrypt hash.\n" +
			"Give the key to the crawler and set CRAWLER_API_KEY_HASH on the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := sec.GenerateAPIKey()
			if err != nil {
				return err
			}
			hash, err := sec.HashAPIKey(key)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "CRAWLER_API_KEY=%s\n", key)
			fmt.Fprintf(out, "CRAWLER_API_KEY_HASH=%s\n", hash)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject    string
		timeToLive time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for a crawler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.TokenSecret == "" {
				return errors.New("CRAWLER_TOKEN_SECRET is not configured")
			}

			tokens, err := sec.NewTokenService(cfg.TokenSecret, constants.TokenIssuer, constants.TokenAudience)
			if err != nil {
				return err
			}

			token, err := tokens.Issue(subject, timeToLive)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "crawler", "crawler name recorded in the token")
	cmd.Flags().DurationVar(&timeToLive, "ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
