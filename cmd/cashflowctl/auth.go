package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"cashflow/internal/datasource/google"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize read access to a Google spreadsheet and save the token",
		RunE:  runAuth,
	}
	cmd.Flags().String("client-file", "", "OAuth client JSON downloaded from the Google console")
	cmd.Flags().String("token-file", "", "where to write the token (default token.json)")
	cmd.Flags().String("port", "8085", "local port for the OAuth redirect")
	cmd.Flags().Duration("timeout", 5*time.Minute, "how long to wait for consent")
	_ = viper.BindPFlag("google_oauth_client_file", cmd.Flags().Lookup("client-file"))
	_ = viper.BindPFlag("google_oauth_token_file", cmd.Flags().Lookup("token-file"))
	return cmd
}

func runAuth(cmd *cobra.Command, _ []string) error {
	clientJSON := []byte(viper.GetString("google_oauth_client_json"))
	if len(clientJSON) == 0 {
		path := viper.GetString("google_oauth_client_file")
		if path == "" {
			return errors.New("set --client-file, CASHFLOW_GOOGLE_OAUTH_CLIENT_FILE or CASHFLOW_GOOGLE_OAUTH_CLIENT_JSON")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read client file: %w", err)
		}
		clientJSON = b
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	port, _ := cmd.Flags().GetString("port")
	tok, err := google.Authorize(ctx, clientJSON, port, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	out := viper.GetString("google_oauth_token_file")
	if out == "" {
		out = "token.json"
	}
	if err := google.SaveToken(out, tok); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", out)
	return nil
}
