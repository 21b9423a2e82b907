// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/madplan/apix/credential"
	"github.com/spf13/cobra"
)

type tokenOptions struct {
	service string
	account string
}

func newTokenCommand(a *app) *cobra.Command {
	opts := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored access token",
	}

	cmd.PersistentFlags().StringVar(&opts.service, "service", "", "credential service (default from configuration)")
	cmd.PersistentFlags().StringVar(&opts.account, "account", "", "credential account (default from configuration)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <token>",
			Short: "Store the access token; use - to read it from standard input",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.tokenSet(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "get",
			Short: "Print the stored access token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.tokenGet(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete the stored access token",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.tokenDelete(cmd, opts)
			},
		},
	)

	return cmd
}

func (a *app) coordinate(opts *tokenOptions) (string, string) {
	service, account := opts.service, opts.account
	if service == "" {
		service = a.cfg.Credential.Service
	}
	if account == "" {
		account = a.cfg.Credential.Account
	}
	return service, account
}

func (a *app) tokenSet(cmd *cobra.Command, opts *tokenOptions, token string) error {
	w, err := a.writer()
	if err != nil {
		return err
	}
	if token == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		token = strings.TrimSpace(string(b))
	}
	if token == "" {
		return errors.New("empty token")
	}

	service, account := a.coordinate(opts)
	if err := w.Save(cmd.Context(), service, account, []byte(token)); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	a.logger.Info().Str("service", service).Str("account", account).Msg("token saved")
	return nil
}

func (a *app) tokenGet(cmd *cobra.Command, opts *tokenOptions) error {
	service, account := a.coordinate(opts)
	b, err := a.store().Read(cmd.Context(), service, account)
	if errors.Is(err, credential.ErrNotFound) {
		return fmt.Errorf("no token stored for %s/%s", service, account)
	} else if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func (a *app) tokenDelete(cmd *cobra.Command, opts *tokenOptions) error {
	w, err := a.writer()
	if err != nil {
		return err
	}
	service, account := a.coordinate(opts)
	if err := w.Delete(cmd.Context(), service, account); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	a.logger.Info().Str("service", service).Str("account", account).Msg("token deleted")
	return nil
}
