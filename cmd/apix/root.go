// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"

	"github.com/madplan/apix/config"
	"github.com/madplan/apix/credential"
	"github.com/madplan/apix/observe"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errNoCredentialFile = errors.New("no credential file configured (set credential.file or use --credentials)")

// app carries the state shared by every subcommand once the persistent
// flags have been processed.
type app struct {
	configPath     string
	credentialFile string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCommand(version string) *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "apix",
		Short: "Call an authenticated API with automatic retries",
		Long: `apix sends HTTP requests carrying a Bearer token from a credential file.

Server errors and transport failures are retried after a fixed delay until
the retry budget runs out. Client errors are reported immediately.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path of a YAML configuration file")
	cmd.PersistentFlags().StringVar(&a.credentialFile, "credentials", "", "path of the YAML credential file (overrides credential.file)")

	cmd.AddCommand(
		newFetchCommand(a),
		newTokenCommand(a),
	)

	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.credentialFile != "" {
		cfg.Credential.File = a.credentialFile
	}

	a.cfg = cfg
	a.logger = observe.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Pretty)
	return nil
}

// store returns the configured credential store: the credential file if
// there is one, and otherwise an empty in-memory store.
func (a *app) store() credential.Store {
	if a.cfg.Credential.File == "" {
		return &credential.MemoryStore{}
	}
	return credential.NewFileStore(a.cfg.Credential.File, a.logger)
}

// watchedStore returns the store for long-running commands. A credential file is
// watched, so a token rotated on disk is used from the next attempt on.
// The returned function stops watching.
func (a *app) watchedStore() (credential.Store, func()) {
	if a.cfg.Credential.File == "" {
		return &credential.MemoryStore{}, func() {}
	}
	fs := credential.NewFileStore(a.cfg.Credential.File, a.logger)
	if err := fs.Watch(); err != nil {
		a.logger.Warn().Err(err).Str("path", fs.Path()).Msg("credential file not watched")
	}
	return fs, func() {
		_ = fs.Close()
	}
}

func (a *app) writer() (credential.Writer, error) {
	if a.cfg.Credential.File == "" {
		return nil, errNoCredentialFile
	}
	return credential.NewFileStore(a.cfg.Credential.File, a.logger), nil
}
