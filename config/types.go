// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the complete client configuration.
type Config struct {
	Retry      RetryConfig      `koanf:"retry"`
	Timeout    TimeoutConfig    `koanf:"timeout"`
	Credential CredentialConfig `koanf:"credential"`
	HTTP       HTTPConfig       `koanf:"http"`
	Dispatch   DispatchConfig   `koanf:"dispatch"`
	Log        LogConfig        `koanf:"log"`

	k *koanf.Koanf
}

// RetryConfig configures the retry evaluator.
type RetryConfig struct {
	// MaxAttempts is the number of failed attempts tolerated for one
	// request identifier before the client gives up.
	MaxAttempts int `koanf:"max_attempts" validate:"gte=1,lte=100"`
	// Delay is the fixed wait between a failed attempt and its retry.
	Delay time.Duration `koanf:"delay" validate:"gte=0"`
}

// TimeoutConfig configures attempt timeouts.
type TimeoutConfig struct {
	Attempt time.Duration `koanf:"attempt" validate:"gt=0"`
}

// CredentialConfig locates the access token.
type CredentialConfig struct {
	Service string `koanf:"service" validate:"required"`
	Account string `koanf:"account" validate:"required"`
	// File is the path of a YAML credential file. If empty, an
	// in-memory store is used.
	File string `koanf:"file"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	ContentType string `koanf:"content_type" validate:"required"`
	ForceHTTP2  bool   `koanf:"force_http2"`
}

// DispatchConfig configures the asynchronous dispatcher.
type DispatchConfig struct {
	Workers int `koanf:"workers" validate:"gte=1"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// Koanf returns the underlying koanf instance, or nil for a Config not
// built by Load or LoadBytes.
func (c *Config) Koanf() *koanf.Koanf {
	return c.k
}
