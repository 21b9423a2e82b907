// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load. Nested
// keys are separated by a double underscore, so APIX_RETRY__MAX_ATTEMPTS
// sets retry.max_attempts.
const EnvPrefix = "APIX_"

var validate = validator.New()

// Load loads configuration from, in increasing order of priority, the
// built-in defaults, the YAML file at path (skipped if path is empty or
// the file does not exist) and APIX_ environment variables.
func Load(path string) (*Config, error) {
	k, err := defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return build(k)
}

// LoadBytes loads configuration from the built-in defaults overlaid with
// the YAML document b. Environment variables are not consulted.
func LoadBytes(b []byte) (*Config, error) {
	k, err := defaults()
	if err != nil {
		return nil, err
	}

	if err := k.Load(rawbytes.Provider(b), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return build(k)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := LoadBytes(nil)
	if err != nil {
		panic("apix/config: invalid defaults: " + err.Error())
	}
	return cfg
}

// Validate checks every field of cfg against its constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			fe := ve[0]
			return fmt.Errorf("%s: failed %q constraint (value %v)", strings.ToLower(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

func defaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	err := k.Load(confmap.Provider(map[string]any{
		"retry.max_attempts": 3,
		"retry.delay":        "3s",
		"timeout.attempt":    "30s",
		"credential.service": "accesstoken",
		"credential.account": "madplan",
		"credential.file":    "",
		"http.content_type":  "application/json",
		"http.force_http2":   false,
		"dispatch.workers":   8,
		"log.level":          "info",
		"log.pretty":         false,
	}, "."), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	return k, nil
}

func build(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func envKey(k, v string) (string, any) {
	k = strings.TrimPrefix(k, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(k), "__", "."), v
}
