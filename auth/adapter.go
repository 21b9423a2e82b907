// Copyright 2021 The apix Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/madplan/apix/credential"
	"github.com/rs/zerolog"
)

const (
	// DefaultService is the credential store service the bearer token
	// is read from unless Adapter.Service is set.
	DefaultService = "accesstoken"
	// DefaultAccount is the credential store account the bearer token
	// is read from unless Adapter.Account is set.
	DefaultAccount = "madplan"
)

// An Adapter attaches a bearer token read from a credential store to
// outgoing HTTP requests.
//
// An Adapter is safe for concurrent use by multiple goroutines as long
// as its Store is, and its fields are not changed after first use.
type Adapter struct {
	// Store is the credential store the token is read from. If Store
	// is nil, requests pass through unmodified.
	Store credential.Store
	// Service and Account locate the token within Store. Empty values
	// mean DefaultService and DefaultAccount.
	Service string
	Account string
	// Logger receives debug output and a warning when the stored token
	// is an expired JWT. The zero value discards everything.
	Logger zerolog.Logger
	// now is overridden in tests.
	now func() time.Time
}

// New returns an Adapter reading from store at the default coordinate.
func New(store credential.Store, logger zerolog.Logger) *Adapter {
	return &Adapter{
		Store:  store,
		Logger: logger,
	}
}

// Adapt sets the Authorization header of r to "Bearer <token>", where
// the token is the text stored at the adapter's coordinate with every
// double quote character removed.
//
// Adapt never fails. If no token is stored, the store returns an error,
// or the stored bytes are not valid UTF-8 text, r is returned
// unmodified. When a token is set, r's header map is cloned first since
// it may be shared with the request plan.
func (a *Adapter) Adapt(r *http.Request) *http.Request {
	if a.Store == nil {
		return r
	}
	b, err := a.Store.Read(r.Context(), a.service(), a.account())
	if err != nil {
		a.Logger.Debug().Err(err).Str("service", a.service()).Str("account", a.account()).
			Msg("no bearer token available")
		return r
	}
	if !utf8.Valid(b) {
		a.Logger.Debug().Str("service", a.service()).Str("account", a.account()).
			Msg("stored bearer token is not text")
		return r
	}
	token := strings.ReplaceAll(string(b), `"`, "")
	a.warnIfExpired(token)
	r.Header = r.Header.Clone()
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func (a *Adapter) warnIfExpired(token string) {
	if strings.Count(token, ".") != 2 {
		return
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return
	}
	if claims.ExpiresAt == nil {
		return
	}
	now := time.Now
	if a.now != nil {
		now = a.now
	}
	if exp := claims.ExpiresAt.Time; exp.Before(now()) {
		a.Logger.Warn().Time("expired_at", exp).Str("service", a.service()).Str("account", a.account()).
			Msg("bearer token has expired")
	}
}

func (a *Adapter) service() string {
	if a.Service == "" {
		return DefaultService
	}
	return a.Service
}

func (a *Adapter) account() string {
	if a.Account == "" {
		return DefaultAccount
	}
	return a.Account
}
