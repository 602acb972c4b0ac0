// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the kernel's one open-core extension point:
// validating the bearer token on an incoming HTTP request. Deployments that
// need to authenticate callers against a real identity provider implement
// AuthProvider and pass it to httpapi.Config; a deployment that doesn't
// (the default) gets NopAuthProvider, which accepts every token as a single
// local operator.
package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when token validation fails. Implementations
// should wrap this error with additional context.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo identifies the caller a bearer token resolved to.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated caller. The only
	// required field; must never be empty.
	UserID string

	// Email is the caller's email address, if the provider has one.
	Email string

	// Roles holds the caller's role memberships, for handlers that want a
	// coarser check than agentID-scoped authorization already gives them.
	Roles []string
}

// HasRole reports whether the caller has the given role.
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthProvider validates a bearer token extracted from an Authorization
// header and returns the caller's identity. Implementations must be safe
// for concurrent use.
type AuthProvider interface {
	// Validate checks token and returns the caller's identity, or an error
	// wrapping ErrUnauthorized if the token is invalid.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider is the default AuthProvider: it accepts any token
// (including an empty one) and resolves every caller to the same local
// operator identity. This keeps the kernel usable standalone, without a
// configured identity provider in front of it.
type NopAuthProvider struct{}

// Validate always succeeds, returning a fixed local-user identity.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin"},
	}, nil
}

var _ AuthProvider = (*NopAuthProvider)(nil)
