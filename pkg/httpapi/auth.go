// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aetheros-project/aetheros/pkg/extensions"
	"github.com/gin-gonic/gin"
)

// principalKey is the Gin context key the auth middleware stores the
// authenticated caller's extensions.AuthInfo under.
const principalKey = "aetheros_principal"

// setPrincipal stores info in c for downstream handlers to retrieve via
// principal.
func setPrincipal(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(principalKey, info)
}

// principal returns the authenticated caller's info, or nil if the request
// was never authenticated (which cannot happen downstream of authMiddleware,
// but handlers called from tests that bypass it should treat nil as
// unauthenticated rather than panic).
func principal(c *gin.Context) *extensions.AuthInfo {
	if v, ok := c.Get(principalKey); ok {
		if info, ok := v.(*extensions.AuthInfo); ok {
			return info
		}
	}
	return nil
}

// authMiddleware authenticates every request via provider before it reaches
// a handler. It extracts a bearer token from the Authorization header,
// validates it, and stores the resulting AuthInfo in the Gin context. This
// is deliberately orthogonal to the kernel's own per-agent authorization:
// authMiddleware answers "who is calling," the kernel answers "may this
// agent do this."
func authMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "authentication failed"
			if errors.Is(err, extensions.ErrUnauthorized) {
				msg = "unauthorized"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		setPrincipal(c, info)
		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, returning "" if the header is missing or malformed.
func bearerToken(c *gin.Context) string {
	const prefix = "bearer "
	header := c.GetHeader("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
