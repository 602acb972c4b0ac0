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

	"github.com/aetheros-project/aetheros/pkg/aethererr"
	"github.com/gin-gonic/gin"
)

// writeError maps the kernel's typed error taxonomy onto HTTP status codes
// and writes a JSON error body. Anything outside the taxonomy is treated
// as an internal error rather than guessed at.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var unauthorized *aethererr.Unauthorized
	var notActive *aethererr.NotActive
	var unavailable *aethererr.Unavailable
	var deadline *aethererr.DeadlineExceeded
	var schema *aethererr.SchemaViolation
	var invariant *aethererr.InvariantViolation

	switch {
	case errors.As(err, &unauthorized):
		status = http.StatusForbidden
	case errors.As(err, &notActive):
		status = http.StatusConflict
	case errors.As(err, &unavailable):
		status = http.StatusBadGateway
	case errors.As(err, &deadline):
		status = http.StatusGatewayTimeout
	case errors.As(err, &schema):
		status = http.StatusBadGateway
	case errors.As(err, &invariant):
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
