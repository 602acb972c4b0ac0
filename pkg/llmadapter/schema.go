// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llmadapter

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/aetheros-project/aetheros/pkg/aethererr"
)

// structValidate is shared across every schema parse. go-playground/validator
// is safe for concurrent use once constructed.
var structValidate = validator.New()

// Schema names a target Go type that a provider's JSON output must unmarshal
// into and satisfy. Validation is driven entirely by the target type's
// `validate` struct tags — there is no separate JSON-Schema document, so
// registering a schema is just naming it for error messages.
type Schema struct {
	Name string
}

// ParseStructured unmarshals raw (a provider's completion content) into a
// new *T and validates it against T's struct tags. A JSON decode failure or
// a validation failure is always a hard *aethererr.SchemaViolation: callers
// never receive a partially-repaired or coerced value.
func ParseStructured[T any](schema Schema, raw string) (*T, error) {
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &aethererr.SchemaViolation{Schema: schema.Name, Detail: fmt.Sprintf("decode: %v", err)}
	}
	if err := structValidate.Struct(&out); err != nil {
		return nil, &aethererr.SchemaViolation{Schema: schema.Name, Detail: fmt.Sprintf("validate: %v", err)}
	}
	return &out, nil
}
