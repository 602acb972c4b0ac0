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
	"fmt"

	"github.com/awnumar/memguard"
)

// Credential holds a provider API key in mlocked memory for the lifetime of
// the process, rather than as a plain Go string that the GC is free to copy
// and leave scattered across the heap.
type Credential struct {
	enclave *memguard.Enclave
}

// NewCredential seals raw into an enclave, and returns nil for an empty raw.
// Wiping the caller's copy is the caller's own responsibility (Go strings
// are immutable, so NewCredential cannot scrub the original literal/env
// value itself).
func NewCredential(raw string) *Credential {
	if raw == "" {
		return nil
	}
	buf := memguard.NewBufferFromBytes([]byte(raw))
	return &Credential{enclave: buf.Seal()}
}

// Reveal decrypts the credential for the duration of use(key) and always
// destroys the decrypted buffer before returning, regardless of whether use
// returns an error.
func (c *Credential) Reveal(use func(key string) (Completion, error)) (Completion, error) {
	if c == nil || c.enclave == nil {
		return Completion{}, fmt.Errorf("llmadapter: credential is not set")
	}
	buf, err := c.enclave.Open()
	if err != nil {
		return Completion{}, fmt.Errorf("llmadapter: open credential: %w", err)
	}
	defer buf.Destroy()
	return use(string(buf.Bytes()))
}
