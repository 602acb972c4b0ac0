// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package broker

import (
	"context"
	"fmt"

	"github.com/aetheros-project/aetheros/pkg/access"
)

// Backend is the narrow interface every per-category backend adapter
// implements. The spectrum, threat, asset, mission, organizational, and
// process-metrics backends are out-of-scope external collaborators
// (MongoDB-backed stores and similar); this package defines only the
// interface the broker consumes, following the same open-core
// extension-point pattern as extensions.AuthProvider/NopAuthProvider: a
// no-op default so the broker runs standalone, with real backends injected
// by the deployment that has them.
type Backend interface {
	Query(ctx context.Context, params QueryParams) ([]Record, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context, params QueryParams) ([]Record, error)

func (f BackendFunc) Query(ctx context.Context, params QueryParams) ([]Record, error) {
	return f(ctx, params)
}

// NopBackend returns an empty result for every query. It is the default for
// any category whose real backend has not been wired in, rather than a nil
// map entry the broker would otherwise have to special-case.
var NopBackend Backend = BackendFunc(func(ctx context.Context, params QueryParams) ([]Record, error) {
	return nil, nil
})

// Router maps InformationCategory to the Backend that serves it.
type Router struct {
	backends map[access.InformationCategory]Backend
}

// NewRouter builds a Router from the given assignments. Any category from
// access.AllCategories not present in assignments falls back to NopBackend,
// so a partially-configured deployment degrades to empty results for
// categories it hasn't wired rather than failing to start.
func NewRouter(assignments map[access.InformationCategory]Backend) *Router {
	r := &Router{backends: make(map[access.InformationCategory]Backend, len(access.AllCategories))}
	for _, cat := range access.AllCategories {
		r.backends[cat] = NopBackend
	}
	for cat, backend := range assignments {
		r.backends[cat] = backend
	}
	return r
}

// Route returns the backend for cat.
func (r *Router) Route(cat access.InformationCategory) (Backend, error) {
	backend, ok := r.backends[cat]
	if !ok {
		return nil, fmt.Errorf("broker: no backend routed for category %q", cat)
	}
	return backend, nil
}
