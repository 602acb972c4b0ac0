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
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/aetheros-project/aetheros/pkg/aethererr"
)

// defaultInitialBackoff is the first retry delay; subsequent retries within
// the same provider grow it by backoff.ExponentialBackOff's default
// multiplier (1.5, with randomization).
const defaultInitialBackoff = 200 * time.Millisecond

// Result is what a dispatch returns to the caller: the provider's raw
// output plus whatever context-element IDs were found in it.
type Result struct {
	Content      string
	Tokens       int
	Provider     string
	Model        string
	FinishReason string
	Referenced   []string
}

// ProviderChain dispatches a request against a priority-ordered list of
// providers, retrying each one with exponential backoff before falling
// back to the next, layering an ordered-fallback policy on top of the
// plain Provider contract.
type ProviderChain struct {
	providers      []Provider
	maxRetries     int
	initialBackoff time.Duration
	log            *slog.Logger
}

// NewProviderChain builds a chain trying providers in the given order,
// retrying each up to maxRetriesPerProvider times (1 means no retry, just
// the original attempt) before moving to the next. log may be nil, in
// which case slog.Default() is used.
func NewProviderChain(providers []Provider, maxRetriesPerProvider int, log *slog.Logger) *ProviderChain {
	if maxRetriesPerProvider < 1 {
		maxRetriesPerProvider = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProviderChain{providers: providers, maxRetries: maxRetriesPerProvider, initialBackoff: defaultInitialBackoff, log: log}
}

// Dispatch sends systemPrompt+messages to the first provider in the chain
// and falls over to the next on any error, after exhausting that
// provider's retry budget. All providers failing is
// reported as a single *aethererr.Unavailable wrapping the last error.
func (c *ProviderChain) Dispatch(ctx context.Context, systemPrompt string, messages []Message, params GenerationParams) (Result, error) {
	var lastErr error
	for _, p := range c.providers {
		completion, err := c.callWithRetry(ctx, p, systemPrompt, messages, params)
		if err == nil {
			return c.toResult(completion), nil
		}
		c.log.Warn("provider exhausted retries, falling back", "provider", p.Name(), "error", err)
		lastErr = err
	}
	return Result{}, &aethererr.Unavailable{Subsystem: "llmadapter", Cause: lastErr}
}

func (c *ProviderChain) callWithRetry(ctx context.Context, p Provider, systemPrompt string, messages []Message, params GenerationParams) (Completion, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialBackoff

	op := func() (Completion, error) {
		return p.Complete(ctx, systemPrompt, messages, params)
	}
	return backoff.Retry(ctx, op, backoff.WithBackOff(eb), backoff.WithMaxTries(uint(c.maxRetries)))
}

func (c *ProviderChain) toResult(completion Completion) Result {
	return Result{
		Content:      completion.Content,
		Tokens:       completion.Tokens,
		Provider:     completion.Provider,
		Model:        completion.Model,
		FinishReason: completion.FinishReason,
		Referenced:   ExtractCitations(completion.Content),
	}
}

// DispatchStructured dispatches through chain and parses the resulting
// content into *T via ParseStructured. The citations extracted from the raw
// content are in the returned Result's Referenced field. A schema violation is returned alongside
// the raw Result so the caller can still inspect what the provider said.
func DispatchStructured[T any](ctx context.Context, chain *ProviderChain, systemPrompt string, messages []Message, params GenerationParams, schema Schema) (*T, Result, error) {
	result, err := chain.Dispatch(ctx, systemPrompt, messages, params)
	if err != nil {
		return nil, Result{}, err
	}
	parsed, err := ParseStructured[T](schema, result.Content)
	if err != nil {
		return nil, result, err
	}
	return parsed, result, nil
}
