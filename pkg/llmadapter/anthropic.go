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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicAPIVersion = "2023-06-01"
	anthropicBaseURL    = "https://api.anthropic.com/v1/messages"
	anthropicDefaultMax = 4096
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []anthropicSystem  `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicSystem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicProvider wraps a hand-rolled Anthropic messages API client; there
// is no official Go SDK, so requests are built and parsed directly.
type AnthropicProvider struct {
	httpClient *http.Client
	apiKey     *Credential
	model      string
}

// NewAnthropicProvider builds a provider for the given API key and model.
// The key is sealed into mlocked memory for the provider's lifetime rather
// than kept as a plain string field.
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicProvider{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     NewCredential(apiKey),
		model:      model,
	}
}

func (a *AnthropicProvider) Name() string { return "anthropic" }

func (a *AnthropicProvider) Complete(ctx context.Context, systemPrompt string, messages []Message, params GenerationParams) (Completion, error) {
	var apiMessages []anthropicMessage
	for _, m := range messages {
		if strings.EqualFold(m.Role, "system") {
			if systemPrompt == "" {
				systemPrompt = m.Content
			}
			continue
		}
		apiMessages = append(apiMessages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := anthropicDefaultMax
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	reqPayload := anthropicRequest{Model: a.model, Messages: apiMessages, MaxTokens: maxTokens}
	if systemPrompt != "" {
		reqPayload.System = []anthropicSystem{{Type: "text", Text: systemPrompt}}
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	return a.apiKey.Reveal(func(key string) (Completion, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicBaseURL, bytes.NewReader(body))
		if err != nil {
			return Completion{}, fmt.Errorf("anthropic: build request: %w", err)
		}
		req.Header.Set("x-api-key", key)
		req.Header.Set("anthropic-version", anthropicAPIVersion)
		req.Header.Set("content-type", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return Completion{}, fmt.Errorf("anthropic: transport: %w", err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode == http.StatusTooManyRequests {
			return Completion{}, &RateLimitError{Provider: a.Name(), Cause: fmt.Errorf("status %d: %s", resp.StatusCode, respBody)}
		}
		if resp.StatusCode != http.StatusOK {
			return Completion{}, fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, respBody)
		}

		var apiResp anthropicResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return Completion{}, fmt.Errorf("anthropic: decode response: %w", err)
		}
		if apiResp.Error != nil {
			return Completion{}, fmt.Errorf("anthropic: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
		}

		var text strings.Builder
		for _, block := range apiResp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			return Completion{}, fmt.Errorf("anthropic: empty text content")
		}

		return Completion{
			Content:      text.String(),
			Tokens:       apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
			Provider:     a.Name(),
			Model:        apiResp.Model,
			FinishReason: apiResp.StopReason,
		}, nil
	})
}
