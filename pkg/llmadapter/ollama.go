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

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model     string        `json:"model"`
	Message   ollamaMessage `json:"message"`
	Done      bool          `json:"done"`
	DoneReason string       `json:"done_reason"`
	EvalCount int           `json:"eval_count"`
}

// OllamaProvider talks to a local or self-hosted Ollama-compatible server.
// It is the tertiary fallback in a typical chain: no API key, no rate
// limiting from a vendor, but bounded by local hardware.
type OllamaProvider struct {
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewOllamaProvider builds a provider against baseURL (e.g.
// "http://localhost:11434") for the given model tag.
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	return &OllamaProvider{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

func (o *OllamaProvider) Name() string { return "ollama" }

func (o *OllamaProvider) Complete(ctx context.Context, systemPrompt string, messages []Message, params GenerationParams) (Completion, error) {
	var apiMessages []ollamaMessage
	if systemPrompt != "" {
		apiMessages = append(apiMessages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		apiMessages = append(apiMessages, ollamaMessage{Role: m.Role, Content: m.Content})
	}

	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}

	reqBody, err := json.Marshal(ollamaChatRequest{Model: o.model, Messages: apiMessages, Stream: false, Options: options})
	if err != nil {
		return Completion{}, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return Completion{}, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("ollama: transport: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return Completion{}, &RateLimitError{Provider: o.Name(), Cause: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}
	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, body)
	}

	var apiResp ollamaChatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Completion{}, fmt.Errorf("ollama: decode response: %w", err)
	}
	if apiResp.Message.Content == "" {
		return Completion{}, fmt.Errorf("ollama: empty message content")
	}

	return Completion{
		Content:      apiResp.Message.Content,
		Tokens:       apiResp.EvalCount,
		Provider:     o.Name(),
		Model:        apiResp.Model,
		FinishReason: apiResp.DoneReason,
	}, nil
}
