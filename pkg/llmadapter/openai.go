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
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider wraps github.com/sashabaranov/go-openai's chat completions
// endpoint behind the Provider interface.
type OpenAIProvider struct {
	apiKey *Credential
	model  string
}

// NewOpenAIProvider builds a provider for the given API key and model. The
// key is sealed into mlocked memory and only decrypted for the duration of
// a single CreateChatCompletion call.
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{apiKey: NewCredential(apiKey), model: model}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Complete(ctx context.Context, systemPrompt string, messages []Message, params GenerationParams) (Completion, error) {
	var apiMessages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		role := strings.ToLower(m.Role)
		if role == "system" {
			continue // already folded into systemPrompt above
		}
		apiMessages = append(apiMessages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{Model: o.model, Messages: apiMessages}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	return o.apiKey.Reveal(func(key string) (Completion, error) {
		resp, err := openai.NewClient(key).CreateChatCompletion(ctx, req)
		if err != nil {
			var apiErr *openai.APIError
			if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
				return Completion{}, &RateLimitError{Provider: o.Name(), Cause: err}
			}
			return Completion{}, fmt.Errorf("openai: %w", err)
		}
		if len(resp.Choices) == 0 {
			return Completion{}, fmt.Errorf("openai: no choices returned")
		}

		return Completion{
			Content:      resp.Choices[0].Message.Content,
			Tokens:       resp.Usage.TotalTokens,
			Provider:     o.Name(),
			Model:        resp.Model,
			FinishReason: string(resp.Choices[0].FinishReason),
		}, nil
	})
}
