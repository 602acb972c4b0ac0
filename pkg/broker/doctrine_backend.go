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

	"github.com/aetheros-project/aetheros/pkg/doctrine"
)

// DoctrineBackend adapts a doctrine.Adapter to Backend, so the Doctrine
// category can be routed through the same Router as every other category.
// params understands "text" (the query text, required), "top_k" (defaults
// to 10), and any other key is passed through as a filter.
func DoctrineBackend(adapter doctrine.Adapter) Backend {
	return BackendFunc(func(ctx context.Context, params QueryParams) ([]Record, error) {
		text, _ := params["text"].(string)
		topK := 10
		if v, ok := params["top_k"].(int); ok && v > 0 {
			topK = v
		}
		filters := make(map[string]string)
		for k, v := range params {
			if k == "text" || k == "top_k" {
				continue
			}
			if s, ok := v.(string); ok {
				filters[k] = s
			}
		}

		elements, err := adapter.Query(ctx, text, filters, topK)
		if err != nil {
			return nil, fmt.Errorf("broker: doctrine backend: %w", err)
		}
		records := make([]Record, 0, len(elements))
		for _, e := range elements {
			records = append(records, Record{
				ElementID: e.ID,
				Fields:    map[string]any{"content": e.Content, "relevance": e.Relevance},
			})
		}
		return records, nil
	})
}
