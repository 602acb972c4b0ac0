// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ctxwindow

import (
	"context"
	"fmt"

	"github.com/aetheros-project/aetheros/pkg/access"
	"github.com/aetheros-project/aetheros/pkg/broker"
)

// RelevanceScorer scores a broker record's relevance to task, in [0, 1].
type RelevanceScorer func(task string, r broker.Record) float64

// TokenEstimator estimates the token cost of a broker record's content.
type TokenEstimator func(r broker.Record) int

// defaultTokenEstimator charges roughly one token per four characters of
// the record's textual fields, a common rough-and-ready estimate when no
// tokenizer is wired in.
func defaultTokenEstimator(r broker.Record) int {
	total := 0
	for _, v := range r.Fields {
		if s, ok := v.(string); ok {
			total += len(s)
		}
	}
	return total/4 + 1
}

// BrokerSource adapts a broker.Broker query against a fixed
// InformationCategory into a ctxwindow.Source, so each layer can be wired to
// whichever category backs it for a given deployment.
func BrokerSource(b *broker.Broker, cat access.InformationCategory, params broker.QueryParams, score RelevanceScorer, estimate TokenEstimator) Source {
	if estimate == nil {
		estimate = defaultTokenEstimator
	}
	return SourceFunc(func(ctx context.Context, agentID, task string) ([]Element, error) {
		result, err := b.Query(ctx, agentID, cat, params)
		if err != nil {
			return nil, fmt.Errorf("ctxwindow: broker source for %q: %w", cat, err)
		}
		elements := make([]Element, 0, len(result.Records))
		for _, r := range result.Records {
			relevance := 1.0
			if score != nil {
				relevance = score(task, r)
			}
			elements = append(elements, Element{
				ID:        r.ElementID,
				Content:   fmt.Sprintf("%v", r.Fields),
				Relevance: relevance,
				Tokens:    estimate(r),
			})
		}
		return elements, nil
	})
}
