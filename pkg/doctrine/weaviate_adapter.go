// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package doctrine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// docClass and procedureClass are the Weaviate classes the adapter queries.
// The schema itself, and the embedding pipeline that populates it, are
// out-of-scope external collaborators; this adapter only issues the reads.
const (
	docClass       = "DoctrineElement"
	procedureClass = "DoctrineProcedure"
)

// WeaviateAdapter implements Adapter over a Weaviate vector index holding
// the doctrine corpus: build a near-text GraphQL query with an explicit
// field list, parse the typed response, and never let a backend error
// escape as anything but a wrapped error the caller can match on.
type WeaviateAdapter struct {
	client *weaviate.Client
	log    *slog.Logger
}

// NewWeaviateAdapter constructs an adapter over an already-connected client.
func NewWeaviateAdapter(client *weaviate.Client, log *slog.Logger) *WeaviateAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &WeaviateAdapter{client: client, log: log}
}

// elementQueryResponse mirrors the shape of a Get query against docClass.
// Marshaling the dynamic Data payload back to JSON and unmarshaling into
// this struct is simpler than walking the untyped map by hand.
type elementQueryResponse struct {
	Get struct {
		DoctrineElement []struct {
			ElementID  string `json:"element_id"`
			Content    string `json:"content"`
			Additional struct {
				Certainty float64 `json:"certainty"`
			} `json:"_additional"`
		} `json:"DoctrineElement"`
	} `json:"Get"`
}

type procedureQueryResponse struct {
	Get struct {
		DoctrineProcedure []struct {
			Name          string   `json:"name"`
			Description   string   `json:"description"`
			ExpectedHours float64  `json:"expected_hours"`
			Steps         []string `json:"steps"`
		} `json:"DoctrineProcedure"`
	} `json:"Get"`
}

// parseGraphQLResponse re-marshals the dynamic Data payload and unmarshals it
// into T, turning Weaviate's untyped map response into a typed struct.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("doctrine: nil graphql response")
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("doctrine: marshaling response data: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("doctrine: unmarshaling into target type: %w", err)
	}
	return &out, nil
}

// Query performs a near-text retrieval over the doctrine corpus, applying
// filters as equality constraints on the named properties and capping
// results at topK.
func (a *WeaviateAdapter) Query(ctx context.Context, text string, filterMap map[string]string, topK int) ([]Element, error) {
	nearText := a.client.GraphQL().NearTextArgBuilder().WithConcepts([]string{text})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "element_id"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	query := a.client.GraphQL().Get().
		WithClassName(docClass).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(topK)

	if where := equalityFilters(filterMap); where != nil {
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		a.log.Error("doctrine query failed", "error", err)
		return nil, fmt.Errorf("doctrine: weaviate query failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("doctrine: weaviate returned errors: %v", result.Errors)
	}

	parsed, err := parseGraphQLResponse[elementQueryResponse](result)
	if err != nil {
		return nil, err
	}
	elements := make([]Element, 0, len(parsed.Get.DoctrineElement))
	for _, row := range parsed.Get.DoctrineElement {
		elements = append(elements, Element{
			ID: row.ElementID, Content: row.Content, Relevance: row.Additional.Certainty,
		})
	}
	return elements, nil
}

// GetProcedure fetches a single named procedure by exact-match lookup.
func (a *WeaviateAdapter) GetProcedure(ctx context.Context, name string) (Procedure, error) {
	where := filters.Where().
		WithPath([]string{"name"}).
		WithOperator(filters.Equal).
		WithValueString(name)

	fields := []graphql.Field{
		{Name: "name"}, {Name: "description"}, {Name: "expected_hours"}, {Name: "steps"},
	}

	result, err := a.client.GraphQL().Get().
		WithClassName(procedureClass).
		WithFields(fields...).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return Procedure{}, fmt.Errorf("doctrine: fetching procedure %q: %w", name, err)
	}
	if len(result.Errors) > 0 {
		return Procedure{}, fmt.Errorf("doctrine: weaviate returned errors fetching %q: %v", name, result.Errors)
	}

	parsed, err := parseGraphQLResponse[procedureQueryResponse](result)
	if err != nil {
		return Procedure{}, err
	}
	if len(parsed.Get.DoctrineProcedure) == 0 {
		return Procedure{}, fmt.Errorf("doctrine: procedure %q not found", name)
	}
	row := parsed.Get.DoctrineProcedure[0]
	return Procedure{
		Name: name, Description: row.Description,
		ExpectedHours: row.ExpectedHours, Steps: row.Steps,
	}, nil
}

// CheckCompliance retrieves the doctrine elements most relevant to
// actionDescription and derives a verdict: compliant unless any retrieved
// element is tagged as a prohibition. Real compliance reasoning over the
// retrieved text is delegated to the LLM adapter by callers that need more
// than this coarse check; this method exists so the Authorization Engine's
// doctrinal-fit factor has a cheap, local-ish verdict without a model call
// on every authorize().
func (a *WeaviateAdapter) CheckCompliance(ctx context.Context, actionDescription string) (ComplianceVerdict, error) {
	elements, err := a.Query(ctx, actionDescription, map[string]string{"kind": "prohibition"}, 5)
	if err != nil {
		return ComplianceVerdict{}, err
	}
	citations := make([]string, 0, len(elements))
	for _, e := range elements {
		citations = append(citations, e.ID)
	}
	return ComplianceVerdict{Compliant: len(elements) == 0, Citations: citations}, nil
}

func equalityFilters(filterMap map[string]string) *filters.WhereBuilder {
	if len(filterMap) == 0 {
		return nil
	}
	var operands []*filters.WhereBuilder
	for k, v := range filterMap {
		operands = append(operands, filters.Where().
			WithPath([]string{k}).
			WithOperator(filters.Equal).
			WithValueString(v))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

