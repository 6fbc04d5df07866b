package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// RunCypher executes query in a read transaction. Nodes, relationships and
// paths in the result are flattened into plain maps so rows encode as JSON.
func (c *Client) RunCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rows := make([]map[string]any, 0, len(records))
		for _, record := range records {
			rows = append(rows, recordRow(record.Keys, record.Values))
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("running cypher: %w", err)
	}
	return result.([]map[string]any), nil
}

func recordRow(keys []string, values []any) map[string]any {
	row := make(map[string]any, len(keys))
	for i, key := range keys {
		if i < len(values) {
			row[key] = plainValue(values[i])
		}
	}
	return row
}

func plainValue(v any) any {
	switch val := v.(type) {
	case neo4j.Node:
		return map[string]any{
			"labels":     val.Labels,
			"properties": plainMap(val.Props),
		}
	case neo4j.Relationship:
		return map[string]any{
			"type":       val.Type,
			"properties": plainMap(val.Props),
		}
	case neo4j.Path:
		nodes := make([]any, 0, len(val.Nodes))
		for _, n := range val.Nodes {
			nodes = append(nodes, plainValue(n))
		}
		rels := make([]any, 0, len(val.Relationships))
		for _, r := range val.Relationships {
			rels = append(rels, plainValue(r))
		}
		return map[string]any{"nodes": nodes, "relationships": rels}
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	case map[string]any:
		return plainMap(val)
	}
	return v
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}
