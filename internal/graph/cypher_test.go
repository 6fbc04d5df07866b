package graph

import (
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestPlainValue(t *testing.T) {
	nation := neo4j.Node{Labels: []string{"Nation"}, Props: map[string]any{"id": "player", "name": "Burgundy"}}
	province := neo4j.Node{Labels: []string{"Province"}, Props: map[string]any{"id": "flanders"}}
	owns := neo4j.Relationship{Type: "OWNS", Props: map[string]any{}}

	row := recordRow(
		[]string{"n", "r", "p", "list", "count"},
		[]any{nation, owns, neo4j.Path{Nodes: []neo4j.Node{nation, province}, Relationships: []neo4j.Relationship{owns}}, []any{province}, int64(3)},
	)

	n, ok := row["n"].(map[string]any)
	if !ok || n["properties"].(map[string]any)["name"] != "Burgundy" {
		t.Fatalf("unexpected node: %#v", row["n"])
	}
	if r := row["r"].(map[string]any); r["type"] != "OWNS" {
		t.Fatalf("expected OWNS, got %#v", r)
	}
	path := row["p"].(map[string]any)
	if len(path["nodes"].([]any)) != 2 || len(path["relationships"].([]any)) != 1 {
		t.Fatalf("unexpected path: %#v", path)
	}
	list := row["list"].([]any)
	if _, ok := list[0].(map[string]any); !ok {
		t.Fatalf("expected nested node to be flattened, got %#v", list[0])
	}
	if row["count"] != int64(3) {
		t.Fatalf("expected scalar to pass through, got %#v", row["count"])
	}
}

func TestRecordRowToleratesShortValues(t *testing.T) {
	row := recordRow([]string{"a", "b"}, []any{"x"})
	if len(row) != 1 || row["a"] != "x" {
		t.Fatalf("expected only a, got %v", row)
	}
}
