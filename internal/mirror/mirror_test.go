package mirror

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/knotwork-db/knotwork/internal/graph"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMirrorReplaysStoreMutations(t *testing.T) {
	store, err := graph.Open(graph.Options{Directed: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	client := NewMemoryClient()
	store.Subscribe(New(client, testLogger()))

	if err := store.AddNode("A", []string{"Person"}, map[string]any{"name": "Alice"}); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if err := store.AddNode("B", nil, nil); err != nil {
		t.Fatalf("add node: %v", err)
	}
	if err := store.AddRelationship("A", "B", "FRIEND_OF", map[string]any{"since": 2010}); err != nil {
		t.Fatalf("add relationship: %v", err)
	}
	if err := store.RemoveNode("A"); err != nil {
		t.Fatalf("remove node: %v", err)
	}

	calls := client.WriteCalls()
	// 2 node merges, 1 relationship merge, 1 relationship removal from the
	// cascade, 1 node removal.
	if len(calls) != 5 {
		t.Fatalf("expected 5 replayed statements, got %d", len(calls))
	}

	first := calls[0]
	if first.Cypher != mergeNodeCypher {
		t.Fatalf("unexpected statement:\n%s", first.Cypher)
	}
	if first.Params["id"] != "A" {
		t.Fatalf("expected id A, got %v", first.Params["id"])
	}
	props, ok := first.Params["props"].(map[string]any)
	if !ok || props["name"] != "Alice" {
		t.Fatalf("expected props with name Alice, got %v", first.Params["props"])
	}

	merge := calls[2]
	if merge.Cypher != mergeRelationshipCypher {
		t.Fatalf("unexpected statement:\n%s", merge.Cypher)
	}
	if merge.Params["relType"] != "FRIEND_OF" {
		t.Fatalf("expected relType FRIEND_OF, got %v", merge.Params["relType"])
	}

	if calls[3].Cypher != removeRelationshipCypher {
		t.Fatalf("cascade must replay the edge removal first, got:\n%s", calls[3].Cypher)
	}
	if calls[4].Cypher != removeNodeCypher || calls[4].Params["id"] != "A" {
		t.Fatalf("expected node removal for A, got %v", calls[4])
	}
}

func TestMirrorFailureDoesNotAffectStore(t *testing.T) {
	store, err := graph.Open(graph.Options{Directed: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	client := NewMemoryClient().WithError(errors.New("bolt down"))
	store.Subscribe(New(client, testLogger()))

	if err := store.AddNode("A", nil, nil); err != nil {
		t.Fatalf("local mutation must succeed despite mirror failure, got %v", err)
	}
	if store.NodeCount() != 1 {
		t.Fatal("node missing from local store")
	}
}

func TestFlattenPropsSerializesNestedValues(t *testing.T) {
	props := flattenProps(map[string]any{
		"name":    "Alice",
		"age":     30,
		"profile": map[string]any{"city": "Oslo"},
		"tags":    []any{"x", "y"},
	})

	if props["name"] != "Alice" || props["age"] != 30 {
		t.Fatalf("scalars must pass through, got %v", props)
	}
	if props["profile"] != `{"city":"Oslo"}` {
		t.Fatalf("nested map must serialize to JSON, got %v", props["profile"])
	}
	if props["tags"] != `["x","y"]` {
		t.Fatalf("array must serialize to JSON, got %v", props["tags"])
	}
}
