package generator

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/knotwork-db/knotwork/internal/graph"
)

func TestGenerateIsDeterministic(t *testing.T) {
	cfg := Config{NumPeople: 50, NumRelationships: 100, UntypedChance: 0.1, Seed: 7}

	first, err := New(cfg).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := New(cfg).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("same seed must reproduce the dataset (-first +second):\n%s", diff)
	}
}

func TestGenerateReferentialConsistency(t *testing.T) {
	dataset, err := New(Config{NumPeople: 30, NumRelationships: 80, Seed: 3}).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	ids := make(map[string]struct{}, len(dataset.Nodes))
	for _, node := range dataset.Nodes {
		ids[node.ID] = struct{}{}
	}
	for _, rel := range dataset.Relationships {
		if _, ok := ids[rel.Source]; !ok {
			t.Fatalf("relationship references unknown source %s", rel.Source)
		}
		if _, ok := ids[rel.Target]; !ok {
			t.Fatalf("relationship references unknown target %s", rel.Target)
		}
		if rel.Source == rel.Target {
			t.Fatal("self loops must not be generated")
		}
	}
}

func TestGenerateUntypedShare(t *testing.T) {
	dataset, err := New(Config{NumPeople: 50, NumRelationships: 200, UntypedChance: 0.5, Seed: 11}).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	untyped := 0
	for _, rel := range dataset.Relationships {
		if rel.Type == "" {
			untyped++
		}
	}
	if untyped == 0 {
		t.Fatal("expected some untyped relationships at 50% chance")
	}
	if untyped == len(dataset.Relationships) {
		t.Fatal("expected some typed relationships as well")
	}
}

func TestGenerateUUIDIdentifiers(t *testing.T) {
	dataset, err := New(Config{NumPeople: 5, NumRelationships: 4, UUIDs: true, Seed: 1}).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, node := range dataset.Nodes {
		if len(node.ID) != 36 {
			t.Fatalf("expected UUID identifiers, got %q", node.ID)
		}
	}
}

func TestGenerateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(Config{NumPeople: 10, Seed: 1}).Generate(ctx); err == nil {
		t.Fatal("expected a cancellation error")
	}
}

func TestPopulateSeedsStore(t *testing.T) {
	dataset, err := New(Config{NumPeople: 20, NumRelationships: 40, Seed: 5}).Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	store, err := graph.Open(graph.Options{Directed: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := Populate(store, dataset); err != nil {
		t.Fatalf("populate: %v", err)
	}

	if store.NodeCount() != len(dataset.Nodes) {
		t.Fatalf("expected %d nodes, got %d", len(dataset.Nodes), store.NodeCount())
	}
	if store.RelationshipCount() != len(dataset.Relationships) {
		t.Fatalf("expected %d relationships, got %d", len(dataset.Relationships), store.RelationshipCount())
	}
}
