package graph

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func snapshotPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "graph.json")
}

func TestRoundTrip(t *testing.T) {
	path := snapshotPath(t)

	s, err := Open(Options{Directed: true, Path: path})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	// float64 throughout: JSON numbers come back as float64.
	mustAddNode(t, s, "A", []string{"Person"}, map[string]any{
		"name": "Alice",
		"age":  float64(30),
		"profile": map[string]any{
			"city": "Oslo",
			"tags": []any{"x", "y"},
		},
	})
	mustAddNode(t, s, "B", []string{"Person", "Employee"}, map[string]any{"name": "Bob", "age": float64(25)})
	mustAddNode(t, s, "C", nil, nil)
	if err := s.AddRelationship("A", "B", "FRIEND_OF", map[string]any{"since": float64(2010)}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddRelationship("B", "C", "", nil); err != nil {
		t.Fatal(err)
	}

	loaded, err := Open(Options{Directed: true, Path: path})
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}

	if diff := cmp.Diff(s.Nodes(), loaded.Nodes()); diff != "" {
		t.Fatalf("node set differs after round trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.Relationships(), loaded.Relationships()); diff != "" {
		t.Fatalf("relationship set differs after round trip (-want +got):\n%s", diff)
	}
}

func TestPersistAfterEveryMutation(t *testing.T) {
	path := snapshotPath(t)

	s, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	mustAddNode(t, s, "A", nil, nil)

	// The file must already reflect the mutation, without an explicit save.
	fresh, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if fresh.NodeCount() != 1 {
		t.Fatalf("expected the mutation on disk, found %d nodes", fresh.NodeCount())
	}

	if err := s.RemoveNode("A"); err != nil {
		t.Fatal(err)
	}
	fresh, err = Open(Options{Path: path})
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	if fresh.NodeCount() != 0 {
		t.Fatal("expected the removal on disk")
	}
}

func TestMemoryOnlyModes(t *testing.T) {
	for _, path := range []string{"", MemoryPath} {
		s, err := Open(Options{Path: path})
		if err != nil {
			t.Fatalf("open memory store (%q): %v", path, err)
		}
		mustAddNode(t, s, "A", nil, nil)

		err = s.Save()
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			t.Fatalf("save on a memory-only store must fail with PersistenceError, got %v", err)
		}
	}
}

func TestSaveToAlternatePath(t *testing.T) {
	s := newMemoryStore(t, false)
	mustAddNode(t, s, "A", []string{"Person"}, map[string]any{"name": "Alice"})

	alt := snapshotPath(t)
	if err := s.SaveTo(alt); err != nil {
		t.Fatalf("save to alternate path: %v", err)
	}
	if s.Path() != "" {
		t.Fatal("SaveTo must not change the default path")
	}

	loaded, err := Open(Options{Path: alt})
	if err != nil {
		t.Fatalf("load alternate snapshot: %v", err)
	}
	if loaded.NodeCount() != 1 {
		t.Fatalf("expected 1 node in alternate snapshot, got %d", loaded.NodeCount())
	}
}

func TestLoadRejectsMalformedFiles(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"not json", "{nodes:"},
		{"node without id", `{"nodes": [{"labels": []}], "relationships": []}`},
		{"non-string labels", `{"nodes": [{"id": "A", "labels": [1]}], "relationships": []}`},
		{"relationship without target", `{"nodes": [{"id": "A"}], "relationships": [{"source": "A"}]}`},
		{"dangling endpoint", `{"nodes": [{"id": "A"}], "relationships": [{"source": "A", "target": "ghost", "type": null}]}`},
		{"non-string type", `{"nodes": [{"id": "A"}], "relationships": [{"source": "A", "target": "A", "type": 7}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := snapshotPath(t)
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			_, err := Open(Options{Path: path})
			var perr *PersistenceError
			if !errors.As(err, &perr) {
				t.Fatalf("expected PersistenceError, got %v", err)
			}
		})
	}
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	s, err := Open(Options{Path: snapshotPath(t)})
	if err != nil {
		t.Fatalf("open with absent file: %v", err)
	}
	if s.NodeCount() != 0 {
		t.Fatalf("expected empty store, got %d nodes", s.NodeCount())
	}
}

func TestUntypedRelationshipMarshalsAsNull(t *testing.T) {
	path := snapshotPath(t)
	s, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	mustAddNode(t, s, "A", nil, nil)
	mustAddNode(t, s, "B", nil, nil)
	if err := s.AddRelationship("A", "B", "", nil); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if want := `"type": null`; !strings.Contains(string(data), want) {
		t.Fatalf("expected %s in snapshot, got:\n%s", want, data)
	}
}
