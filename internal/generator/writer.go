package generator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/knotwork-db/knotwork/internal/graph"
)

// Populate inserts the dataset into the store. Nodes go first so every
// relationship finds its endpoints.
func Populate(store *graph.Store, dataset Dataset) error {
	for _, node := range dataset.Nodes {
		if err := store.AddNode(node.ID, node.Labels, node.Attrs); err != nil {
			return fmt.Errorf("insert node %s: %w", node.ID, err)
		}
	}
	for _, rel := range dataset.Relationships {
		if err := store.AddRelationship(rel.Source, rel.Target, rel.Type, rel.Attrs); err != nil {
			return fmt.Errorf("insert relationship %s->%s: %w", rel.Source, rel.Target, err)
		}
	}
	return nil
}

// WriteSnapshot materializes the dataset as a store snapshot file that a
// server can open directly.
func WriteSnapshot(dataset Dataset, path string, directed bool) error {
	store, err := graph.Open(graph.Options{Directed: directed})
	if err != nil {
		return err
	}
	if err := Populate(store, dataset); err != nil {
		return err
	}
	return store.SaveTo(path)
}

// WriteDataset serializes the raw dataset as indented JSON, mostly useful
// for inspection.
func WriteDataset(dataset Dataset, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(dataset); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}
