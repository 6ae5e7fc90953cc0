package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// snapshot is the persisted wire shape: two arrays of flattened entity
// records. Array ordering carries no meaning.
type snapshot struct {
	Nodes         []map[string]any `json:"nodes"`
	Relationships []map[string]any `json:"relationships"`
}

// Save rewrites the default snapshot file with the full graph. It fails on
// memory-only stores, which have no default path.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return persistencef("", errors.New("store is memory-only"))
	}
	return s.saveLocked(s.path)
}

// SaveTo writes the full graph to an alternate path without changing the
// store's default path.
func (s *Store) SaveTo(path string) error {
	if path == "" || path == MemoryPath {
		return persistencef(path, errors.New("target path must name a file"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked(path)
}

// persistLocked is the post-mutation hook: every mutating call rewrites the
// backing file synchronously before returning, unless memory-only.
func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	return s.saveLocked(s.path)
}

// saveLocked serializes the whole graph and replaces the target file via
// write-temp-then-rename, so a crash mid-write leaves the previous snapshot
// intact rather than a truncated file.
func (s *Store) saveLocked(path string) error {
	snap := snapshot{
		Nodes:         make([]map[string]any, 0, s.nodes.Len()),
		Relationships: s.relationshipsLocked(),
	}
	s.nodes.Scan(func(node *Node) bool {
		snap.Nodes = append(snap.Nodes, exportNode(node))
		return true
	})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return persistencef(path, err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return persistencef(path, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return persistencef(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return persistencef(path, err)
	}
	return nil
}

// loadFile deserializes a snapshot file into the freshly constructed store.
// Called once from Open, before any operation runs; a malformed file fails
// fast with a PersistenceError.
func (s *Store) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return persistencef(path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return persistencef(path, fmt.Errorf("invalid snapshot JSON: %w", err))
	}

	for i, record := range snap.Nodes {
		node, err := decodeNode(record)
		if err != nil {
			return persistencef(path, fmt.Errorf("nodes[%d]: %w", i, err))
		}
		s.nodes.Set(node)
	}
	for i, record := range snap.Relationships {
		rel, err := decodeRelationship(record)
		if err != nil {
			return persistencef(path, fmt.Errorf("relationships[%d]: %w", i, err))
		}
		if _, ok := s.getNodeLocked(rel.Source); !ok {
			return persistencef(path, fmt.Errorf("relationships[%d]: unknown source node %q", i, rel.Source))
		}
		if _, ok := s.getNodeLocked(rel.Target); !ok {
			return persistencef(path, fmt.Errorf("relationships[%d]: unknown target node %q", i, rel.Target))
		}
		s.rels[s.topo.key(rel.Source, rel.Target)] = rel
		s.linkLocked(rel)
	}
	return nil
}

func decodeNode(record map[string]any) (*Node, error) {
	id, ok := record[KeyID].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("missing or non-string %q", KeyID)
	}

	var labels []string
	if raw, present := record[KeyLabels]; present {
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%q must be an array of strings", KeyLabels)
		}
		for _, item := range items {
			label, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%q must be an array of strings", KeyLabels)
			}
			labels = append(labels, label)
		}
	}

	attrs := make(map[string]any, len(record))
	for k, v := range record {
		if k == KeyID || k == KeyLabels {
			continue
		}
		attrs[k] = v
	}
	return &Node{ID: id, Labels: dedupLabels(labels), Attrs: attrs}, nil
}

func decodeRelationship(record map[string]any) (*Relationship, error) {
	source, ok := record[KeySource].(string)
	if !ok || source == "" {
		return nil, fmt.Errorf("missing or non-string %q", KeySource)
	}
	target, ok := record[KeyTarget].(string)
	if !ok || target == "" {
		return nil, fmt.Errorf("missing or non-string %q", KeyTarget)
	}

	var relType string
	if raw, present := record[KeyType]; present && raw != nil {
		relType, ok = raw.(string)
		if !ok {
			return nil, fmt.Errorf("%q must be a string or null", KeyType)
		}
	}

	attrs := make(map[string]any, len(record))
	for k, v := range record {
		if k == KeySource || k == KeyTarget || k == KeyType {
			continue
		}
		attrs[k] = v
	}
	return &Relationship{Source: source, Target: target, Type: relType, Attrs: attrs}, nil
}
