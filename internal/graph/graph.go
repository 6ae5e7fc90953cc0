// Package graph implements an embedded, single-process property-graph store
// with a declarative query layer: labeled nodes, typed relationships,
// condition-based filtering, multi-hop pattern matching, field projection,
// and JSON snapshot persistence.
package graph

import (
	"sort"
	"sync"

	"github.com/tidwall/btree"
)

// Reserved keys used when exporting entities. They are kept apart from the
// records' own fields so user attributes with the same names cannot corrupt
// identity or typing information.
const (
	KeyID     = "id"
	KeyLabels = "labels"
	KeySource = "source"
	KeyTarget = "target"
	KeyType   = "type"
)

// MemoryPath is the sentinel path selecting memory-only operation.
const MemoryPath = ":memory:"

// Node is a labeled, identified entity with an open attribute mapping.
type Node struct {
	ID     string
	Labels []string
	Attrs  map[string]any
}

// Relationship is an edge between two node identifiers. Type is optional;
// the empty string means "untyped" and is exported as JSON null.
type Relationship struct {
	Source string
	Target string
	Type   string
	Attrs  map[string]any
}

// Observer receives store mutations after they have been applied. Callbacks
// run outside the store lock and must not call back into mutating store
// operations.
type Observer interface {
	NodeUpserted(node Node)
	NodeRemoved(id string)
	RelationshipUpserted(rel Relationship)
	RelationshipRemoved(source, target string)
}

// Options configures a Store at construction time.
type Options struct {
	// Directed selects directional edge semantics. Defaults to undirected.
	Directed bool
	// Path is the backing snapshot file. Empty or MemoryPath disables
	// persistence.
	Path string
}

// topology is the direction policy fixed at construction. Neighbors, Degree
// and the path matcher consult it instead of branching on a boolean.
type topology struct {
	directed bool
}

type relKey struct {
	a, b string
}

// key canonicalizes an endpoint pair: on undirected graphs (a,b) and (b,a)
// address the same relationship.
func (t topology) key(source, target string) relKey {
	if !t.directed && target < source {
		return relKey{a: target, b: source}
	}
	return relKey{a: source, b: target}
}

// resolve maps a requested traversal direction onto the graph mode; the
// direction selector is meaningless on undirected graphs.
func (t topology) resolve(dir Direction) Direction {
	if !t.directed {
		return DirectionAny
	}
	return dir
}

// Store owns the node and relationship collections and the underlying
// adjacency representation. All reads and mutations go through it; query
// results are detached snapshots.
type Store struct {
	mu   sync.RWMutex
	topo topology
	path string

	nodes *btree.BTreeG[*Node]
	rels  map[relKey]*Relationship

	// Adjacency by node id. On directed graphs outgoing/incoming hold the
	// respective edge ends; on undirected graphs outgoing records both
	// endpoints and incoming stays empty.
	outgoing map[string]map[string]*Relationship
	incoming map[string]map[string]*Relationship

	observers []Observer
}

func nodeLess(a, b *Node) bool { return a.ID < b.ID }

// Open constructs a Store. When Path names an existing snapshot file it is
// loaded before any operation runs; a missing file starts the store empty.
func Open(opts Options) (*Store, error) {
	path := opts.Path
	if path == MemoryPath {
		path = ""
	}

	s := &Store{
		topo:     topology{directed: opts.Directed},
		path:     path,
		nodes:    btree.NewBTreeG(nodeLess),
		rels:     make(map[relKey]*Relationship),
		outgoing: make(map[string]map[string]*Relationship),
		incoming: make(map[string]map[string]*Relationship),
	}

	if s.path != "" {
		if err := s.loadFile(s.path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Directed reports the direction mode fixed at construction.
func (s *Store) Directed() bool { return s.topo.directed }

// Path returns the default snapshot path, empty when memory-only.
func (s *Store) Path() string { return s.path }

// Subscribe registers an observer for subsequent mutations.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// AddNode creates the node if absent, otherwise overwrites its labels and
// attributes. Duplicate ids are an upsert, never an error.
func (s *Store) AddNode(id string, labels []string, attrs map[string]any) error {
	if id == "" {
		return validationf("node id must not be empty")
	}

	s.mu.Lock()
	node := &Node{ID: id, Labels: dedupLabels(labels), Attrs: cloneAttrs(attrs)}
	s.nodes.Set(node)
	err := s.persistLocked()
	snapshot := copyNode(node)
	s.mu.Unlock()

	s.notifyNodeUpserted(snapshot)
	return err
}

// SetNode merge-patches labels and attributes into the node, creating it
// when absent. It never fails on absence.
func (s *Store) SetNode(id string, labels []string, attrs map[string]any) error {
	if id == "" {
		return validationf("node id must not be empty")
	}

	s.mu.Lock()
	node, ok := s.getNodeLocked(id)
	if !ok {
		node = &Node{ID: id, Attrs: map[string]any{}}
		s.nodes.Set(node)
	}
	node.Labels = dedupLabels(append(node.Labels, labels...))
	mergeAttrs(node.Attrs, attrs)
	err := s.persistLocked()
	snapshot := copyNode(node)
	s.mu.Unlock()

	s.notifyNodeUpserted(snapshot)
	return err
}

// UpdateNode merge-patches attributes into an existing node and fails with a
// NotFoundError when the node does not exist.
func (s *Store) UpdateNode(id string, attrs map[string]any) error {
	s.mu.Lock()
	node, ok := s.getNodeLocked(id)
	if !ok {
		s.mu.Unlock()
		return nodeNotFound(id)
	}
	mergeAttrs(node.Attrs, attrs)
	err := s.persistLocked()
	snapshot := copyNode(node)
	s.mu.Unlock()

	s.notifyNodeUpserted(snapshot)
	return err
}

// RemoveNode deletes the node and every relationship touching it. Removing
// an absent node is a no-op, keeping the call idempotent.
func (s *Store) RemoveNode(id string) error {
	s.mu.Lock()
	if _, ok := s.getNodeLocked(id); !ok {
		s.mu.Unlock()
		return nil
	}

	var removed [][2]string
	for key, rel := range s.rels {
		if rel.Source == id || rel.Target == id {
			s.unlinkLocked(rel)
			delete(s.rels, key)
			removed = append(removed, [2]string{rel.Source, rel.Target})
		}
	}
	s.nodes.Delete(&Node{ID: id})
	err := s.persistLocked()
	s.mu.Unlock()

	for _, pair := range removed {
		s.notifyRelationshipRemoved(pair[0], pair[1])
	}
	s.notifyNodeRemoved(id)
	return err
}

// AddRelationship upserts the edge between source and target, overwriting
// any previous record for the same endpoint pair (last write wins). Both
// endpoints must exist; a missing one fails with a ReferenceError and
// leaves the store unchanged.
func (s *Store) AddRelationship(source, target, relType string, attrs map[string]any) error {
	s.mu.Lock()
	if err := s.checkEndpointsLocked(source, target); err != nil {
		s.mu.Unlock()
		return err
	}

	key := s.topo.key(source, target)
	if existing, ok := s.rels[key]; ok {
		s.unlinkLocked(existing)
	}
	rel := &Relationship{Source: source, Target: target, Type: relType, Attrs: cloneAttrs(attrs)}
	s.rels[key] = rel
	s.linkLocked(rel)
	err := s.persistLocked()
	snapshot := copyRelationship(rel)
	s.mu.Unlock()

	s.notifyRelationshipUpserted(snapshot)
	return err
}

// SetRelationship merge-patches attributes into the edge, creating it when
// absent. A non-empty relType overwrites the stored type; an empty one
// leaves it untouched on an existing edge.
func (s *Store) SetRelationship(source, target, relType string, attrs map[string]any) error {
	s.mu.Lock()
	if err := s.checkEndpointsLocked(source, target); err != nil {
		s.mu.Unlock()
		return err
	}

	key := s.topo.key(source, target)
	rel, ok := s.rels[key]
	if !ok {
		rel = &Relationship{Source: source, Target: target, Attrs: map[string]any{}}
		s.rels[key] = rel
		s.linkLocked(rel)
	}
	if relType != "" {
		rel.Type = relType
	}
	mergeAttrs(rel.Attrs, attrs)
	err := s.persistLocked()
	snapshot := copyRelationship(rel)
	s.mu.Unlock()

	s.notifyRelationshipUpserted(snapshot)
	return err
}

// UpdateRelationship merge-patches attributes into an existing edge and
// fails with a NotFoundError when no edge joins the pair.
func (s *Store) UpdateRelationship(source, target string, attrs map[string]any) error {
	s.mu.Lock()
	rel, ok := s.rels[s.topo.key(source, target)]
	if !ok {
		s.mu.Unlock()
		return relationshipNotFound(source, target)
	}
	mergeAttrs(rel.Attrs, attrs)
	err := s.persistLocked()
	snapshot := copyRelationship(rel)
	s.mu.Unlock()

	s.notifyRelationshipUpserted(snapshot)
	return err
}

// RemoveRelationship deletes the edge between the pair. Removing an absent
// edge is a no-op.
func (s *Store) RemoveRelationship(source, target string) error {
	s.mu.Lock()
	key := s.topo.key(source, target)
	rel, ok := s.rels[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.unlinkLocked(rel)
	delete(s.rels, key)
	err := s.persistLocked()
	s.mu.Unlock()

	s.notifyRelationshipRemoved(rel.Source, rel.Target)
	return err
}

// Clear drops every node and relationship.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.nodes = btree.NewBTreeG(nodeLess)
	s.rels = make(map[relKey]*Relationship)
	s.outgoing = make(map[string]map[string]*Relationship)
	s.incoming = make(map[string]map[string]*Relationship)
	err := s.persistLocked()
	s.mu.Unlock()
	return err
}

// GetNode returns the exported record of a node.
func (s *Store) GetNode(id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.getNodeLocked(id)
	if !ok {
		return nil, nodeNotFound(id)
	}
	return exportNode(node), nil
}

// GetRelationship returns the exported record of the edge joining the pair.
func (s *Store) GetRelationship(source, target string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.rels[s.topo.key(source, target)]
	if !ok {
		return nil, relationshipNotFound(source, target)
	}
	return exportRelationship(rel), nil
}

// Nodes returns every node record ordered by id.
func (s *Store) Nodes() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]map[string]any, 0, s.nodes.Len())
	s.nodes.Scan(func(node *Node) bool {
		out = append(out, exportNode(node))
		return true
	})
	return out
}

// Relationships returns every relationship record ordered by endpoint pair.
func (s *Store) Relationships() []map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relationshipsLocked()
}

func (s *Store) relationshipsLocked() []map[string]any {
	keys := make([]relKey, 0, len(s.rels))
	for key := range s.rels {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	out := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		out = append(out, exportRelationship(s.rels[key]))
	}
	return out
}

// NodeCount returns the number of nodes.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes.Len()
}

// RelationshipCount returns the number of relationships.
func (s *Store) RelationshipCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rels)
}

// Neighbors returns the ids adjacent to a node, honoring the direction mode:
// out follows outgoing edges, in incoming, any both. On undirected graphs
// the selector is ignored. Results are sorted and deduplicated.
func (s *Store) Neighbors(id string, dir Direction) ([]string, error) {
	resolved, err := ParseDirection(string(dir))
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.getNodeLocked(id); !ok {
		return nil, nodeNotFound(id)
	}

	seen := map[string]struct{}{}
	switch s.topo.resolve(resolved) {
	case DirectionOut:
		for other := range s.outgoing[id] {
			seen[other] = struct{}{}
		}
	case DirectionIn:
		for other := range s.incoming[id] {
			seen[other] = struct{}{}
		}
	default:
		for other := range s.outgoing[id] {
			seen[other] = struct{}{}
		}
		for other := range s.incoming[id] {
			seen[other] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for other := range seen {
		out = append(out, other)
	}
	sort.Strings(out)
	return out, nil
}

// Degree counts the relationships incident to a node under the direction
// mode. A directed "any" degree counts a reciprocal pair of edges twice.
func (s *Store) Degree(id string, dir Direction) (int, error) {
	resolved, err := ParseDirection(string(dir))
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.getNodeLocked(id); !ok {
		return 0, nodeNotFound(id)
	}

	switch s.topo.resolve(resolved) {
	case DirectionOut:
		return len(s.outgoing[id]), nil
	case DirectionIn:
		return len(s.incoming[id]), nil
	default:
		if s.topo.directed {
			return len(s.outgoing[id]) + len(s.incoming[id]), nil
		}
		return len(s.outgoing[id]), nil
	}
}

// NodeQuery selects nodes by an optional label and a condition clause.
type NodeQuery struct {
	Label string
	Where Clause
	Logic Logic
}

// FindNodes scans all nodes and returns the exported records matching the
// query, projected to fields when given. The scan is O(N) by design.
func (s *Store) FindNodes(q NodeQuery, fields ...string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []map[string]any
	var evalErr error
	s.nodes.Scan(func(node *Node) bool {
		if q.Label != "" && !hasLabel(node, q.Label) {
			return true
		}
		record := exportNode(node)
		ok, err := q.Where.Evaluate(record, q.Logic)
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			out = append(out, Project(record, fields))
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return out, nil
}

// RelationshipQuery selects relationships by an optional type and a
// condition clause. A nil Type matches any edge; a pointer to the empty
// string matches only untyped edges.
type RelationshipQuery struct {
	Type  *string
	Where Clause
	Logic Logic
}

// FindRelationships scans all relationships and returns the exported
// records matching the query, projected to fields when given.
func (s *Store) FindRelationships(q RelationshipQuery, fields ...string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []map[string]any
	for _, record := range s.relationshipsLocked() {
		if q.Type != nil {
			relType, _ := record[KeyType].(string)
			if relType != *q.Type {
				continue
			}
		}
		ok, err := q.Where.Evaluate(record, q.Logic)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, Project(record, fields))
		}
	}
	return out, nil
}

func (s *Store) getNodeLocked(id string) (*Node, bool) {
	return s.nodes.Get(&Node{ID: id})
}

func (s *Store) checkEndpointsLocked(source, target string) error {
	if _, ok := s.getNodeLocked(source); !ok {
		return &ReferenceError{Source: source, Target: target, Missing: source}
	}
	if _, ok := s.getNodeLocked(target); !ok {
		return &ReferenceError{Source: source, Target: target, Missing: target}
	}
	return nil
}

func (s *Store) linkLocked(rel *Relationship) {
	if s.topo.directed {
		addAdjacency(s.outgoing, rel.Source, rel.Target, rel)
		addAdjacency(s.incoming, rel.Target, rel.Source, rel)
		return
	}
	addAdjacency(s.outgoing, rel.Source, rel.Target, rel)
	addAdjacency(s.outgoing, rel.Target, rel.Source, rel)
}

func (s *Store) unlinkLocked(rel *Relationship) {
	if s.topo.directed {
		removeAdjacency(s.outgoing, rel.Source, rel.Target)
		removeAdjacency(s.incoming, rel.Target, rel.Source)
		return
	}
	removeAdjacency(s.outgoing, rel.Source, rel.Target)
	removeAdjacency(s.outgoing, rel.Target, rel.Source)
}

func addAdjacency(adj map[string]map[string]*Relationship, from, to string, rel *Relationship) {
	if adj[from] == nil {
		adj[from] = make(map[string]*Relationship)
	}
	adj[from][to] = rel
}

func removeAdjacency(adj map[string]map[string]*Relationship, from, to string) {
	if peers, ok := adj[from]; ok {
		delete(peers, to)
		if len(peers) == 0 {
			delete(adj, from)
		}
	}
}

func exportNode(n *Node) map[string]any {
	out := cloneAttrs(n.Attrs)
	out[KeyID] = n.ID
	out[KeyLabels] = append([]string(nil), n.Labels...)
	return out
}

func exportRelationship(r *Relationship) map[string]any {
	out := cloneAttrs(r.Attrs)
	out[KeySource] = r.Source
	out[KeyTarget] = r.Target
	if r.Type == "" {
		out[KeyType] = nil
	} else {
		out[KeyType] = r.Type
	}
	return out
}

func copyNode(n *Node) Node {
	return Node{ID: n.ID, Labels: append([]string(nil), n.Labels...), Attrs: cloneAttrs(n.Attrs)}
}

func copyRelationship(r *Relationship) Relationship {
	return Relationship{Source: r.Source, Target: r.Target, Type: r.Type, Attrs: cloneAttrs(r.Attrs)}
}

func hasLabel(n *Node, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func dedupLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		if _, dup := seen[label]; dup || label == "" {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

func mergeAttrs(dst, patch map[string]any) {
	for k, v := range patch {
		dst[k] = cloneValue(v)
	}
}

func (s *Store) notifyNodeUpserted(node Node) {
	for _, o := range s.observerSnapshot() {
		o.NodeUpserted(node)
	}
}

func (s *Store) notifyNodeRemoved(id string) {
	for _, o := range s.observerSnapshot() {
		o.NodeRemoved(id)
	}
}

func (s *Store) notifyRelationshipUpserted(rel Relationship) {
	for _, o := range s.observerSnapshot() {
		o.RelationshipUpserted(rel)
	}
}

func (s *Store) notifyRelationshipRemoved(source, target string) {
	for _, o := range s.observerSnapshot() {
		o.RelationshipRemoved(source, target)
	}
}

func (s *Store) observerSnapshot() []Observer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Observer(nil), s.observers...)
}
