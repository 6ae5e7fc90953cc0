package graph

import (
	"sort"
	"strings"
)

// Direction selects which edges the path matcher follows from the current
// node. It is ignored on undirected graphs.
type Direction string

const (
	// DirectionOut follows outgoing edges. Default.
	DirectionOut Direction = "out"
	// DirectionIn follows incoming edges.
	DirectionIn Direction = "in"
	// DirectionAny follows both.
	DirectionAny Direction = "any"
)

// ParseDirection normalizes a direction token, treating the empty string as
// "out".
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DirectionOut:
		return DirectionOut, nil
	case DirectionIn:
		return DirectionIn, nil
	case DirectionAny:
		return DirectionAny, nil
	default:
		return "", validationf("unknown direction %q (want out, in, any)", raw)
	}
}

// PatternStep describes one hop of a traversal pattern: an optional
// relationship-type filter and a condition on the next node. A nil RelType
// matches edges of any type, typed or not; a pointer to the empty string
// matches only untyped edges.
type PatternStep struct {
	RelType *string
	Where   Clause
	Logic   Logic
}

// PathQuery describes a multi-hop pattern match: a condition identifying the
// starting nodes, an ordered pattern of steps, and a traversal direction.
type PathQuery struct {
	Start      Clause
	StartLogic Logic
	Label      string
	Pattern    []PatternStep
	Direction  Direction
}

// Path is one satisfying traversal: for a pattern of length k it holds k+1
// nodes and k relationships, in parallel order.
type Path struct {
	Nodes         []map[string]any `json:"nodes"`
	Relationships []map[string]any `json:"relationships"`
}

type rawPath struct {
	nodes []*Node
	rels  []*Relationship
}

// hop is one candidate expansion from a node: the edge taken and the node
// reached.
type hop struct {
	rel  *Relationship
	next *Node
}

// MatchFullPaths runs the pattern match and renders each surviving path as
// parallel node and relationship sequences, each independently projectable.
func (s *Store) MatchFullPaths(q PathQuery, nodeFields, relFields []string) ([]Path, error) {
	raw, err := s.matchRaw(q)
	if err != nil {
		return nil, err
	}

	out := make([]Path, 0, len(raw))
	for _, p := range raw {
		full := Path{
			Nodes:         make([]map[string]any, 0, len(p.nodes)),
			Relationships: make([]map[string]any, 0, len(p.rels)),
		}
		for _, node := range p.nodes {
			full.Nodes = append(full.Nodes, Project(exportNode(node), nodeFields))
		}
		for _, rel := range p.rels {
			full.Relationships = append(full.Relationships, Project(exportRelationship(rel), relFields))
		}
		out = append(out, full)
	}
	return out, nil
}

// MatchNodePaths runs the pattern match and renders each path as its node
// sequence only, projected to fields when given.
func (s *Store) MatchNodePaths(q PathQuery, fields ...string) ([][]map[string]any, error) {
	raw, err := s.matchRaw(q)
	if err != nil {
		return nil, err
	}

	out := make([][]map[string]any, 0, len(raw))
	for _, p := range raw {
		nodes := make([]map[string]any, 0, len(p.nodes))
		for _, node := range p.nodes {
			nodes = append(nodes, Project(exportNode(node), fields))
		}
		out = append(out, nodes)
	}
	return out, nil
}

// MatchNodeIDPaths runs the pattern match and renders each path as its raw
// node identifier sequence.
func (s *Store) MatchNodeIDPaths(q PathQuery) ([][]string, error) {
	raw, err := s.matchRaw(q)
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(raw))
	for _, p := range raw {
		ids := make([]string, 0, len(p.nodes))
		for _, node := range p.nodes {
			ids = append(ids, node.ID)
		}
		out = append(out, ids)
	}
	return out, nil
}

// MatchInterleavedPaths runs the pattern match and renders each path as a
// single ordered list alternating node and relationship records, mirroring
// property-graph path notation.
func (s *Store) MatchInterleavedPaths(q PathQuery) ([][]map[string]any, error) {
	raw, err := s.matchRaw(q)
	if err != nil {
		return nil, err
	}

	out := make([][]map[string]any, 0, len(raw))
	for _, p := range raw {
		elements := make([]map[string]any, 0, len(p.nodes)+len(p.rels))
		for i, node := range p.nodes {
			elements = append(elements, exportNode(node))
			if i < len(p.rels) {
				elements = append(elements, exportRelationship(p.rels[i]))
			}
		}
		out = append(out, elements)
	}
	return out, nil
}

// matchRaw is the traversal shared by every rendering. For each node
// satisfying the start condition it keeps a frontier of partial paths and
// expands the frontier one pattern step at a time: enumerate the tail node's
// relationships under the direction policy, filter by relationship type,
// test the step's condition against each neighbor, and extend every passing
// combination into a new partial path. A partial path with no passing
// neighbor is dropped; no backtracking is ever needed because a step depends
// only on the current frontier. Cycles are not detected: a node may reappear
// later in a path.
func (s *Store) matchRaw(q PathQuery) ([]rawPath, error) {
	dir, err := ParseDirection(string(q.Direction))
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dir = s.topo.resolve(dir)

	var frontier []rawPath
	var evalErr error
	s.nodes.Scan(func(node *Node) bool {
		if q.Label != "" && !hasLabel(node, q.Label) {
			return true
		}
		ok, err := q.Start.Evaluate(exportNode(node), q.StartLogic)
		if err != nil {
			evalErr = err
			return false
		}
		if ok {
			frontier = append(frontier, rawPath{nodes: []*Node{node}})
		}
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}

	for _, step := range q.Pattern {
		var next []rawPath
		for _, partial := range frontier {
			tail := partial.nodes[len(partial.nodes)-1]
			for _, h := range s.expandLocked(tail.ID, dir) {
				if !step.matchesType(h.rel) {
					continue
				}
				ok, err := step.Where.Evaluate(exportNode(h.next), step.Logic)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				extended := rawPath{
					nodes: append(append([]*Node(nil), partial.nodes...), h.next),
					rels:  append(append([]*Relationship(nil), partial.rels...), h.rel),
				}
				next = append(next, extended)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return frontier, nil
}

func (step PatternStep) matchesType(rel *Relationship) bool {
	return step.RelType == nil || rel.Type == *step.RelType
}

// expandLocked enumerates the candidate hops from a node under the resolved
// direction, in deterministic neighbor order. On a directed graph "any"
// yields a reciprocal edge pair as two distinct hops; each is expanded
// independently.
func (s *Store) expandLocked(id string, dir Direction) []hop {
	var hops []hop
	appendFrom := func(adj map[string]map[string]*Relationship) {
		peers := adj[id]
		ids := make([]string, 0, len(peers))
		for other := range peers {
			ids = append(ids, other)
		}
		sort.Strings(ids)
		for _, other := range ids {
			if next, ok := s.getNodeLocked(other); ok {
				hops = append(hops, hop{rel: peers[other], next: next})
			}
		}
	}

	switch dir {
	case DirectionOut:
		appendFrom(s.outgoing)
	case DirectionIn:
		appendFrom(s.incoming)
	default:
		appendFrom(s.outgoing)
		if s.topo.directed {
			appendFrom(s.incoming)
		}
	}
	return hops
}
