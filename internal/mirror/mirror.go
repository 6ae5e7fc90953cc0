package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/knotwork-db/knotwork/internal/graph"
)

// Mirror subscribes to a graph store and replays each mutation to the remote
// database as a Cypher statement. Relationship types are stored as a
// property rather than a dynamic Cypher relationship type so every edge can
// be merged through one parameterized statement.
type Mirror struct {
	client  Client
	logger  *slog.Logger
	timeout time.Duration
}

// New constructs a Mirror around the given client.
func New(client Client, logger *slog.Logger) *Mirror {
	return &Mirror{
		client:  client,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

var _ graph.Observer = (*Mirror)(nil)

const mergeNodeCypher = `
MERGE (n:Entity {id: $id})
SET n.labels = $labels
SET n += $props
`

const removeNodeCypher = `
MATCH (n:Entity {id: $id})
DETACH DELETE n
`

const mergeRelationshipCypher = `
MATCH (a:Entity {id: $source})
MATCH (b:Entity {id: $target})
MERGE (a)-[r:RELATES]->(b)
SET r.relType = $relType
SET r += $props
`

const removeRelationshipCypher = `
MATCH (:Entity {id: $source})-[r:RELATES]->(:Entity {id: $target})
DELETE r
`

// NodeUpserted implements graph.Observer.
func (m *Mirror) NodeUpserted(node graph.Node) {
	m.run("merge node", node.ID, mergeNodeCypher, map[string]any{
		"id":     node.ID,
		"labels": node.Labels,
		"props":  flattenProps(node.Attrs),
	})
}

// NodeRemoved implements graph.Observer.
func (m *Mirror) NodeRemoved(id string) {
	m.run("remove node", id, removeNodeCypher, map[string]any{"id": id})
}

// RelationshipUpserted implements graph.Observer.
func (m *Mirror) RelationshipUpserted(rel graph.Relationship) {
	m.run("merge relationship", rel.Source+"->"+rel.Target, mergeRelationshipCypher, map[string]any{
		"source":  rel.Source,
		"target":  rel.Target,
		"relType": rel.Type,
		"props":   flattenProps(rel.Attrs),
	})
}

// RelationshipRemoved implements graph.Observer.
func (m *Mirror) RelationshipRemoved(source, target string) {
	m.run("remove relationship", source+"->"+target, removeRelationshipCypher, map[string]any{
		"source": source,
		"target": target,
	})
}

func (m *Mirror) run(op, key, cypher string, params map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.client.ExecuteWrite(ctx, cypher, params); err != nil {
		m.logger.Warn("mirror replay failed", "op", op, "entity", key, "error", err)
	}
}

// flattenProps keeps scalar attributes as-is and serializes nested maps and
// arrays to JSON strings, since Bolt properties cannot hold nested maps.
func flattenProps(attrs map[string]any) map[string]any {
	props := make(map[string]any, len(attrs))
	for k, v := range attrs {
		switch v.(type) {
		case map[string]any, []any:
			if serialized, err := json.Marshal(v); err == nil {
				props[k] = string(serialized)
			}
		default:
			props[k] = v
		}
	}
	return props
}
