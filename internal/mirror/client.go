// Package mirror replays local graph mutations to an external Bolt-speaking
// graph database (Neo4j or compatible). Mirroring is best-effort: a failed
// replay is logged and never blocks or fails the local mutation.
package mirror

import (
	"context"
	"errors"
)

// Client is the minimal contract the mirror needs from a remote graph
// database.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) error
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options configures a client implementation.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// ErrMissingURI indicates the remote graph URI is not provided.
var ErrMissingURI = errors.New("mirror URI is required")
