package mirror

import (
	"context"
	"sync"
)

// MemoryClient is an in-memory Client used to test mirroring logic without a
// running graph database.
type MemoryClient struct {
	mu           sync.Mutex
	writeCalls   []ExecutedStatement
	err          error
	connectivity error
}

// ExecutedStatement captures one Cypher statement and its parameters.
type ExecutedStatement struct {
	Cypher string
	Params map[string]any
}

// NewMemoryClient instantiates the in-memory client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// WithError configures the client to fail subsequent writes with err.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

func (m *MemoryClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.writeCalls = append(m.writeCalls, ExecutedStatement{
		Cypher: cypher,
		Params: cloneParams(params),
	})
	return nil
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error {
	return nil
}

// WriteCalls returns a snapshot of the executed statements.
func (m *MemoryClient) WriteCalls() []ExecutedStatement {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedStatement(nil), m.writeCalls...)
}

func cloneParams(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
