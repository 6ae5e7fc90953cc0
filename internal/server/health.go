package server

import (
	"context"

	"github.com/knotwork-db/knotwork/internal/mirror"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// MirrorHealthService verifies mirror connectivity as part of health checks.
// With no mirror configured the probe always passes; the embedded store has
// no external dependency of its own.
type MirrorHealthService struct {
	Client mirror.Client
}

// Probe implements the HealthService interface.
func (s MirrorHealthService) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.VerifyConnectivity(ctx)
}
