package api

import (
	"context"

	"github.com/aristath/chocosentinel/internal/registry"
)

// publishArtifact is a thin wrapper over registry.PublishAndMirror so the
// predict handlers don't each re-derive the mirror-or-not branch.
func publishArtifact(ctx context.Context, reg *registry.Registry, mirror *registry.S3Mirror, kind, ext string, data []byte, metrics map[string]float64) (registry.Entry, error) {
	return registry.PublishAndMirror(ctx, reg, mirror, kind, ext, data, metrics)
}
