package registry

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestPublish_WritesVersionAndSwapsLatestPointer(t *testing.T) {
	r := newTestRegistry(t)

	entry, err := r.Publish("price_forecaster", "msgpack", []byte("v1-bytes"), map[string]float64{"mae": 0.04})
	require.NoError(t, err)
	assert.Equal(t, "price_forecaster", entry.Kind)

	data, err := r.Latest("price_forecaster")
	require.NoError(t, err)
	assert.Equal(t, "v1-bytes", string(data))

	latest, ok, err := r.LatestEntry("price_forecaster")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Version, latest.Version)
	assert.InDelta(t, 0.04, latest.Metrics["mae"], 0.0001)
}

func TestPublish_SecondVersionBecomesLatestButFirstStaysInHistory(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Publish("energy_score", "bin", []byte("v1"), nil)
	require.NoError(t, err)
	_, err = r.Publish("energy_score", "bin", []byte("v2"), nil)
	require.NoError(t, err)

	data, err := r.Latest("energy_score")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	versions, err := r.Versions("energy_score")
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestLatest_UnknownKindReturnsError(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Latest("does-not-exist")
	assert.Error(t, err)
}

func TestLatestEntry_UnknownKindReturnsFalse(t *testing.T) {
	r := newTestRegistry(t)
	_, ok, err := r.LatestEntry("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}
