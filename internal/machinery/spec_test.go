package machinery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpecFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "machinery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ParsesProcessesAndActiveHours(t *testing.T) {
	path := writeSpecFile(t, `
processes:
  - name: tempering
    power_kw: 40
    duration_hours: 6
    optimal_temp_c: 22
    optimal_humidity_pct: 55
    active_hours: [1, 2, 3, 4, 5]
  - name: packaging
    power_kw: 15
    duration_hours: 10
    optimal_temp_c: 20
    optimal_humidity_pct: 50
    active_hours: [8, 9, 10, 11, 12, 13, 14, 15, 16, 17]
`)
	spec, err := Load(path)
	require.NoError(t, err)
	require.Len(t, spec.Processes, 2)

	active := spec.ActiveAt(3)
	require.Len(t, active, 1)
	assert.Equal(t, "tempering", active[0].Name)

	assert.InDelta(t, 40.0, spec.TotalPowerAt(3), 0.001)
	assert.InDelta(t, 0.0, spec.TotalPowerAt(20), 0.001)
}

func TestLoad_RejectsEmptyProcessList(t *testing.T) {
	path := writeSpecFile(t, "processes: []\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestPrimaryAt_ReturnsFalseWhenIdle(t *testing.T) {
	spec := DummySpec()
	spec.Processes[0].ActiveHours = []int{1, 2}
	_, ok := spec.PrimaryAt(10)
	assert.False(t, ok)

	p, ok := spec.PrimaryAt(1)
	assert.True(t, ok)
	assert.Equal(t, "default", p.Name)
}

func TestEstimatedCost_MultipliesPowerByPrice(t *testing.T) {
	spec := DummySpec()
	cost := spec.EstimatedCost(5, 0.2)
	assert.InDelta(t, 10.0, cost, 0.001)
}
