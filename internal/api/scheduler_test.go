package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/chocosentinel/internal/scheduler"
)

func TestHandleSchedulerStatus_ReportsRegisteredJobs(t *testing.T) {
	srv, _ := newTestServer(t)
	err := srv.sched.Register("health_check", "Store/client health check", scheduler.IntervalMinutes(15), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	w := doRequest(t, srv, http.MethodGet, "/scheduler/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"health_check"`)
	assert.Contains(t, w.Body.String(), `"status":"running"`)
}

func TestHandleSchedulerStatus_EmptyJobsWithoutRegistration(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/scheduler/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"jobs":[]`)
}
