package api

import (
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports store reachability. Upstream clients have no cheap
// health probe of their own (a real check would spend their rate-limit
// budget on every poll), so readiness here tracks the one shared resource
// every other component depends on; upstream staleness instead surfaces
// through /gaps/summary.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	storeErr := s.store.Ping(r.Context())
	components := map[string]interface{}{
		"store": map[string]interface{}{
			"reachable": storeErr == nil,
		},
	}
	if storeErr != nil {
		components["store"].(map[string]interface{})["error"] = storeErr.Error()
	}

	status := http.StatusOK
	ready := storeErr == nil
	if !ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]interface{}{
		"ready":      ready,
		"components": components,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":  s.build.Version,
		"commit":   s.build.Commit,
		"built_at": s.build.BuiltAt,
	})
}
