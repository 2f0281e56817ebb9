package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/aristath/chocosentinel/internal/apierr"
)

// loggingMiddleware logs every request's method, path, status, and
// duration, mirroring the teacher's request-scoped access log.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeAPIError maps err to the §7 taxonomy's status code and emits
// {error: {kind, message, details?}}. An error that isn't a tagged
// *apierr.Error is treated as an unclassified internal failure.
func (s *Server) writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		s.log.Error().Err(err).Msg("unclassified handler error")
		s.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": map[string]interface{}{"kind": "Internal", "message": err.Error()},
		})
		return
	}

	status := apierr.StatusCode(apiErr.Kind)
	body := map[string]interface{}{"kind": string(apiErr.Kind), "message": apiErr.Message}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	s.writeJSON(w, status, map[string]interface{}{"error": body})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
