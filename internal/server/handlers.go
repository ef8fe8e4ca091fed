package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/cardcrop/internal/pipeline"
	"github.com/MeKo-Tech/cardcrop/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// versionHandler returns build information.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, commit, date := version.Info()
	writeJSON(w, http.StatusOK, VersionResponse{Version: v, GitCommit: commit, BuildDate: date})
}

// statusForError maps a pipeline failure to an HTTP status.
func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, pipeline.ErrUnreadableImage):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError writes an ErrorResponse carrying the failure kind and stage.
func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	resp := ErrorResponse{
		Error:     err.Error(),
		Kind:      pipeline.KindName(err),
		RequestID: requestIDFrom(r.Context()),
	}
	if st, ok := pipeline.StageOf(err); ok {
		resp.Stage = st.String()
	} else {
		resp.Kind = ""
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
