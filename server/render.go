package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"cdr.dev/slog/v3"

	"exercisetracker/tracker"
)

func jsonOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps a tracker error onto a status code. Store failures answer
// 400, as every other client-visible failure of the API does.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound    *tracker.NotFoundError
		invalid     *tracker.ValidationError
		persistence *tracker.PersistenceError
	)
	switch {
	case errors.As(err, &notFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalid):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &persistence):
		s.logger.Error(r.Context(), "store request failed", slog.F("op", persistence.Op), slog.Error(err))
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error(r.Context(), "unexpected error", slog.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}
