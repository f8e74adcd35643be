package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"notely/internal/controller"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/services"
)

// StatusForError maps domain errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, queue.ErrNotFound), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrDuplicateID), errors.Is(err, queue.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, controller.ErrEmptyPayload), errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(logger, w, status, ErrorResponse{Error: message})
}

// writeDomainError replies with the mapped status. Server-side failures are
// logged; client errors are not.
func writeDomainError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_error",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	writeError(logger, w, status, err.Error())
}
