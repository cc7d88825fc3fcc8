package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"billtrack/internal/core"
	"billtrack/internal/log"
	"billtrack/internal/middleware/trace"
	"billtrack/internal/services"
)

// maxBodyBytes caps regular JSON request bodies. The import endpoints set
// their own larger cap.
const maxBodyBytes = 1 << 20

// errorBody is the JSON error envelope.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed writing response body",
			log.FieldError, err, log.FieldPath, r.URL.Path)
	}
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldError, err, log.FieldPath, r.URL.Path, log.FieldStatusCode, status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldError, err, log.FieldPath, r.URL.Path, log.FieldStatusCode, status)
	}
	respondJSON(w, r, status, errorBody{
		Error:     err.Error(),
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// statusForError maps error kinds to status codes. Oversize imports come
// first since they wrap the general import failure.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrImportTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrMisconfiguredSchedule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrImportFailure):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrSyncFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes the request body into dst. Errors from the domain
// types' unmarshalers keep their kind so the status mapping still applies;
// anything else is a validation failure.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body exceeds %d bytes", core.ErrValidation, maxErr.Limit)
		case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrMisconfiguredSchedule):
			return err
		default:
			return fmt.Errorf("%w: malformed JSON body: %v", core.ErrValidation, err)
		}
	}
	return nil
}
