package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/entrhq/catalogsync/pkg/app"
	"github.com/entrhq/catalogsync/pkg/batch"
	"github.com/entrhq/catalogsync/pkg/browser"
	"github.com/entrhq/catalogsync/pkg/catalog"
	"github.com/entrhq/catalogsync/pkg/store"
)

const maxBodyBytes int64 = 8 << 20

func setHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

// respondJSON sends payload with status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	setHeaders(w)
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// respondError sends a structured JSON error.
func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, errorResponse{
		Error:     err.Error(),
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, batch.ErrBatchActive),
		errors.Is(err, browser.ErrProfileInUse),
		errors.Is(err, app.ErrNothingToRetry):
		return http.StatusConflict
	case errors.Is(err, batch.ErrEmptyBatch),
		errors.Is(err, catalog.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, browser.ErrNotRunning),
		errors.Is(err, app.ErrNoHistory):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrOutsideRoot):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) (int, error) {
	if r.Body == nil {
		if allowEmpty {
			return 0, nil
		}
		return http.StatusBadRequest, fmt.Errorf("request body required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return 0, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body too large (max %d bytes)", maxBodyBytes)
		}
		return http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}
	return 0, nil
}
