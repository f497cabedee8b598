package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kalambet/ucportal/internal/envelope"
	"github.com/kalambet/ucportal/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// ErrNotConfigured is returned for routes whose vendor has no host set.
var ErrNotConfigured = errors.New("not configured")

// errBadRequest marks malformed input caught by the handlers themselves.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor maps an error to the HTTP status of its envelope.
func statusFor(err error) int {
	var ve *envelope.VendorError
	var ue *url.Error
	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errBadRequest), errors.Is(err, storage.ErrInvalid), errors.Is(err, envelope.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &ve), errors.As(err, &ue):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, code int, res envelope.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(res)
}

func writeOK(w http.ResponseWriter, resp any) {
	writeResult(w, http.StatusOK, envelope.OK(resp))
}

func writeCreated(w http.ResponseWriter, resp any) {
	writeResult(w, http.StatusCreated, envelope.OK(resp))
}

// fail writes err as a failed envelope with the status statusFor picks.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Warn("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	writeResult(w, code, envelope.Fail(err))
}

// respond writes v on success and err otherwise.
func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeResult(w, code, envelope.Result{Message: fmt.Sprintf(format, args...)})
}

// decodeBody reads a JSON request body into v, answering 400 itself when the
// body is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func parseBoolParam(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}
