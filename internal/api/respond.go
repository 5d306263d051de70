package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/mail"
	"github.com/marshallshelly/roastery/internal/store"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	errUpstream = errors.New("upstream service failed")
	errDisabled = errors.New("integration is not configured")
)

// errEmptyBody is returned by decodeJSON for a request without a body.
var errEmptyBody = &statusError{status: http.StatusBadRequest, message: "request body is empty"}

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// statusError carries an explicit status for errors raised by handlers.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &statusError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func forbidden(message string) error {
	return &statusError{status: http.StatusForbidden, message: message}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string, details map[string]string) {
	respondJSON(w, status, errorBody{Error: message, Details: details})
}

// fail maps err onto a status and writes it. Only 5xx causes are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		se  *statusError
		ves runtime.ValidationErrors
		ve  *runtime.ValidationError
	)
	switch {
	case errors.As(err, &se):
		respondError(w, se.status, se.message, nil)
	case errors.As(err, &ves):
		respondError(w, http.StatusBadRequest, "validation failed", ves)
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, "validation failed", map[string]string{ve.Field: ve.Message})
	case errors.Is(err, runtime.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, runtime.ErrDuplicateKey):
		respondError(w, http.StatusConflict, "already exists", nil)
	case errors.Is(err, runtime.ErrForeignKeyViolation):
		respondError(w, http.StatusBadRequest, "referenced record does not exist", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, errDisabled):
		respondError(w, http.StatusServiceUnavailable, err.Error(), nil)
	case errors.Is(err, mail.ErrDelivery), errors.Is(err, errUpstream):
		s.logger.Error("upstream failure", zap.Error(err), zap.String("request_id", RequestIDFrom(r.Context())))
		respondError(w, http.StatusBadGateway, "upstream service failed", nil)
	default:
		s.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFrom(r.Context())),
		)
		respondError(w, http.StatusInternalServerError, "internal server error", nil)
	}
}

// decodeJSON reads one JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &statusError{status: http.StatusRequestEntityTooLarge, message: "request body too large"}
		case errors.Is(err, io.EOF):
			return errEmptyBody
		default:
			return badRequest("invalid JSON body: %v", err)
		}
	}
	if dec.More() {
		return badRequest("invalid JSON body: trailing data")
	}
	return nil
}

// pathInt parses a numeric route variable.
func pathInt(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || v < 1 {
		return 0, badRequest("invalid %s", name)
	}
	return v, nil
}

// queryInt parses an optional integer query parameter within [min, max].
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, &runtime.ValidationError{Field: name, Message: fmt.Sprintf("must be an integer between %d and %d", min, max)}
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter; nil when absent.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &runtime.ValidationError{Field: name, Message: "must be true or false"}
	}
	return &v, nil
}

// parsePage reads page and limit.
func parsePage(r *http.Request) (store.Page, error) {
	page, err := queryInt(r, "page", 1, 1, 1<<31-1)
	if err != nil {
		return store.Page{}, err
	}
	limit, err := queryInt(r, "limit", store.DefaultLimit, 1, store.MaxLimit)
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Page: page, Limit: limit}, nil
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ListResponse is the envelope of paginated listings.
type ListResponse[T any] struct {
	Data []T      `json:"data"`
	Meta PageMeta `json:"meta"`
}

func newPageMeta(p store.Page, total int64) PageMeta {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageMeta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}
