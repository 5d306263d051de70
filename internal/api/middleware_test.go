package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/marshallshelly/roastery/internal/auth"
	"github.com/marshallshelly/roastery/internal/mail"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)

	rec := env.do(t, http.MethodGet, "/api/health", nil, "")
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, incoming, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", rec.Header().Get(RequestIDHeader))
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := newTestEnv(t, Deps{Logger: zap.New(core)}, nil)

	env.do(t, http.MethodGet, "/api/roasters/missing", nil, "")

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/roasters/missing", fields["path"])
	assert.EqualValues(t, http.StatusNotFound, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, Deps{}, map[string]string{"CORS_ALLOWED_ORIGINS": "https://roastery.test, http://localhost:3000"})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/roasters", nil)
		req.Header.Set("Origin", "https://roastery.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "https://roastery.test", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("simple request from allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.CanonicalHeaderKey(RequestIDHeader), rec.Header().Get("Access-Control-Expose-Headers"))
	})

	t.Run("preflight with a header outside the allow list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/roasters", nil)
		req.Header.Set("Origin", "https://roastery.test")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "X-Debug")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("requests without an origin pass through", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/health", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origins get no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/roasters", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEqual(t, http.StatusNoContent, rec.Code)
	})
}

func TestRecoverer(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	env := newTestEnv(t, Deps{Logger: zap.New(core)}, nil)

	env.store.panicOnCountries = true
	rec := env.do(t, http.MethodGet, "/api/countries", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("panic in handler").Len())
}

func TestFail(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{name: "status error", err: forbidden("nope"), status: http.StatusForbidden, msg: "nope"},
		{name: "validation errors", err: runtime.ValidationErrors{"name": "is required"}, status: http.StatusBadRequest, msg: "validation failed"},
		{name: "validation error", err: &runtime.ValidationError{Field: "page", Message: "bad"}, status: http.StatusBadRequest, msg: "validation failed"},
		{name: "not found", err: fmt.Errorf("roasters: %w", runtime.ErrNotFound), status: http.StatusNotFound, msg: "not found"},
		{name: "duplicate", err: fmt.Errorf("insert: %w", runtime.ErrDuplicateKey), status: http.StatusConflict, msg: "already exists"},
		{name: "foreign key", err: runtime.ErrForeignKeyViolation, status: http.StatusBadRequest, msg: "referenced record does not exist"},
		{name: "credentials", err: auth.ErrInvalidCredentials, status: http.StatusUnauthorized, msg: auth.ErrInvalidCredentials.Error()},
		{name: "disabled", err: fmt.Errorf("reddit %w", errDisabled), status: http.StatusServiceUnavailable, msg: "reddit integration is not configured"},
		{name: "mail", err: fmt.Errorf("%w: timeout", mail.ErrDelivery), status: http.StatusBadGateway, msg: "upstream service failed"},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError, msg: "internal server error"},
	}
	env := newTestEnv(t, Deps{}, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.srv.fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decode[errorBody](t, rec).Error)
		})
	}
}

func TestServeOverNetwork(t *testing.T) {
	env := newTestEnv(t, Deps{}, nil)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()
	client := ts.Client()
	defer client.CloseIdleConnections()

	resp, err := client.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
