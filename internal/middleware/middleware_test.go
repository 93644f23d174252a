package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"campustrade-api/internal/model"
	"campustrade-api/pkg/apierror"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type staticAuth map[string]*model.TokenData

func (a staticAuth) Authenticate(ctx context.Context, token string) (*model.TokenData, error) {
	if data, ok := a[token]; ok {
		return data, nil
	}
	return nil, apierror.Unauthorized("invalid or expired token")
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(UserID(r.Context())))
}

func TestAuthMiddleware_TokenSources(t *testing.T) {
	auth := staticAuth{"good": {UserID: "u1"}}
	h := NewAuthMiddleware(auth)(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		status int
	}{
		{name: "x-token", target: "/", setup: func(r *http.Request) { r.Header.Set("X-Token", "good") }, status: http.StatusOK},
		{name: "bearer", target: "/", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, status: http.StatusOK},
		{name: "query", target: "/?token=good", setup: func(r *http.Request) {}, status: http.StatusOK},
		{name: "missing", target: "/", setup: func(r *http.Request) {}, status: http.StatusUnauthorized},
		{name: "invalid", target: "/", setup: func(r *http.Request) { r.Header.Set("X-Token", "bad") }, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u1", rec.Body.String())
			}
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	h := NewOptionalAuthMiddleware(staticAuth{"good": {UserID: "u1"}})(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Token", "bad")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), apierror.CodeInternal)
}

func TestLogging_CapturesStatus(t *testing.T) {
	h := Logging(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	auth := staticAuth{
		"admin":   {UserID: "a1", IsAdmin: true},
		"student": {UserID: "u1"},
	}
	h := NewAuthMiddleware(auth)(RequireAdmin(http.HandlerFunc(echoUser)))

	for token, status := range map[string]int{"admin": http.StatusOK, "student": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Token", token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, token)
	}

	rec := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(echoUser)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
