package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"campustrade-api/internal/cache"
	"campustrade-api/internal/config"
	"campustrade-api/internal/handler"
	"campustrade-api/internal/notify"
	"campustrade-api/internal/repository"
	"campustrade-api/internal/router"
	"campustrade-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		Total      int64 `json:"total"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Reason  string `json:"reason"`
		Message string `json:"message"`
		Details []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t     *testing.T
	store *repository.SQLStore
	hub   *notify.Hub
	mux   *chi.Mux
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mem := cache.NewMemoryCache(time.Hour)
	t.Cleanup(func() { _ = mem.Close() })

	log := zap.NewNop()
	hub := notify.NewHub(log)
	t.Cleanup(hub.Close)

	authCfg := config.AuthConfig{AdminEmails: []string{"dean@campus.edu"}}
	auth := service.NewAuthService(store, nil, service.NewJWTService("test-secret", time.Hour, "test"), authCfg, log)
	notes := service.NewNotificationService(store, mem, hub, time.Minute, log)
	transactions := service.NewTransactionService(store, notes, config.MarketConfig{CompletionPolicy: config.CompletionEither}, log)

	mux := router.New(router.Config{
		Handler:             handler.New("campustrade-api", "test", store, nil),
		AuthHandler:         handler.NewAuthHandler(auth),
		ListingHandler:      handler.NewListingHandler(service.NewListingService(store, notes, log)),
		TransactionHandler:  handler.NewTransactionHandler(transactions),
		ReviewHandler:       handler.NewReviewHandler(service.NewReviewService(store, notes, log)),
		NotificationHandler: handler.NewNotificationHandler(notes),
		MessageHandler:      handler.NewMessageHandler(service.NewMessageService(store, notes, hub, log)),
		AdminHandler:        handler.NewAdminHandler(store, transactions, hub, nil),
		WebSocketHandler:    handler.NewWebSocketHandler(hub, []string{"*"}, log),
		Authenticator:       auth,
		Logger:              log,
	})

	return &testServer{t: t, store: store, hub: hub, mux: mux}
}

// do sends a request and decodes the response envelope.
func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

// signup registers an account and returns its token and user id.
func (s *testServer) signup(name string) (string, string) {
	s.t.Helper()

	email := name + "@campus.edu"
	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "username": name, "password": "password123",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Error)

	code, env = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	require.Equal(s.t, http.StatusOK, code)

	var login struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(s.t, env, &login)
	return login.Token, login.User.ID
}

func (s *testServer) createListing(token, title string, price int) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/listings", token, map[string]interface{}{
		"category_id": "books",
		"title":       title,
		"price":       price,
		"condition":   "good",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Error)
	return idOf(s.t, env)
}

func decode(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func idOf(t *testing.T, env envelope) string {
	t.Helper()
	var v struct {
		ID string `json:"id"`
	}
	decode(t, env, &v)
	require.NotEmpty(t, v.ID)
	return v.ID
}

func statusOf(t *testing.T, env envelope) string {
	t.Helper()
	var v struct {
		Status string `json:"status"`
	}
	decode(t, env, &v)
	return v.Status
}
