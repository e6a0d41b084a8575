package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/starray/internal/config"
	"github.com/davidbz/starray/internal/domain"
	httpapi "github.com/davidbz/starray/internal/http"
	"github.com/davidbz/starray/internal/http/middleware"
	"github.com/davidbz/starray/internal/provider/registry"
	"github.com/davidbz/starray/internal/routing"
	"github.com/davidbz/starray/internal/session"
)

// mockStore is a testify mock of SessionStore.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, s *domain.Session) (string, error) {
	args := m.Called(ctx, s)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	loaded, _ := args.Get(0).(*domain.Session)
	return loaded, args.Error(1)
}

func (m *mockStore) List(ctx context.Context) ([]domain.SessionSummary, error) {
	args := m.Called(ctx)
	summaries, _ := args.Get(0).([]domain.SessionSummary)
	return summaries, args.Error(1)
}

type testServer struct {
	handler http.Handler
	store   domain.SessionStore
	dataDir string
}

func newTestServer(t *testing.T, store domain.SessionStore) *testServer {
	t.Helper()

	dataDir := t.TempDir()
	storage := &config.StorageConfig{DataDir: dataDir, Backend: config.BackendFile}
	if store == nil {
		store = session.NewFileStore(storage.SessionsDir())
	}

	router := routing.NewRouter(registry.NewRegistry(), &domain.RoutingConfig{
		Provider:           "openai",
		DefaultModel:       "gpt-4.1",
		RoleFallbackModels: map[string][]string{"analyst": {"gpt-4.1-mini"}},
		Temperature:        0.2,
		RequestTimeout:     time.Second,
	})
	handler := httpapi.NewHandler(domain.NewAnalystService(router), router, store, storage)
	server := httpapi.NewServer(&config.ServerConfig{Port: 0}, handler, middleware.Chain(middleware.Trace()))

	return &testServer{
		handler: server.Routes(),
		store:   store,
		dataDir: dataDir,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestHandleChat(t *testing.T) {
	t.Run("should create a session and answer through the local fallback", func(t *testing.T) {
		srv := newTestServer(t, nil)

		rec := srv.do(t, http.MethodPost, "/v1/chat", `{"message":"draft a plan"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
		resp := decode[httpapi.ChatResponse](t, rec)
		require.NotEmpty(t, resp.SessionID)
		require.Equal(t, "local", resp.Provider)
		require.Equal(t, "gpt-4.1", resp.Model)
		require.True(t, resp.FallbackUsed)
		require.Contains(t, resp.Content, "draft a plan")

		loaded, err := srv.store.Load(context.Background(), resp.SessionID)
		require.NoError(t, err)
		require.Len(t, loaded.Turns, 2)

		logData, err := os.ReadFile(filepath.Join(srv.dataDir, "logs", resp.SessionID+".log"))
		require.NoError(t, err)
		require.Equal(t, 3, strings.Count(string(logData), "\n"))
	})

	t.Run("should resume an existing session", func(t *testing.T) {
		srv := newTestServer(t, nil)
		first := decode[httpapi.ChatResponse](t, srv.do(t, http.MethodPost, "/v1/chat", `{"message":"one"}`))

		body, err := json.Marshal(httpapi.ChatRequest{Message: "two", SessionID: first.SessionID})
		require.NoError(t, err)
		rec := srv.do(t, http.MethodPost, "/v1/chat", string(body))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, first.SessionID, decode[httpapi.ChatResponse](t, rec).SessionID)
		loaded, err := srv.store.Load(context.Background(), first.SessionID)
		require.NoError(t, err)
		require.Len(t, loaded.Turns, 4)
	})

	t.Run("should serialize concurrent turns on one session", func(t *testing.T) {
		srv := newTestServer(t, nil)
		first := decode[httpapi.ChatResponse](t, srv.do(t, http.MethodPost, "/v1/chat", `{"message":"start"}`))
		body, err := json.Marshal(httpapi.ChatRequest{Message: "again", SessionID: first.SessionID})
		require.NoError(t, err)

		const turns = 8
		var wg sync.WaitGroup
		for range turns {
			wg.Add(1)
			go func() {
				defer wg.Done()
				req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(body))
				srv.handler.ServeHTTP(httptest.NewRecorder(), req)
			}()
		}
		wg.Wait()

		loaded, err := srv.store.Load(context.Background(), first.SessionID)
		require.NoError(t, err)
		require.Len(t, loaded.Turns, 2+2*turns)
	})

	t.Run("should return 404 for an unknown session", func(t *testing.T) {
		srv := newTestServer(t, nil)

		rec := srv.do(t, http.MethodPost, "/v1/chat", `{"message":"hi","session_id":"missing"}`)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("should return 422 for a corrupt session", func(t *testing.T) {
		store := &mockStore{}
		store.On("Load", mock.Anything, "broken").
			Return(nil, errors.Join(domain.ErrSessionCorrupt, errors.New("invalid JSON")))
		srv := newTestServer(t, store)

		rec := srv.do(t, http.MethodPost, "/v1/chat", `{"message":"hi","session_id":"broken"}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		store.AssertExpectations(t)
	})

	t.Run("should return 500 when the session cannot be saved", func(t *testing.T) {
		store := &mockStore{}
		store.On("Save", mock.Anything, mock.AnythingOfType("*domain.Session")).
			Return("", errors.New("disk full"))
		srv := newTestServer(t, store)

		rec := srv.do(t, http.MethodPost, "/v1/chat", `{"message":"hi"}`)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Contains(t, rec.Body.String(), "disk full")
	})

	t.Run("should reject bad requests", func(t *testing.T) {
		srv := newTestServer(t, nil)

		require.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodPost, "/v1/chat", `{"message":`).Code)
		require.Equal(t, http.StatusBadRequest, srv.do(t, http.MethodPost, "/v1/chat", `{"message":"   "}`).Code)
		require.Equal(t, http.StatusMethodNotAllowed, srv.do(t, http.MethodGet, "/v1/chat", "").Code)
	})

	t.Run("should reject oversized bodies", func(t *testing.T) {
		srv := newTestServer(t, nil)
		body := `{"message":"` + strings.Repeat("a", httpapi.MaxChatBodyBytes) + `"}`

		rec := srv.do(t, http.MethodPost, "/v1/chat", body)

		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		require.NoDirExists(t, filepath.Join(srv.dataDir, "sessions"))
	})
}

func TestHandleRoute(t *testing.T) {
	srv := newTestServer(t, nil)

	t.Run("should default to the analyst role", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/v1/route", "")

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[httpapi.RouteResponse](t, rec)
		require.Equal(t, "analyst", resp.Role)
		require.Equal(t, []string{"openai", "local"}, resp.Providers)
		require.Equal(t, []string{"gpt-4.1", "gpt-4.1-mini"}, resp.Models)
	})

	t.Run("should report other roles", func(t *testing.T) {
		resp := decode[httpapi.RouteResponse](t, srv.do(t, http.MethodGet, "/v1/route?role=planner", ""))

		require.Equal(t, "planner", resp.Role)
		require.Equal(t, []string{"gpt-4.1"}, resp.Models)
	})
}

func TestHandleSessions(t *testing.T) {
	t.Run("should list stored sessions", func(t *testing.T) {
		srv := newTestServer(t, nil)
		created := decode[httpapi.ChatResponse](t, srv.do(t, http.MethodPost, "/v1/chat", `{"message":"hi"}`))

		rec := srv.do(t, http.MethodGet, "/v1/sessions", "")

		require.Equal(t, http.StatusOK, rec.Code)
		summaries := decode[[]domain.SessionSummary](t, rec)
		require.Len(t, summaries, 1)
		require.Equal(t, created.SessionID, summaries[0].ID)
		require.Equal(t, 2, summaries[0].Turns)
	})

	t.Run("should return 500 when listing fails", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", mock.Anything).Return(nil, errors.New("boom"))
		srv := newTestServer(t, store)

		require.Equal(t, http.StatusInternalServerError, srv.do(t, http.MethodGet, "/v1/sessions", "").Code)
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(t, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
