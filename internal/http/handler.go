package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/davidbz/starray/internal/config"
	"github.com/davidbz/starray/internal/domain"
	"github.com/davidbz/starray/internal/observability"
)

// MaxChatBodyBytes caps the size of a POST /v1/chat body.
const MaxChatBodyBytes = 1 << 20

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is returned by POST /v1/chat.
type ChatResponse struct {
	SessionID    string `json:"session_id"`
	Content      string `json:"content"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	FallbackUsed bool   `json:"fallback_used"`
}

// RouteResponse is returned by GET /v1/route.
type RouteResponse struct {
	Role      string   `json:"role"`
	Providers []string `json:"providers"`
	Models    []string `json:"models"`
}

// Handler handles HTTP requests.
type Handler struct {
	analyst *domain.AnalystService
	router  domain.Router
	store   domain.SessionStore
	logsDir string
	locks   *sessionLocks
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(
	analyst *domain.AnalystService,
	router domain.Router,
	store domain.SessionStore,
	storage *config.StorageConfig,
) *Handler {
	logsDir := ""
	if storage != nil {
		logsDir = storage.LogsDir()
	}

	return &Handler{
		analyst: analyst,
		router:  router,
		store:   store,
		logsDir: logsDir,
		locks:   newSessionLocks(),
	}
}

// HandleChat routes one message, creating or resuming a session.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Early validation.
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	body := http.MaxBytesReader(w, r.Body, MaxChatBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message cannot be empty", http.StatusBadRequest)
		return
	}

	logger := observability.FromContext(ctx)

	var session *domain.Session
	if req.SessionID == "" {
		session = domain.NewSession()
	} else {
		// Turns on one session are serialized so each sees the previous save.
		unlock := h.locks.lock(req.SessionID)
		defer unlock()

		loaded, err := h.store.Load(ctx, req.SessionID)
		if err != nil {
			writeSessionError(w, logger, err)
			return
		}
		session = loaded
	}

	ctx = observability.WithSessionID(ctx, session.ID)
	logger = observability.FromContext(ctx)

	response, err := h.turn(ctx, session, req.Message)
	if err != nil {
		logger.Error("chat turn failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Info("chat turn completed",
		zap.String("provider", response.Provider),
		zap.String("model", response.Model),
		zap.Bool("fallback_used", response.FallbackUsed),
	)

	writeJSON(w, logger, http.StatusOK, ChatResponse{
		SessionID:    session.ID,
		Content:      response.Content,
		Provider:     response.Provider,
		Model:        response.Model,
		FallbackUsed: response.FallbackUsed,
	})
}

func (h *Handler) turn(ctx context.Context, session *domain.Session, message string) (*domain.RoutedResponse, error) {
	var events domain.EventPublisher
	if h.logsDir != "" {
		sessionLog, err := observability.OpenSessionLog(h.logsDir, session.ID)
		if err != nil {
			observability.FromContext(ctx).Warn("activity log unavailable", zap.Error(err))
		} else {
			defer sessionLog.Close()
			events = sessionLog
		}
	}

	conv, err := domain.NewConversation(h.analyst, h.store, session, events)
	if err != nil {
		return nil, err
	}

	return conv.Turn(ctx, message)
}

// HandleRoute reports the candidate orders for a role (default analyst).
func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	role := r.URL.Query().Get("role")
	if role == "" {
		role = domain.RoleAnalyst
	}

	writeJSON(w, observability.FromContext(r.Context()), http.StatusOK, RouteResponse{
		Role:      role,
		Providers: h.router.ProviderOrder(),
		Models:    h.router.ModelOrder(role),
	})
}

// HandleSessions lists stored sessions.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summaries, err := h.store.List(ctx)
	if err != nil {
		logger.Error("failed to list sessions", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, logger, http.StatusOK, summaries)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

func writeSessionError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrSessionCorrupt):
		logger.Error("stored session is corrupt", zap.Error(err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		logger.Error("failed to load session", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
