package tutor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/ds-tutor/internal/api"
	"github.com/ashureev/ds-tutor/internal/domain"
	"github.com/ashureev/ds-tutor/internal/identity"
	"github.com/ashureev/ds-tutor/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// HandlerConfig tunes the HTTP handler.
type HandlerConfig struct {
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MaxRequestBodySize int64
}

// Handler serves the tutor HTTP API.
type Handler struct {
	svc     *Service
	mgr     *Manager
	repo    store.Repository
	limiter *RateLimiter
	maxBody int64
	done    chan struct{}
}

// ChatRequest is the body of POST /api/tutor/chat.
type ChatRequest struct {
	Message string `json:"message"`
	// Level, when set, applies to this and later turns.
	Level string `json:"level,omitempty"`
}

// LevelRequest is the body of PUT /api/tutor/level.
type LevelRequest struct {
	Level string `json:"level"`
}

// LevelInfo describes one level and its section marker.
type LevelInfo struct {
	Name   domain.Level `json:"name"`
	Marker string       `json:"marker"`
}

// HistoryResponse is returned by GET /api/tutor/history.
type HistoryResponse struct {
	ConversationID string        `json:"conversation_id"`
	SessionID      string        `json:"session_id"`
	Level          domain.Level  `json:"level"`
	Turns          []domain.Turn `json:"turns"`
}

// NewHandler creates a Handler. repo may be nil, in which case level changes
// are not persisted.
func NewHandler(svc *Service, mgr *Manager, repo store.Repository, cfg HandlerConfig) *Handler {
	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	h := &Handler{
		svc:     svc,
		mgr:     mgr,
		repo:    repo,
		limiter: NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		maxBody: maxBody,
		done:    make(chan struct{}),
	}
	go h.limiter.Run(h.done)
	return h
}

// RegisterRoutes registers tutor routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/tutor", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/history", h.HandleHistory)
		r.Post("/reset", h.HandleReset)
		r.Get("/level", h.HandleGetLevel)
		r.Put("/level", h.HandleSetLevel)
		r.Get("/levels", h.HandleLevels)
		r.Get("/export", h.HandleExport)
		r.Delete("/session", h.HandleEndSession)
	})
}

// Close stops background work.
func (h *Handler) Close() {
	close(h.done)
}

// conversation resolves the caller's conversation, writing an error response
// and returning nil on failure.
func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) *Conversation {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	conv, err := h.mgr.GetOrCreate(r.Context(), userID, identity.SessionIDFromContext(r.Context()))
	if err != nil {
		slog.Error("Failed to load conversation", "user_id", userID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to load conversation")
		return nil
	}
	return conv
}

// HandleChat handles POST /api/tutor/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	conv := h.conversation(w, r)
	if conv == nil {
		return
	}

	// Rate-limit by userID only (not userID:sessionID) so clients cannot bypass
	// throttling by rotating session IDs.
	if !h.limiter.Allow(conv.UserID()) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req ChatRequest
	if err := api.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	if req.Level != "" {
		if _, err := h.applyLevel(r.Context(), conv, req.Level); err != nil {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	slog.Info("Tutor chat request",
		"user_id", conv.UserID(),
		"session_id", conv.SessionID(),
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"level", conv.Level(),
		"message_length", len(req.Message),
	)

	answer, err := h.svc.Ask(r.Context(), conv, req.Message)
	if err != nil {
		if errors.Is(err, ErrModelFailure) {
			api.Error(w, http.StatusBadGateway, "model provider failed to answer")
			return
		}
		slog.Error("Tutor turn failed", "user_id", conv.UserID(), "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	h.touchUser(conv.UserID())
	api.JSON(w, http.StatusOK, answer)
}

// HandleHistory handles GET /api/tutor/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	conv := h.conversation(w, r)
	if conv == nil {
		return
	}
	api.JSON(w, http.StatusOK, HistoryResponse{
		ConversationID: conv.ID(),
		SessionID:      conv.SessionID(),
		Level:          conv.Level(),
		Turns:          conv.Turns(),
	})
}

// HandleReset handles POST /api/tutor/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	conv := h.conversation(w, r)
	if conv == nil {
		return
	}
	h.svc.Reset(conv)
	api.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// HandleGetLevel handles GET /api/tutor/level.
func (h *Handler) HandleGetLevel(w http.ResponseWriter, r *http.Request) {
	conv := h.conversation(w, r)
	if conv == nil {
		return
	}
	api.JSON(w, http.StatusOK, LevelRequest{Level: string(conv.Level())})
}

// HandleSetLevel handles PUT /api/tutor/level.
func (h *Handler) HandleSetLevel(w http.ResponseWriter, r *http.Request) {
	conv := h.conversation(w, r)
	if conv == nil {
		return
	}

	var req LevelRequest
	if err := api.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		api.WriteDecodeError(w, err)
		return
	}

	level, err := h.applyLevel(r.Context(), conv, req.Level)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	api.JSON(w, http.StatusOK, LevelRequest{Level: string(level)})
}

// HandleLevels handles GET /api/tutor/levels.
func (h *Handler) HandleLevels(w http.ResponseWriter, _ *http.Request) {
	levels := domain.Levels()
	out := make([]LevelInfo, 0, len(levels))
	for _, l := range levels {
		out = append(out, LevelInfo{Name: l, Marker: l.Marker()})
	}
	api.JSON(w, http.StatusOK, out)
}

// HandleExport handles GET /api/tutor/export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	conv := h.conversation(w, r)
	if conv == nil {
		return
	}

	exchanges := conv.Exchanges()
	if len(exchanges) == 0 {
		api.Error(w, http.StatusNotFound, "no messages to export")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+TranscriptFilename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(FormatTranscript(exchanges))); err != nil {
		slog.Debug("Failed to write transcript", "user_id", conv.UserID(), "error", err)
	}
}

// HandleEndSession handles DELETE /api/tutor/session. The conversation and its
// history are dropped; the next request starts a fresh one.
func (h *Handler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.mgr.Destroy(userID, identity.SessionIDFromContext(r.Context())) {
		api.Error(w, http.StatusNotFound, "no active conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyLevel parses raw, applies it to conv and stores it as the user's
// preference. A failed write is logged; the conversation still switches.
func (h *Handler) applyLevel(ctx context.Context, conv *Conversation, raw string) (domain.Level, error) {
	level, err := domain.ParseLevel(raw)
	if err != nil {
		return "", err
	}
	if err := conv.SetLevel(level); err != nil {
		return "", err
	}

	if h.repo != nil {
		if err := h.repo.UpdateLevel(ctx, conv.UserID(), level); err != nil {
			slog.Warn("Failed to persist level preference", "user_id", conv.UserID(), "level", level, "error", err)
		}
	}
	slog.Info("Level changed", "user_id", conv.UserID(), "session_id", conv.SessionID(), "level", level)
	return level, nil
}

// touchUser updates last seen asynchronously with timeout.
func (h *Handler) touchUser(userID string) {
	if h.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.UpdateLastSeen(ctx, userID, time.Now()); err != nil {
			slog.Warn("Failed to update last seen", "user_id", userID, "error", err)
		}
	}()
}
