package tutor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/ds-tutor/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Websocket message types.
const (
	wsTypeAsk    = "ask"
	wsTypeReset  = "reset"
	wsTypeLevel  = "level"
	wsTypePing   = "ping"
	wsTypeAnswer = "answer"
	wsTypeError  = "error"
	wsTypePong   = "pong"
)

const wsWriteTimeout = 10 * time.Second

// wsMessage is the inbound websocket frame.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsReply is the outbound websocket frame.
type wsReply struct {
	Type   string  `json:"type"`
	Answer *Answer `json:"answer,omitempty"`
	Level  string  `json:"level,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// WebSocketHandler serves conversations over a websocket. Frames on one
// connection are processed in order.
type WebSocketHandler struct {
	tutor         *Handler
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a websocket handler sharing h's service,
// manager and rate limiter.
func NewWebSocketHandler(h *Handler, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		tutor:         h,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	if conv := h.tutor.conversation(w, r); conv == nil {
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(h.tutor.maxBody)

	h.readLoop(r.Context(), ws, userID, sessionID)
	slog.Info("Tutor websocket ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop resolves the conversation on every frame so a socket outliving an
// idle eviction keeps writing to the conversation the HTTP API sees.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		var msg wsMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var reply wsReply
		conv, err := h.tutor.mgr.GetOrCreate(ctx, userID, sessionID)
		if err != nil {
			slog.Error("Failed to load conversation", "user_id", userID, "session_id", sessionID, "error", err)
			reply = wsReply{Type: wsTypeError, Error: "failed to load conversation"}
		} else {
			reply = h.dispatch(ctx, conv, msg)
		}
		if err := h.write(ctx, ws, reply); err != nil {
			slog.Debug("WebSocket write error", "error", err, "user_id", userID)
			return
		}
	}
}

func (h *WebSocketHandler) dispatch(ctx context.Context, conv *Conversation, msg wsMessage) wsReply {
	switch msg.Type {
	case wsTypeAsk:
		if strings.TrimSpace(msg.Content) == "" {
			return wsReply{Type: wsTypeError, Error: "message is required"}
		}
		if !h.tutor.limiter.Allow(conv.UserID()) {
			return wsReply{Type: wsTypeError, Error: "rate limit exceeded"}
		}
		answer, err := h.tutor.svc.Ask(ctx, conv, msg.Content)
		if err != nil {
			if errors.Is(err, ErrModelFailure) {
				return wsReply{Type: wsTypeError, Error: "model provider failed to answer"}
			}
			return wsReply{Type: wsTypeError, Error: "failed to process message"}
		}
		h.tutor.touchUser(conv.UserID())
		return wsReply{Type: wsTypeAnswer, Answer: answer}

	case wsTypeReset:
		h.tutor.svc.Reset(conv)
		return wsReply{Type: wsTypeReset}

	case wsTypeLevel:
		level, err := h.tutor.applyLevel(ctx, conv, msg.Content)
		if err != nil {
			return wsReply{Type: wsTypeError, Error: err.Error()}
		}
		return wsReply{Type: wsTypeLevel, Level: string(level)}

	case wsTypePing:
		conv.touch()
		return wsReply{Type: wsTypePong}

	default:
		return wsReply{Type: wsTypeError, Error: "unknown message type: " + msg.Type}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, reply wsReply) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, reply)
}
