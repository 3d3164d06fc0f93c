package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/auth"
	"github.com/iamasit07/audio-translator/pkg/httputil"
)

const (
	MaxMessageSize = 50 << 20
	// buffered audio per recording, across chunks
	MaxBufferedAudio = 50 << 20

	defaultPingPeriod = 30 * time.Second
	defaultPongWait   = 60 * time.Second
)

// Authenticator resolves an access token to its user.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (*domain.User, *auth.Claims, error)
}

type Handler struct {
	conns    *ConnectionManager
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *slog.Logger

	pingPeriod time.Duration
	pongWait   time.Duration
}

// NewHandler accepts handshakes without an Origin header or from one of allowedOrigins.
func NewHandler(conns *ConnectionManager, authenticator Authenticator, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		conns: conns,
		auth:  authenticator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:     logger.With("component", "ws"),
		pingPeriod: defaultPingPeriod,
		pongWait:   defaultPongWait,
	}
}

// HandleWebSocket authenticates the handshake and runs the connection. A bad
// or missing token still upgrades so the client gets a 1008 close with a reason.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = httputil.GetAccessToken(c.Request)
	}
	user, _, authErr := h.auth.Resolve(c.Request.Context(), token)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	if authErr != nil {
		reason := "Invalid token"
		switch {
		case errors.Is(authErr, domain.ErrNoToken):
			reason = "Authentication required"
		case !errors.Is(authErr, domain.ErrInvalidToken) && !errors.Is(authErr, domain.ErrUserNotFound):
			h.logger.Error("websocket authentication error", "error", authErr)
			reason = "Authentication failed"
		}
		closeWith(conn, websocket.ClosePolicyViolation, reason)
		return
	}

	client := newClient(user.ID, conn, user.PreferredSourceLanguage, user.PreferredTargetLanguage)
	h.conns.Add(client)
	h.logger.Info("connection established", "user_id", user.ID)

	h.serve(client)
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	conn.Close()
}

func (h *Handler) serve(client *Client) {
	conn := client.conn
	done := make(chan struct{})

	defer func() {
		close(done)
		if h.conns.Remove(client) {
			conn.Close()
		}
		h.logger.Info("connection closed", "user_id", client.UserID)
	}()

	conn.SetReadLimit(MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		return nil
	})

	// Keep-alive pinger
	go func() {
		ticker := time.NewTicker(h.pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	if err := client.Send(ServerMessage{Type: "connected", Message: "WebSocket ready for audio streaming"}); err != nil {
		return
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.ClosePolicyViolation) {
				h.logger.Warn("read error", "user_id", client.UserID, "error", err)
			}
			return
		}

		var reply ServerMessage
		switch kind {
		case websocket.TextMessage:
			reply = h.handleControl(client, data)
		case websocket.BinaryMessage:
			reply = h.handleAudio(client, data)
		default:
			continue
		}

		if err := client.Send(reply); err != nil {
			return
		}
	}
}

func (h *Handler) handleAudio(client *Client, chunk []byte) ServerMessage {
	if client.audio.Len()+len(chunk) > MaxBufferedAudio {
		return ServerMessage{Type: "error", Message: "Audio buffer full, stop or clear the recording"}
	}
	client.audio.Write(chunk)
	client.chunks++
	return ServerMessage{Type: "chunk_received", Size: len(chunk)}
}

func (h *Handler) handleControl(client *Client, data []byte) ServerMessage {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{Type: "error", Message: "Invalid control message"}
	}

	switch msg.Type {
	case "config":
		client.targetLanguage = orDefault(msg.TargetLanguage, domain.DefaultTargetLanguage)
		client.sourceLanguage = orDefault(msg.SourceLanguage, domain.DefaultSourceLanguage)
		return ServerMessage{Type: "config_applied", TargetLanguage: client.targetLanguage, SourceLanguage: client.sourceLanguage}

	case "start_recording":
		client.resetAudio()
		return ServerMessage{Type: "recording_started"}

	case "stop_recording":
		chunks, total := client.chunks, client.audio.Len()
		return ServerMessage{Type: "recording_stopped", ChunksCollected: &chunks, TotalBytes: &total}

	case "clear_audio":
		client.resetAudio()
		return ServerMessage{Type: "audio_cleared"}

	case "ping":
		return ServerMessage{Type: "pong", Timestamp: time.Now().UnixMilli()}

	default:
		return ServerMessage{Type: "unknown_command", Received: msg.Type}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
