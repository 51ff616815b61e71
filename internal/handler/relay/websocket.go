// Package relay bridges a OneBot style messaging gateway to the turn processor
// over a websocket.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/catmaid/backend/internal/model/message"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// TurnProcessor produces the reply for one user message.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, userID string, in message.Input) string
}

// Handler accepts gateway connections.
type Handler struct {
	turns    TurnProcessor
	botID    string
	upgrader websocket.Upgrader
}

// New creates a relay handler. Group messages are answered only when they
// mention botID.
func New(turns TurnProcessor, botID string) *Handler {
	return &Handler{
		turns: turns,
		botID: botID,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册消息中继路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// Event is the subset of a gateway event the relay understands.
type Event struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	GroupID     json.RawMessage `json:"group_id,omitempty"`
	Sender      struct {
		UserID json.RawMessage `json:"user_id"`
	} `json:"sender"`
	Message json.RawMessage `json:"message"`
}

// Action is a gateway API call sent back over the socket.
type Action struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理网关连接，每个事件在独立的 goroutine 中处理
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("relay upgrade failed", "error", err)
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	slog.Info("relay connection established", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		slog.Info("relay connection closed", "remote", r.RemoteAddr)
	}()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, c)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("relay read error", "error", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))

		if msgType != websocket.TextMessage {
			slog.Debug("relay ignoring non-text frame", "type", msgType)
			continue
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("relay received malformed event", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handleEvent(ctx, c, event)
		}()
	}
}

func (h *Handler) handleEvent(ctx context.Context, c *conn, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("relay event panicked", "panic", r)
		}
	}()

	action, ok := h.Route(ctx, event)
	if !ok {
		return
	}
	if err := c.writeJSON(action); err != nil {
		slog.Warn("relay failed to send reply", "action", action.Action, "error", err)
	}
}

// Route turns an event into the reply action. It reports false for events
// that need no answer.
func (h *Handler) Route(ctx context.Context, event Event) (Action, bool) {
	if event.PostType != "message" {
		return Action{}, false
	}

	sender := rawID(event.Sender.UserID)
	if sender == "" {
		slog.Warn("relay dropping message without sender", "message_type", event.MessageType)
		return Action{}, false
	}
	in, err := message.Decode(event.Message)
	if err != nil {
		slog.Warn("relay unsupported message format", "user_id", sender, "error", err)
		in = message.Text("")
	}

	switch event.MessageType {
	case "group":
		groupID := rawID(event.GroupID)
		if groupID == "" {
			return Action{}, false
		}
		if !message.IsAtBot(in, h.botID) {
			slog.Debug("relay ignoring group message without mention", "user_id", sender, "group_id", groupID)
			return Action{}, false
		}
		slog.Info("relay processing group message", "user_id", sender, "group_id", groupID)
		reply := h.turns.ProcessTurn(ctx, sender, in)
		return Action{
			Action: "send_group_msg",
			Params: map[string]any{"group_id": groupID, "message": reply},
		}, true

	case "private":
		slog.Info("relay processing private message", "user_id", sender)
		reply := h.turns.ProcessTurn(ctx, sender, in)
		return Action{
			Action: "send_msg",
			Params: map[string]any{"user_id": sender, "message": reply},
		}, true

	default:
		return Action{}, false
	}
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// rawID renders a JSON string or number ID as a plain string.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}
