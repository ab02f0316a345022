package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"stove_control/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Push channel message types.
const (
	wsTypeSystemUpdate = "system_update"
	wsTypeTriggerVoice = "trigger_voice"
	// Older dashboards send the hyphenated form.
	wsTypeTriggerVoiceLegacy = "trigger-voice"
)

// wsEnvelope is the server-to-client message.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsInbound is the client-to-server message. Code may be a string or a number.
type wsInbound struct {
	Type string          `json:"type"`
	Code json.RawMessage `json:"code"`
}

// The dashboard is served from other hosts on the LAN.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Push channel
// @Description  Sends {"type":"system_update","data":snapshot} on connect and on every change. Accepts {"type":"trigger_voice","code":...}.
// @Tags         stove
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()

	updates, unsubscribe := h.services.Subscribe()
	defer unsubscribe()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()
	done := make(chan struct{})
	go h.startReader(ctx, conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	h.log.Infow("ws_client_connected", "remote", c.ClientIP())
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.Infow("ws_ping_failed", "err", err)
				return
			}
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := h.sendSnapshot(conn, snap); err != nil {
				h.log.Infow("ws_write_failed", "err", err)
				return
			}
		}
	}
}

// startReader handles inbound messages until the connection closes.
func (h *Handler) startReader(ctx context.Context, conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.log.Infow("ws_read_closed", "err", err)
			return
		}
		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Infow("ws_bad_message", "err", err)
			continue
		}
		switch msg.Type {
		case wsTypeTriggerVoice, wsTypeTriggerVoiceLegacy:
			code := voiceCode(msg.Code)
			if err := h.services.TriggerVoice(ctx, code); err != nil {
				h.log.Warnw("ws_trigger_voice_failed", "code", code, "err", err)
				continue
			}
			h.log.Infow("ws_trigger_voice", "code", code)
		default:
			h.log.Infow("ws_unknown_message", "type", msg.Type)
		}
	}
}

// voiceCode returns the code as text whether it arrived as a JSON string or number.
func voiceCode(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func (h *Handler) sendSnapshot(conn *websocket.Conn, snap models.SystemSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: wsTypeSystemUpdate, Data: snap})
}
