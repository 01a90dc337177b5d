package handlers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/danastri/meetscribe/internal/services"
	"github.com/danastri/meetscribe/internal/utils"
)

// WSHandler streams live status updates over WebSocket. Workers and bot
// runners publish JSON payloads to Redis Pub/Sub; the handler forwards them
// verbatim to the owning client.
type WSHandler struct {
	bots        services.BotService
	transcripts services.TranscriptService
	redis       *redis.Client
	upgrader    websocket.Upgrader
}

func NewWSHandler(bots services.BotService, transcripts services.TranscriptService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		bots:        bots,
		transcripts: transcripts,
		redis:       rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

// BotStatusWS pushes bot session state changes to the session owner.
func (h *WSHandler) BotStatusWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	session, err := h.bots.Status(c.Request.Context(), userID, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	h.forward(c, "bot:"+session.SessionID+":status")
}

// TranscriptStatusWS pushes job status changes for one transcript.
func (h *WSHandler) TranscriptStatusWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.TranscriptStatusWS", "invalid transcript id", err))
		return
	}
	if _, err := h.transcripts.Get(c.Request.Context(), userID, uint(id)); err != nil {
		writeError(c, err)
		return
	}

	h.forward(c, "transcripts:"+strconv.FormatUint(id, 10)+":status")
}

func (h *WSHandler) forward(c *gin.Context, channel string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	// reader: only there to notice the client going away
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
