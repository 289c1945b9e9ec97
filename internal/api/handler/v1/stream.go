package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vietanh2810/mc-economy/internal/api/handler/v1/response"
	"github.com/vietanh2810/mc-economy/internal/api/middleware"
	"github.com/vietanh2810/mc-economy/internal/domain"
	"github.com/vietanh2810/mc-economy/internal/service"
)

const (
	streamBatch      = 100
	streamWriteWait  = 10 * time.Second
	streamReadLimit  = 512
	streamSendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type AuditStreamer interface {
	OpenStream(ctx context.Context, cred service.Credentials) error
	Tail(ctx context.Context, consumer string, cur service.StreamCursor, limit int) ([]domain.AuditEvent, service.StreamCursor, error)
}

// StreamClient is one consumer following the ledger. Only its poll loop
// sends on send, and only the poll loop closes it.
type StreamClient struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	consumer string
	cursor   service.StreamCursor
}

type StreamHandler struct {
	svc      AuditStreamer
	interval time.Duration

	clients      map[*StreamClient]bool
	clientsMutex sync.RWMutex
	register     chan *StreamClient
	unregister   chan *StreamClient
	quit         chan struct{}
}

func NewStreamHandler(svc AuditStreamer, interval time.Duration) *StreamHandler {
	return &StreamHandler{
		svc:        svc,
		interval:   interval,
		clients:    make(map[*StreamClient]bool),
		register:   make(chan *StreamClient),
		unregister: make(chan *StreamClient),
		quit:       make(chan struct{}),
	}
}

// Run tracks connected clients until ctx ends, then stops every client.
func (h *StreamHandler) Run(ctx context.Context) {
	defer close(h.quit)
	for {
		select {
		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client] = true
			h.clientsMutex.Unlock()
		case client := <-h.unregister:
			h.drop(client)
		case <-ctx.Done():
			h.clientsMutex.RLock()
			clients := make([]*StreamClient, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.clientsMutex.RUnlock()
			for _, c := range clients {
				h.drop(c)
			}
			return
		}
	}
}

func (h *StreamHandler) drop(client *StreamClient) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.done)
	}
}

// Connected reports how many clients are following the ledger.
func (h *StreamHandler) Connected() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// HandleStream godoc
// @Summary      Follow the audit ledger over a websocket
// @Description  Sends every ledger entry appended after after_seq as a JSON text frame, oldest first.
// @Tags         integration
// @Param        X-Consumer-Name  header  string  false  "consumer"
// @Param        X-Consumer-Key   header  string  false  "consumer key"
// @Param        consumer         query   string  false  "consumer, for clients that cannot set headers"
// @Param        key              query   string  false  "consumer key, for clients that cannot set headers"
// @Param        after_seq        query   int     false  "cursor"
// @Success      101  {string}  string  "Switching Protocols"
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Router       /integration/audit/stream [get]
func (h *StreamHandler) HandleStream(ctx *gin.Context) {
	var cursor int64
	if raw := ctx.Query("after_seq"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("after_seq must be a non-negative integer")))
			return
		}
		cursor = v
	}

	cred := middleware.CredentialsFrom(ctx)
	if err := h.svc.OpenStream(ctx.Request.Context(), cred); err != nil {
		response.RenderErr(ctx, response.ErrFrom(err))
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.String("consumer", cred.Name), zap.Error(err))
		return
	}

	client := &StreamClient{
		conn:     conn,
		send:     make(chan []byte, streamSendBuffer),
		done:     make(chan struct{}),
		consumer: cred.Name,
		cursor:   service.StreamCursor{AfterSeq: cursor},
	}
	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
	go client.poll(h)
}

func (c *StreamClient) poll(h *StreamHandler) {
	defer close(c.send)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), h.interval)
		events, next, err := h.svc.Tail(ctx, c.consumer, c.cursor, streamBatch)
		cancel()
		if err != nil {
			zap.L().Warn("audit tail failed", zap.String("consumer", c.consumer), zap.Int64("after_seq", c.cursor.AfterSeq), zap.Error(err))
			continue
		}

		for _, ev := range events {
			message, err := json.Marshal(ev)
			if err != nil {
				zap.L().Error("audit event not encodable", zap.String("event_id", ev.EventID), zap.Error(err))
				continue
			}
			select {
			case c.send <- message:
			case <-c.done:
				return
			}
		}
		c.cursor = next
	}
}

func (c *StreamClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			// Drain so the poll loop never blocks on a dead connection.
			for range c.send {
			}
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump only watches for the consumer hanging up. Incoming frames are
// discarded.
func (c *StreamClient) readPump(h *StreamHandler) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.quit:
		}
	}()

	c.conn.SetReadLimit(streamReadLimit)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Debug("stream client closed", zap.String("consumer", c.consumer), zap.Error(err))
			}
			return
		}
	}
}
