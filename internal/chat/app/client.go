package app

import (
	"sync"
	"time"

	"task_chat_service/pkg/config"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/metrics"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// wsConn the part of *websocket.Conn a Client uses
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Identity authenticated user attached at handshake
type Identity struct {
	UserID      string
	DisplayName string
	FirstName   string
}

// Client one live websocket connection owned by this instance
type Client struct {
	ID string
	Identity

	conn    wsConn
	send    chan []byte
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	// online AddOnline 成功才為 true，disconnect 才會 RemoveOnline
	online bool
}

// NewClient wrap a connection, send buffer and rate limit from config
func NewClient(conn wsConn, id Identity, cfg config.WSConfig) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Identity: id,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBuffer),
		limiter:  rate.NewLimiter(rate.Limit(cfg.EventRate), cfg.EventBurst),
		done:     make(chan struct{}),
	}
}

// Enqueue non blocking, a full buffer drops the client
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		metrics.SlowClientDrops.Inc()
		logger.Log.Warn("send buffer full, drop client", zap.String("user_id", c.UserID), zap.String("conn_id", c.ID))
		c.closeSendLocked()
		return false
	}
}

// Allow per connection event rate limit
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeSendLocked()
}

func (c *Client) closeSendLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump 唯一寫 conn 的 goroutine，send 關閉後送 close frame 並結束
func (c *Client) writePump(pingInterval, writeWait time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Log.Debug("websocket write", zap.String("conn_id", c.ID), zap.Error(err))
				_ = c.conn.Close()
				c.drain()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.Debug("websocket ping", zap.String("conn_id", c.ID), zap.Error(err))
				_ = c.conn.Close()
				c.drain()
				return
			}
		}
	}
}

// drain keep the send channel moving until it is closed, so Enqueue never blocks on a dead writer
func (c *Client) drain() {
	go func() {
		for range c.send {
		}
	}()
}

// readLoop blocks until the peer goes away; pong extends the read deadline
func (c *Client) readLoop(maxSize int64, pongWait time.Duration, handle func(data []byte)) {
	c.conn.SetReadLimit(maxSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Warn("websocket read", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}
		// 只處理 TextMessage，close / ping / pong 由 fiber 處理
		if mt != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(data)
	}
}
