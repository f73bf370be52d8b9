package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultMaxMessageSize = 8192
	defaultSendBuffer     = 256
)

// ClientRole marks what the connection represents inside its session.
type ClientRole string

const (
	RoleUnknown     ClientRole = ""
	RoleFacilitator ClientRole = "facilitator"
	RoleStudent     ClientRole = "student"
)

// Client is one websocket connection. Everything here is transient: when
// the socket drops the client is gone and a reconnect starts from a fresh
// session_status snapshot.
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	mu          sync.RWMutex
	joinCode    string
	role        ClientRole
	teamID      uint
	displayName string
	lastSeen    time.Time

	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration

	// sendMu serializes enqueue against closeSend so no goroutine can
	// send on Send after it is closed.
	sendMu     sync.Mutex
	sendClosed bool

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. sendBuffer and maxMessageSize of
// zero fall back to the defaults.
func NewClient(hub *Hub, conn *websocket.Conn, sendBuffer int, maxMessageSize int64) *Client {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	return &Client{
		ID:             uuid.New().String(),
		Hub:            hub,
		Conn:           conn,
		Send:           make(chan []byte, sendBuffer),
		lastSeen:       time.Now(),
		maxMessageSize: maxMessageSize,
		writeWait:      defaultWriteWait,
		pongWait:       hub.heartbeatTimeout,
	}
}

// SetWriteTimeout overrides the per-write deadline. Call before the
// pumps start.
func (c *Client) SetWriteTimeout(d time.Duration) {
	if d > 0 {
		c.writeWait = d
	}
}

// RemoteAddr for logging.
func (c *Client) RemoteAddr() string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}

// JoinCode returns the session group this connection belongs to, or "".
func (c *Client) JoinCode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joinCode
}

func (c *Client) setJoinCode(code string) {
	c.mu.Lock()
	c.joinCode = code
	c.mu.Unlock()
}

// Role returns the connection's declared role.
func (c *Client) Role() ClientRole {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// SetIdentity records the join handshake outcome on the connection.
func (c *Client) SetIdentity(role ClientRole, teamID uint, name string) {
	c.mu.Lock()
	c.role = role
	c.teamID = teamID
	c.displayName = name
	c.mu.Unlock()
}

// TeamID returns the team a student connection joined for, 0 otherwise.
func (c *Client) TeamID() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.teamID
}

// LastSeen returns the time of the last sign of life from the peer.
func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

// Touch marks the connection alive. Called on every inbound frame and on
// gorilla pong, so either transport keeps the heartbeat reaper away.
func (c *Client) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// enqueue queues an encoded frame for the write pump without blocking.
// Frames for a connection that already left are dropped, not delivered;
// dispatcher workers and the heartbeat loop hold *Client references past
// the point where the hub unregisters them.
func (c *Client) enqueue(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return ErrClientGone
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// closeSend signals the write pump to finish. Only the hub calls this,
// and only once the client is out of the clients map. Safe to call more
// than once.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.Send)
	}
	c.sendMu.Unlock()
}

// ReadPump reads frames until the connection dies, then unregisters.
// One goroutine per connection; all reads happen here.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
		c.Touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("websocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}

		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
		c.Touch()

		if c.Hub.handler != nil {
			c.Hub.handler.HandleClientMessage(c, message)
		}
	}
}

// WritePump drains the send channel onto the socket and keeps the gorilla
// ping cadence. All writes happen here.
func (c *Client) WritePump() {
	pingPeriod := (c.pongWait * 9) / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush whatever queued up behind this frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage wraps a payload in the envelope and queues it.
func (c *Client) SendMessage(msgType string, data interface{}) error {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		return err
	}
	return c.Hub.sendToClient(c, msg)
}

// SendError queues a structured error frame.
func (c *Client) SendError(payload *ErrorPayload) {
	if err := c.SendMessage(MessageTypeError, payload); err != nil {
		c.Hub.logger.Warn("failed to send error frame",
			zap.String("client_id", c.ID),
			zap.Error(err))
	}
}

// CloseWithCode writes a close frame with the given status and tears the
// connection down. Used for protocol-level rejections (4004, 4008, 4029).
func (c *Client) CloseWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(c.writeWait)
		msg := websocket.FormatCloseMessage(code, reason)
		c.Conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.Conn.Close()
	})
	c.Hub.Unregister(c)
}

// Close tears the connection down with a normal close code.
func (c *Client) Close() {
	c.CloseWithCode(CloseNormal, "")
}
