package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrClientGone     = errors.New("client gone")
	ErrSendBufferFull = errors.New("send buffer full")
)

// MessageHandler receives every inbound frame once the client pumps have
// decoded nothing more than raw bytes. Implemented by GameMessageHandler.
type MessageHandler interface {
	HandleClientConnect(client *Client, joinCode string)
	HandleClientMessage(client *Client, data []byte)
	HandleClientDisconnect(client *Client)
}

// Hub owns every live connection and the per-join-code broadcast groups.
// It holds transient connection state only (who is on which session and
// whether they are a facilitator); game progress always lives in the
// database, so a hub restart loses nothing but the open sockets.
type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// join code -> client IDs subscribed to that session
	groups   map[string]map[string]*Client
	groupsMu sync.RWMutex

	broadcast  chan *sessionBroadcast
	register   chan *Client
	unregister chan *Client

	handler MessageHandler

	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	stop     chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

type sessionBroadcast struct {
	joinCode string
	data     []byte
}

// NewHub creates a hub with the given heartbeat cadence. The handler is
// attached later via SetHandler because the handler needs the hub too.
func NewHub(heartbeatInterval, heartbeatTimeout time.Duration, logger *zap.Logger) *Hub {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 15 * time.Second
	}
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 60 * time.Second
	}
	return &Hub{
		clients:           make(map[string]*Client),
		groups:            make(map[string]map[string]*Client),
		broadcast:         make(chan *sessionBroadcast, 256),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		heartbeatInterval: heartbeatInterval,
		heartbeatTimeout:  heartbeatTimeout,
		stop:              make(chan struct{}),
		logger:            logger,
	}
}

// SetHandler wires the message handler. Must happen before Run.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Run processes registration and broadcast traffic until Stop is called.
func (h *Hub) Run() {
	go h.runHeartbeat()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.fanOut(msg.joinCode, msg.data)

		case <-h.stop:
			return
		}
	}
}

// Stop shuts the hub loop down and closes every connection.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)

		h.clientsMu.Lock()
		for id, client := range h.clients {
			delete(h.clients, id)
			client.closeSend()
		}
		h.clientsMu.Unlock()

		h.groupsMu.Lock()
		h.groups = make(map[string]map[string]*Client)
		h.groupsMu.Unlock()
	})
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("websocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr()))

	msg, err := NewMessage(MessageTypeConnected, map[string]string{
		"connection_id": client.ID,
	})
	if err == nil {
		h.sendToClient(client, msg)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
		client.closeSend()
	}
	h.clientsMu.Unlock()

	if !ok {
		return
	}

	h.leaveGroup(client)

	if h.handler != nil {
		h.handler.HandleClientDisconnect(client)
	}

	h.logger.Info("websocket client disconnected",
		zap.String("client_id", client.ID),
		zap.String("join_code", client.JoinCode()))
}

// JoinGroup subscribes the client to a session's broadcast group, leaving
// any group it was in before. A connection belongs to at most one session.
func (h *Hub) JoinGroup(client *Client, joinCode string) {
	h.leaveGroup(client)

	h.groupsMu.Lock()
	group, ok := h.groups[joinCode]
	if !ok {
		group = make(map[string]*Client)
		h.groups[joinCode] = group
	}
	group[client.ID] = client
	h.groupsMu.Unlock()

	client.setJoinCode(joinCode)
}

func (h *Hub) leaveGroup(client *Client) {
	joinCode := client.JoinCode()
	if joinCode == "" {
		return
	}

	h.groupsMu.Lock()
	if group, ok := h.groups[joinCode]; ok {
		delete(group, client.ID)
		if len(group) == 0 {
			delete(h.groups, joinCode)
		}
	}
	h.groupsMu.Unlock()

	client.setJoinCode("")
}

// GroupSize reports how many connections are subscribed to a session.
func (h *Hub) GroupSize(joinCode string) int {
	h.groupsMu.RLock()
	defer h.groupsMu.RUnlock()
	return len(h.groups[joinCode])
}

// OnlineCount reports the total number of live connections.
func (h *Hub) OnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// BroadcastToSession implements service.Broadcaster. Every member of the
// group receives the event; recipients filter client-side, the hub never
// does per-recipient routing.
func (h *Hub) BroadcastToSession(joinCode string, eventType string, data interface{}) {
	msg, err := NewMessage(eventType, data)
	if err != nil {
		h.logger.Error("failed to encode broadcast",
			zap.String("join_code", joinCode),
			zap.String("type", eventType),
			zap.Error(err))
		return
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast envelope",
			zap.String("join_code", joinCode),
			zap.Error(err))
		return
	}

	select {
	case h.broadcast <- &sessionBroadcast{joinCode: joinCode, data: encoded}:
	case <-h.stop:
	}
}

func (h *Hub) fanOut(joinCode string, data []byte) {
	h.groupsMu.RLock()
	group := h.groups[joinCode]
	recipients := make([]*Client, 0, len(group))
	for _, client := range group {
		recipients = append(recipients, client)
	}
	h.groupsMu.RUnlock()

	for _, client := range recipients {
		if err := client.enqueue(data); errors.Is(err, ErrSendBufferFull) {
			h.logger.Warn("client send buffer full, dropping frame",
				zap.String("client_id", client.ID),
				zap.String("join_code", joinCode))
		}
	}
}

// SendToClient delivers one message to a single connection.
func (h *Hub) SendToClient(clientID string, msg *Message) error {
	h.clientsMu.RLock()
	client, ok := h.clients[clientID]
	h.clientsMu.RUnlock()

	if !ok {
		return ErrClientNotFound
	}
	return h.sendToClient(client, msg)
}

func (h *Hub) sendToClient(client *Client, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.enqueue(data)
}

// Connect runs the post-upgrade join flow for a connection accepted on a
// session path: group subscription and the initial status snapshot.
func (h *Hub) Connect(client *Client, joinCode string) {
	if h.handler != nil {
		h.handler.HandleClientConnect(client, joinCode)
	}
}

// Register hands a freshly upgraded connection to the hub loop.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister detaches a connection; safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// runHeartbeat pushes an application-level heartbeat to every connection
// and reaps the ones that stayed silent past the timeout. Runs alongside
// the gorilla ping/pong in the write pump; either one keeps lastSeen fresh.
func (h *Hub) runHeartbeat() {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweepHeartbeats()
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) sweepHeartbeats() {
	h.clientsMu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clientsMu.RUnlock()

	now := time.Now()
	for _, client := range clients {
		if now.Sub(client.LastSeen()) > h.heartbeatTimeout {
			h.logger.Warn("heartbeat timeout, closing connection",
				zap.String("client_id", client.ID),
				zap.String("join_code", client.JoinCode()),
				zap.Duration("silent_for", now.Sub(client.LastSeen())))
			client.CloseWithCode(CloseHeartbeatTimeout, "heartbeat timeout")
			continue
		}
		msg, err := NewMessage(MessageTypeHeartbeat, map[string]string{
			"connection_id": client.ID,
		})
		if err == nil {
			h.sendToClient(client, msg)
		}
	}
}
