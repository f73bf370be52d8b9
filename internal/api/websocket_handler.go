package api

import (
	"net/http"
	"time"

	"github.com/decipherworld/classroom-server/internal/config"
	"github.com/decipherworld/classroom-server/internal/service"
	ws "github.com/decipherworld/classroom-server/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler upgrades /ws/:code connections onto the hub.
type WebSocketHandler struct {
	hub            *ws.Hub
	sessionService service.SessionService
	upgrader       websocket.Upgrader
	sendBuffer     int
	maxMessageSize int64
	writeTimeout   time.Duration
	logger         *zap.Logger
}

// NewWebSocketHandler creates the handler from the gateway config.
func NewWebSocketHandler(hub *ws.Hub, sessionService service.SessionService, cfg *config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	readBuffer, writeBuffer := 1024, 1024
	var sendBuffer int
	var maxMessageSize int64
	var writeTimeout time.Duration
	compression := false
	if cfg != nil {
		if cfg.ReadBufferSize > 0 {
			readBuffer = cfg.ReadBufferSize
		}
		if cfg.WriteBufferSize > 0 {
			writeBuffer = cfg.WriteBufferSize
		}
		sendBuffer = cfg.SendBufferSize
		maxMessageSize = cfg.MaxMessageSize
		writeTimeout = cfg.WriteTimeout
		compression = cfg.EnableCompression
	}

	return &WebSocketHandler{
		hub:            hub,
		sessionService: sessionService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    readBuffer,
			WriteBufferSize:   writeBuffer,
			EnableCompression: compression,
			CheckOrigin: func(*http.Request) bool {
				// Classroom clients come from arbitrary school networks.
				return true
			},
		},
		sendBuffer:     sendBuffer,
		maxMessageSize: maxMessageSize,
		writeTimeout:   writeTimeout,
		logger:         logger,
	}
}

// SessionWebSocket validates the join code before the upgrade, then hands
// the connection to the hub. The hub subscribes the connection to the
// session's broadcast group and pushes the initial status snapshot;
// join_as_student and join_as_facilitator only bind role and team.
func (h *WebSocketHandler) SessionWebSocket(c *gin.Context) {
	joinCode := c.Param("code")

	// Reject unknown codes with a plain HTTP 404 before the upgrade.
	if _, err := h.sessionService.GetSessionByJoinCode(c.Request.Context(), joinCode); err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed",
			zap.String("join_code", joinCode),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, h.sendBuffer, h.maxMessageSize)
	client.SetWriteTimeout(h.writeTimeout)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.hub.Connect(client, joinCode)

	h.logger.Info("websocket connection established",
		zap.String("client_id", client.ID),
		zap.String("join_code", joinCode),
		zap.String("remote_addr", c.ClientIP()))
}
