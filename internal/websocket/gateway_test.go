package websocket

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/decipherworld/classroom-server/internal/repository"
	"github.com/decipherworld/classroom-server/internal/service"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testReadTimeout = 3 * time.Second

// gateway bundles everything a websocket test needs: a seeded database,
// the service layer broadcasting through a live hub, and an httptest
// server performing real upgrades.
type gateway struct {
	hub     *Hub
	handler *GameMessageHandler
	db      *gorm.DB
	svcs    *service.Services
	server  *httptest.Server
}

func newTestGateway(t *testing.T, cfg *service.Config) *gateway {
	t.Helper()

	db := repository.TestDB(t)
	repository.SeedTestData(t, db)

	// Long heartbeat interval so timeout tests drive the sweep by hand.
	hub := NewHub(time.Hour, time.Hour, zap.NewNop())
	svcs := service.NewServices(db, cfg, hub, zap.NewNop())

	dispatcher := NewDispatcher(4, 16, zap.NewNop())
	handler := NewGameMessageHandler(hub, svcs.Session, svcs.Progression, svcs.RateLimiter, dispatcher, zap.NewNop())

	go hub.Run()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	// Mirrors the accept flow of the HTTP layer: a connection opened on
	// /ws/<code> is subscribed to that session at accept time, a bare
	// path yields an unsubscribed connection.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, 0, 0)
		hub.Register(client)
		go client.WritePump()
		if code := strings.TrimPrefix(r.URL.Path, "/ws/"); code != "" && code != r.URL.Path {
			hub.Connect(client, code)
		}
		client.ReadPump()
	}))

	t.Cleanup(func() {
		server.Close()
		dispatcher.Stop()
		hub.Stop()
		repository.CleanupTestDB(db)
	})

	return &gateway{hub: hub, handler: handler, db: db, svcs: svcs, server: server}
}

// testConn wraps a dialed connection with a queue of already-read
// envelopes, because the write pump batches several messages into one
// websocket frame.
type testConn struct {
	conn  *websocket.Conn
	queue []Message
}

// dial opens a connection on the session's path. An empty code gives a
// connection outside every broadcast group.
func (g *gateway) dial(t *testing.T, code string) *testConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http")
	if code != "" {
		url += "/ws/" + code
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testConn{conn: conn}
}

func (c *testConn) send(t *testing.T, msgType string, data interface{}) {
	t.Helper()
	msg, err := NewMessage(msgType, data)
	require.NoError(t, err)
	require.NoError(t, c.conn.WriteJSON(msg))
}

// next returns the next envelope, reading another frame when the queue
// is drained.
func (c *testConn) next(t *testing.T) (Message, error) {
	t.Helper()
	for len(c.queue) == 0 {
		c.conn.SetReadDeadline(time.Now().Add(testReadTimeout))
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return Message{}, err
		}
		for _, chunk := range bytes.Split(data, []byte{'\n'}) {
			if len(bytes.TrimSpace(chunk)) == 0 {
				continue
			}
			var msg Message
			require.NoError(t, json.Unmarshal(chunk, &msg))
			c.queue = append(c.queue, msg)
		}
	}
	msg := c.queue[0]
	c.queue = c.queue[1:]
	return msg, nil
}

// waitFor skips heartbeats and unrelated broadcasts until a frame of the
// wanted type arrives.
func (c *testConn) waitFor(t *testing.T, msgType string) Message {
	t.Helper()
	deadline := time.Now().Add(testReadTimeout)
	for time.Now().Before(deadline) {
		msg, err := c.next(t)
		require.NoError(t, err, "waiting for %q", msgType)
		if msg.Type == msgType {
			return msg
		}
	}
	t.Fatalf("no %q frame before deadline", msgType)
	return Message{}
}

// expectClose reads until the peer closes and asserts the close code.
func (c *testConn) expectClose(t *testing.T, code int) {
	t.Helper()
	for {
		_, err := c.next(t)
		if err == nil {
			continue
		}
		require.True(t, websocket.IsCloseError(err, code), "expected close %d, got %v", code, err)
		return
	}
}

// join waits out the snapshot pushed at accept time, then binds the
// connection's role and team.
func (c *testConn) join(t *testing.T, role ClientRole, teamID uint) service.SessionSnapshot {
	t.Helper()

	status := c.waitFor(t, MessageTypeSessionStatus)
	var snapshot service.SessionSnapshot
	require.NoError(t, json.Unmarshal(status.Data, &snapshot))

	msgType := MessageTypeJoinStudent
	if role == RoleFacilitator {
		msgType = MessageTypeJoinFacilitator
	}
	c.send(t, msgType, joinPayload{JoinCode: snapshot.JoinCode, TeamID: teamID})
	c.waitFor(t, MessageTypeJoined)

	return snapshot
}

func decodeError(t *testing.T, msg Message) ErrorPayload {
	t.Helper()
	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	return payload
}
