package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/decipherworld/classroom-server/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBroadcastReachesWholeGroup(t *testing.T) {
	g := newTestGateway(t, nil)

	student := g.dial(t, "ABC123")
	facilitator := g.dial(t, "ABC123")

	student.join(t, RoleStudent, 0)
	facilitator.join(t, RoleFacilitator, 0)

	require.Eventually(t, func() bool {
		return g.hub.GroupSize("ABC123") == 2
	}, time.Second, 10*time.Millisecond)

	g.hub.BroadcastToSession("ABC123", service.EventCompletionStatus, map[string]interface{}{
		"team_id":               1,
		"completion_percentage": 50.0,
	})

	for _, conn := range []*testConn{student, facilitator} {
		msg := conn.waitFor(t, service.EventCompletionStatus)
		assert.NotNil(t, msg.Data)
		assert.NotZero(t, msg.Timestamp)
	}
}

func TestHubBroadcastScopedToJoinCode(t *testing.T) {
	g := newTestGateway(t, nil)

	joined := g.dial(t, "ABC123")
	bystander := g.dial(t, "")

	joined.join(t, RoleStudent, 0)
	bystander.waitFor(t, MessageTypeConnected)

	g.hub.BroadcastToSession("ABC123", service.EventFacilitatorNudge, map[string]string{"prompt": "focus"})
	joined.waitFor(t, service.EventFacilitatorNudge)

	// The connection that never joined must see nothing.
	_, err := bystander.next(t)
	require.Error(t, err)
}

func TestHubGroupCleanupOnDisconnect(t *testing.T) {
	g := newTestGateway(t, nil)

	conn := g.dial(t, "ABC123")
	conn.join(t, RoleStudent, 0)

	require.Eventually(t, func() bool {
		return g.hub.GroupSize("ABC123") == 1
	}, time.Second, 10*time.Millisecond)

	conn.conn.Close()

	require.Eventually(t, func() bool {
		return g.hub.GroupSize("ABC123") == 0 && g.hub.OnlineCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubHeartbeatReapsSilentConnection(t *testing.T) {
	g := newTestGateway(t, nil)

	conn := g.dial(t, "")
	conn.waitFor(t, MessageTypeConnected)

	require.Eventually(t, func() bool {
		return g.hub.OnlineCount() == 1
	}, time.Second, 10*time.Millisecond)

	// Backdate the connection past the timeout, then run one sweep.
	g.hub.clientsMu.RLock()
	for _, client := range g.hub.clients {
		client.mu.Lock()
		client.lastSeen = time.Now().Add(-2 * g.hub.heartbeatTimeout)
		client.mu.Unlock()
	}
	g.hub.clientsMu.RUnlock()

	g.hub.sweepHeartbeats()

	conn.expectClose(t, CloseHeartbeatTimeout)

	require.Eventually(t, func() bool {
		return g.hub.OnlineCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubHeartbeatKeepsLiveConnection(t *testing.T) {
	g := newTestGateway(t, nil)

	conn := g.dial(t, "")
	conn.waitFor(t, MessageTypeConnected)

	g.hub.sweepHeartbeats()
	beat := conn.waitFor(t, MessageTypeHeartbeat)

	// Each heartbeat is addressed to its connection.
	var body map[string]string
	require.NoError(t, json.Unmarshal(beat.Data, &body))
	assert.NotEmpty(t, body["connection_id"])

	conn.send(t, MessageTypeHeartbeatResponse, nil)

	g.hub.sweepHeartbeats()
	conn.waitFor(t, MessageTypeHeartbeat)

	assert.Equal(t, 1, g.hub.OnlineCount())
}

func TestHubSendAfterUnregisterIsDropped(t *testing.T) {
	hub := NewHub(time.Hour, time.Hour, zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	client := NewClient(hub, nil, 1, 0)
	hub.Register(client)
	require.Eventually(t, func() bool {
		return hub.OnlineCount() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Unregister(client)
	require.Eventually(t, func() bool {
		return hub.OnlineCount() == 0
	}, time.Second, 10*time.Millisecond)

	// A dispatcher worker or the heartbeat loop may still hold the
	// client after it left; a late frame must be dropped, never panic.
	require.NotPanics(t, func() {
		err := client.SendMessage(MessageTypePong, nil)
		assert.ErrorIs(t, err, ErrClientGone)
	})
}

func TestHubSendToUnknownClient(t *testing.T) {
	g := newTestGateway(t, nil)

	msg, err := NewMessage(MessageTypePong, nil)
	require.NoError(t, err)

	err = g.hub.SendToClient("no-such-client", msg)
	assert.ErrorIs(t, err, ErrClientNotFound)
}
