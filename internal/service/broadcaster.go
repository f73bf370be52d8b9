package service

// Broadcast event types fanned out to every connection in a session group.
// The gateway reuses these as outbound message types.
const (
	EventInputSubmissionUpdate = "input_submission_update"
	EventCompletionStatus      = "completion_status"
	EventTeacherScoreUpdate    = "teacher_score_update"
	EventAdvanceCountdown      = "advance_countdown"
	EventCountdownCancelled    = "countdown_cancelled"
	EventMissionAdvanced       = "mission_advanced"
	EventFacilitatorNudge      = "facilitator_nudge"
)

// Broadcaster delivers one event to every connection subscribed to a
// session's join code. Implemented by the websocket hub; services hold the
// interface so the session store never depends on the gateway.
//
// Delivery is best-effort: a failed broadcast is logged by the implementation
// and never affects committed database state.
type Broadcaster interface {
	BroadcastToSession(joinCode string, eventType string, data interface{})
}

// NopBroadcaster drops every event. Used in tests and before the hub is wired.
type NopBroadcaster struct{}

// BroadcastToSession implements Broadcaster
func (NopBroadcaster) BroadcastToSession(string, string, interface{}) {}
