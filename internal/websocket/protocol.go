package websocket

import (
	"encoding/json"
	"time"
)

// Inbound message types. The dispatch over these is exhaustive; anything
// else is answered with an error and the connection is closed.
const (
	MessageTypeJoinFacilitator   = "join_as_facilitator"
	MessageTypeJoinStudent       = "join_as_student"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeHeartbeatResponse = "heartbeat_response"
	MessageTypeSubmitInput       = "submit_input"
	MessageTypeTeacherScore      = "teacher_score_submit"
	MessageTypeRequestStatus     = "request_status"
	MessageTypeReconnect         = "reconnect_request"
	MessageTypeNudge             = "facilitator_nudge"
	MessageTypeCancelCountdown   = "cancel_countdown"
)

// Outbound message types. Event names shared with the service layer
// (input_submission_update, completion_status, teacher_score_update,
// advance_countdown, countdown_cancelled, mission_advanced,
// facilitator_nudge) are defined in internal/service and pass through
// the hub unchanged.
const (
	MessageTypeConnected         = "connected"
	MessageTypeSessionStatus     = "session_status"
	MessageTypeJoined            = "joined"
	MessageTypeHeartbeat         = "heartbeat"
	MessageTypeSubmissionSuccess = "input_submission_success"
	MessageTypeError             = "error"
)

// Close codes sent before dropping a connection.
const (
	CloseNormal           = 1000
	CloseGroupJoinFailed  = 4002
	CloseDatabaseError    = 4003
	CloseSessionNotFound  = 4004
	CloseHeartbeatTimeout = 4008
	CloseRateLimited      = 4029
)

// Message is the wire envelope for every frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage wraps a payload in the envelope, stamping it with the
// current time. Marshal failures surface to the caller so a broken
// payload is never silently dropped on the floor.
func NewMessage(msgType string, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return &Message{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().Unix(),
	}, nil
}

// ErrorPayload is the structured body of an outbound error frame.
// RetryAllowed tells the client whether resending the same request can
// succeed (transient failures) or is pointless (validation rejections).
type ErrorPayload struct {
	Message      string `json:"message"`
	RetryAllowed bool   `json:"retry_allowed"`
	ErrorCode    int    `json:"error_code,omitempty"`
}

// joinPayload carried by join_as_facilitator and join_as_student.
type joinPayload struct {
	JoinCode string `json:"join_code"`
	TeamID   uint   `json:"team_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// teacherScorePayload carried by teacher_score_submit.
type teacherScorePayload struct {
	TeamID    uint `json:"team_id"`
	MissionID uint `json:"mission_id"`
	Score     int  `json:"score"`
	TeacherID uint `json:"teacher_id"`
}

// cancelCountdownPayload carried by cancel_countdown.
type cancelCountdownPayload struct {
	Reason string `json:"reason,omitempty"`
}

// validInboundTypes gates dispatch before any payload parsing runs.
var validInboundTypes = map[string]bool{
	MessageTypeJoinFacilitator:   true,
	MessageTypeJoinStudent:       true,
	MessageTypePing:              true,
	MessageTypePong:              true,
	MessageTypeHeartbeatResponse: true,
	MessageTypeSubmitInput:       true,
	MessageTypeTeacherScore:      true,
	MessageTypeRequestStatus:     true,
	MessageTypeReconnect:         true,
	MessageTypeNudge:             true,
	MessageTypeCancelCountdown:   true,
}

// IsValidInbound reports whether the gateway accepts msgType from clients.
func IsValidInbound(msgType string) bool {
	return validInboundTypes[msgType]
}
