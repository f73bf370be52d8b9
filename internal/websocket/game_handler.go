package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/service"
	"go.uber.org/zap"
)

// rateLimitStrikes before a connection that keeps hammering past the
// limiter gets dropped instead of another error frame.
const rateLimitStrikes = 3

// GameMessageHandler dispatches inbound frames to the session and
// progression services. DB-bound calls run on the dispatcher pool; only
// payload parsing and group bookkeeping happen on the read pump.
type GameMessageHandler struct {
	hub         *Hub
	sessions    service.SessionService
	progression service.ProgressionService
	limiter     *service.RateLimiter
	dispatcher  *Dispatcher
	logger      *zap.Logger

	// join code -> numeric session ID, filled when a connection is
	// accepted on the session's path
	sessionIDs   map[string]uint
	sessionIDsMu sync.RWMutex

	// join code -> pending auto-advance countdown
	countdowns   map[string]*countdownState
	countdownsMu sync.Mutex

	// client ID -> consecutive rate-limit violations
	strikes   map[string]int
	strikesMu sync.Mutex
}

type countdownState struct {
	timer         *time.Timer
	sessionID     uint
	fromMissionID uint
	toMissionID   uint
}

// NewGameMessageHandler wires the handler and attaches it to the hub.
func NewGameMessageHandler(hub *Hub, sessions service.SessionService, progression service.ProgressionService, limiter *service.RateLimiter, dispatcher *Dispatcher, logger *zap.Logger) *GameMessageHandler {
	h := &GameMessageHandler{
		hub:         hub,
		sessions:    sessions,
		progression: progression,
		limiter:     limiter,
		dispatcher:  dispatcher,
		logger:      logger,
		sessionIDs:  make(map[string]uint),
		countdowns:  make(map[string]*countdownState),
		strikes:     make(map[string]int),
	}
	hub.SetHandler(h)
	return h
}

// HandleClientConnect implements MessageHandler. Runs once per accepted
// connection: it resolves the session behind the path's join code,
// subscribes the connection to the session's broadcast group, and pushes
// the initial status snapshot. A connection that only listens from here
// on still sees every group event.
func (h *GameMessageHandler) HandleClientConnect(client *Client, joinCode string) {
	if !h.dispatcher.Submit(func() { h.completeConnect(client, joinCode) }) {
		h.sendBusy(client)
		client.Close()
	}
}

func (h *GameMessageHandler) completeConnect(client *Client, joinCode string) {
	ctx := context.Background()

	sess, err := h.sessions.GetSessionByJoinCode(ctx, joinCode)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			client.CloseWithCode(CloseSessionNotFound, "session not found")
			return
		}
		h.logger.Error("session lookup failed",
			zap.String("join_code", joinCode),
			zap.Error(err))
		client.CloseWithCode(CloseDatabaseError, "lookup failed")
		return
	}

	snapshot, err := h.sessions.GetSessionSnapshot(ctx, joinCode)
	if err != nil {
		h.logger.Error("snapshot failed",
			zap.String("join_code", joinCode),
			zap.Error(err))
		client.CloseWithCode(CloseGroupJoinFailed, "failed to join session group")
		return
	}

	h.sessionIDsMu.Lock()
	h.sessionIDs[joinCode] = sess.ID
	h.sessionIDsMu.Unlock()

	h.hub.JoinGroup(client, joinCode)
	client.SendMessage(MessageTypeSessionStatus, snapshot)

	h.logger.Info("client connected to session",
		zap.String("client_id", client.ID),
		zap.String("join_code", joinCode))
}

// HandleClientMessage implements MessageHandler.
func (h *GameMessageHandler) HandleClientMessage(client *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Warn("malformed frame",
			zap.String("client_id", client.ID),
			zap.Error(err))
		client.SendError(&ErrorPayload{
			Message:   "malformed message",
			ErrorCode: int(apperrors.ErrMessageFormat),
		})
		client.Close()
		return
	}

	if !IsValidInbound(msg.Type) {
		h.logger.Warn("unknown message type",
			zap.String("client_id", client.ID),
			zap.String("type", msg.Type))
		client.SendError(&ErrorPayload{
			Message:   "unsupported message type: " + msg.Type,
			ErrorCode: int(apperrors.ErrUnknownMessage),
		})
		client.Close()
		return
	}

	switch msg.Type {
	case MessageTypePing:
		client.SendMessage(MessageTypePong, nil)

	case MessageTypePong, MessageTypeHeartbeatResponse:
		// lastSeen was already refreshed by the read pump

	case MessageTypeJoinFacilitator:
		h.handleJoin(client, &msg, RoleFacilitator)

	case MessageTypeJoinStudent:
		h.handleJoin(client, &msg, RoleStudent)

	case MessageTypeRequestStatus, MessageTypeReconnect:
		h.handleStatusRequest(client)

	case MessageTypeSubmitInput:
		h.handleSubmitInput(client, &msg)

	case MessageTypeTeacherScore:
		h.handleTeacherScore(client, &msg)

	case MessageTypeCancelCountdown:
		h.handleCancelCountdown(client, &msg)

	case MessageTypeNudge:
		h.handleNudge(client, &msg)
	}
}

// HandleClientDisconnect implements MessageHandler.
func (h *GameMessageHandler) HandleClientDisconnect(client *Client) {
	h.strikesMu.Lock()
	delete(h.strikes, client.ID)
	h.strikesMu.Unlock()
}

// handleJoin binds role, team, and display name onto a connection that
// was already subscribed at accept time. The join code in the payload is
// redundant with the path the socket was opened on; a mismatch is a
// client bug and gets an error frame instead of a silent regroup.
func (h *GameMessageHandler) handleJoin(client *Client, msg *Message, role ClientRole) {
	var payload joinPayload
	if msg.Data != nil {
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			client.SendError(&ErrorPayload{
				Message:   "invalid join payload",
				ErrorCode: int(apperrors.ErrMessageFormat),
			})
			return
		}
	}

	joinCode := client.JoinCode()
	if joinCode == "" {
		client.SendError(&ErrorPayload{
			Message:   "not connected to a session",
			ErrorCode: int(apperrors.ErrClientNotJoined),
		})
		return
	}
	if payload.JoinCode != "" && payload.JoinCode != joinCode {
		client.SendError(&ErrorPayload{
			Message:   "join_code does not match this connection",
			ErrorCode: int(apperrors.ErrMessageFormat),
		})
		return
	}

	client.SetIdentity(role, payload.TeamID, payload.Name)

	client.SendMessage(MessageTypeJoined, map[string]interface{}{
		"join_code": joinCode,
		"role":      string(role),
		"team_id":   payload.TeamID,
	})

	h.logger.Info("client joined session",
		zap.String("client_id", client.ID),
		zap.String("join_code", joinCode),
		zap.String("role", string(role)))
}

// handleStatusRequest serves request_status and reconnect_request. Both
// are stateless resyncs: the reply is always a fresh snapshot, never a
// replay of missed frames.
func (h *GameMessageHandler) handleStatusRequest(client *Client) {
	joinCode := client.JoinCode()
	if joinCode == "" {
		client.SendError(&ErrorPayload{
			Message:   "join a session first",
			ErrorCode: int(apperrors.ErrClientNotJoined),
		})
		return
	}

	if !h.dispatcher.Submit(func() {
		snapshot, err := h.sessions.GetSessionSnapshot(context.Background(), joinCode)
		if err != nil {
			h.sendServiceError(client, err)
			return
		}
		client.SendMessage(MessageTypeSessionStatus, snapshot)
	}) {
		h.sendBusy(client)
	}
}

func (h *GameMessageHandler) handleSubmitInput(client *Client, msg *Message) {
	joinCode := client.JoinCode()
	if joinCode == "" {
		client.SendError(&ErrorPayload{
			Message:   "join a session first",
			ErrorCode: int(apperrors.ErrClientNotJoined),
		})
		return
	}

	var req service.SubmitInputsRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		client.SendError(&ErrorPayload{
			Message:   "invalid submission payload",
			ErrorCode: int(apperrors.ErrMessageFormat),
		})
		return
	}

	if h.limiter != nil {
		if ok, retryAfter := h.limiter.Allow(req.TeamID); !ok {
			h.strikesMu.Lock()
			h.strikes[client.ID]++
			strikes := h.strikes[client.ID]
			h.strikesMu.Unlock()

			h.logger.Warn("submission rate limited",
				zap.Uint("team_id", req.TeamID),
				zap.Duration("retry_after", retryAfter),
				zap.Int("strikes", strikes))

			if strikes >= rateLimitStrikes {
				client.CloseWithCode(CloseRateLimited, "rate limit exceeded")
				return
			}
			client.SendError(&ErrorPayload{
				Message:      "too many submissions, retry in " + retryAfter.Round(time.Second).String(),
				RetryAllowed: true,
				ErrorCode:    int(apperrors.ErrRateLimitExceeded),
			})
			return
		}
	}

	h.strikesMu.Lock()
	delete(h.strikes, client.ID)
	h.strikesMu.Unlock()

	if !h.dispatcher.Submit(func() {
		result, err := h.progression.ProcessPhaseInput(context.Background(), &req)
		if err != nil {
			h.sendServiceError(client, err)
			return
		}

		client.SendMessage(MessageTypeSubmissionSuccess, result)

		if result.Decision != nil && result.Decision.ShouldAdvance {
			h.scheduleAdvance(joinCode, result.Decision)
		}
	}) {
		h.sendBusy(client)
	}
}

func (h *GameMessageHandler) handleTeacherScore(client *Client, msg *Message) {
	if client.Role() != RoleFacilitator {
		client.SendError(&ErrorPayload{
			Message:   "only the facilitator can score",
			ErrorCode: int(apperrors.ErrAuthorization),
		})
		return
	}

	var payload teacherScorePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		client.SendError(&ErrorPayload{
			Message:   "invalid score payload",
			ErrorCode: int(apperrors.ErrMessageFormat),
		})
		return
	}

	if !h.dispatcher.Submit(func() {
		// The applied score fans out to the group as teacher_score_update;
		// the sender only needs the applied count.
		result, err := h.progression.SaveTeacherScore(context.Background(), &service.TeacherScoreRequest{
			TeamID:    payload.TeamID,
			MissionID: payload.MissionID,
			Score:     payload.Score,
			TeacherID: payload.TeacherID,
		})
		if err != nil {
			h.sendServiceError(client, err)
			return
		}
		client.SendMessage(MessageTypeSubmissionSuccess, result)
	}) {
		h.sendBusy(client)
	}
}

func (h *GameMessageHandler) handleCancelCountdown(client *Client, msg *Message) {
	if client.Role() != RoleFacilitator {
		client.SendError(&ErrorPayload{
			Message:   "only the facilitator can cancel the countdown",
			ErrorCode: int(apperrors.ErrAuthorization),
		})
		return
	}

	var payload cancelCountdownPayload
	if msg.Data != nil {
		json.Unmarshal(msg.Data, &payload)
	}

	joinCode := client.JoinCode()
	if h.CancelCountdown(joinCode) {
		reason := payload.Reason
		if reason == "" {
			reason = "cancelled by facilitator"
		}
		h.hub.BroadcastToSession(joinCode, service.EventCountdownCancelled, map[string]string{
			"reason": reason,
		})
	}
}

// handleNudge rebroadcasts a facilitator prompt to the whole group.
// The payload passes through untouched.
func (h *GameMessageHandler) handleNudge(client *Client, msg *Message) {
	if client.Role() != RoleFacilitator {
		client.SendError(&ErrorPayload{
			Message:   "only the facilitator can nudge",
			ErrorCode: int(apperrors.ErrAuthorization),
		})
		return
	}

	joinCode := client.JoinCode()
	if joinCode == "" {
		return
	}
	h.hub.BroadcastToSession(joinCode, service.EventFacilitatorNudge, msg.Data)
}

// scheduleAdvance announces the countdown and arms a cancellable timer
// that commits the transition. At most one countdown per session; a second
// qualifying submission while one is pending is a no-op.
func (h *GameMessageHandler) scheduleAdvance(joinCode string, decision *service.AdvanceDecision) {
	if decision.CurrentMission == nil || decision.NextMission == nil {
		return
	}

	h.sessionIDsMu.RLock()
	sessionID, ok := h.sessionIDs[joinCode]
	h.sessionIDsMu.RUnlock()
	if !ok {
		return
	}

	h.countdownsMu.Lock()
	if _, pending := h.countdowns[joinCode]; pending {
		h.countdownsMu.Unlock()
		return
	}

	state := &countdownState{
		sessionID:     sessionID,
		fromMissionID: decision.CurrentMission.ID,
		toMissionID:   decision.NextMission.ID,
	}
	state.timer = time.AfterFunc(time.Duration(decision.CountdownSeconds)*time.Second, func() {
		h.fireAdvance(joinCode, state)
	})
	h.countdowns[joinCode] = state
	h.countdownsMu.Unlock()

	h.hub.BroadcastToSession(joinCode, service.EventAdvanceCountdown, map[string]interface{}{
		"countdown_seconds": decision.CountdownSeconds,
		"reason":            decision.Reason,
		"ready_teams":       decision.ReadyTeams,
		"total_teams":       decision.TotalTeams,
		"current_mission":   decision.CurrentMission,
		"next_mission":      decision.NextMission,
	})

	h.logger.Info("advance countdown started",
		zap.String("join_code", joinCode),
		zap.Int("seconds", decision.CountdownSeconds),
		zap.Uint("to_mission", decision.NextMission.ID))
}

func (h *GameMessageHandler) fireAdvance(joinCode string, state *countdownState) {
	h.countdownsMu.Lock()
	if h.countdowns[joinCode] != state {
		// Cancelled between the timer firing and this lock.
		h.countdownsMu.Unlock()
		return
	}
	delete(h.countdowns, joinCode)
	h.countdownsMu.Unlock()

	if !h.dispatcher.Submit(func() {
		advanced, err := h.progression.ExecuteAutoAdvancement(context.Background(), state.sessionID, state.fromMissionID, state.toMissionID)
		if err != nil {
			h.logger.Error("auto-advance failed",
				zap.String("join_code", joinCode),
				zap.Uint("session_id", state.sessionID),
				zap.Error(err))
			return
		}
		if !advanced {
			h.logger.Info("auto-advance skipped, session already moved",
				zap.String("join_code", joinCode),
				zap.Uint("session_id", state.sessionID))
		}
	}) {
		h.logger.Error("dispatcher rejected auto-advance",
			zap.String("join_code", joinCode))
	}
}

// CancelCountdown stops a pending countdown. Returns false when none was
// armed, which lets the caller skip the cancellation broadcast.
func (h *GameMessageHandler) CancelCountdown(joinCode string) bool {
	h.countdownsMu.Lock()
	defer h.countdownsMu.Unlock()

	state, ok := h.countdowns[joinCode]
	if !ok {
		return false
	}
	state.timer.Stop()
	delete(h.countdowns, joinCode)
	return true
}

// CountdownPending reports whether a countdown is armed for the session.
func (h *GameMessageHandler) CountdownPending(joinCode string) bool {
	h.countdownsMu.Lock()
	defer h.countdownsMu.Unlock()
	_, ok := h.countdowns[joinCode]
	return ok
}

// sendServiceError maps a service failure onto the wire error shape.
func (h *GameMessageHandler) sendServiceError(client *Client, err error) {
	client.SendError(&ErrorPayload{
		Message:      err.Error(),
		RetryAllowed: apperrors.Retryable(err),
		ErrorCode:    int(apperrors.GetCode(err)),
	})
}

func (h *GameMessageHandler) sendBusy(client *Client) {
	client.SendError(&ErrorPayload{
		Message:      "server busy, try again",
		RetryAllowed: true,
		ErrorCode:    int(apperrors.ErrTimeout),
	})
}
