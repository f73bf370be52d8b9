package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorCode error code type
type ErrorCode int

// Error codes grouped by module
const (
	// Common errors (1000-1999)
	ErrUnknown          ErrorCode = 1000
	ErrInvalidParam     ErrorCode = 1001
	ErrNotFound         ErrorCode = 1002
	ErrAlreadyExists    ErrorCode = 1003
	ErrPermissionDenied ErrorCode = 1004
	ErrTimeout          ErrorCode = 1005
	ErrCanceled         ErrorCode = 1006

	// Submission validation errors (2000-2999)
	ErrTeamNotFound        ErrorCode = 2000
	ErrMissionNotFound     ErrorCode = 2001
	ErrGameMismatch        ErrorCode = 2002
	ErrInvalidStudentData  ErrorCode = 2003
	ErrInvalidInputData    ErrorCode = 2004
	ErrInvalidInputType    ErrorCode = 2005
	ErrInputValueTooLong   ErrorCode = 2006
	ErrInvalidRating       ErrorCode = 2007
	ErrDuplicateSubmission ErrorCode = 2008
	ErrPastPhase           ErrorCode = 2009

	// Session and progression errors (3000-3999)
	ErrSessionNotFound    ErrorCode = 3000
	ErrSessionEnded       ErrorCode = 3001
	ErrSessionNotStarted  ErrorCode = 3002
	ErrAdvanceConflict    ErrorCode = 3003
	ErrNoNextMission      ErrorCode = 3004
	ErrAutoAdvanceOff     ErrorCode = 3005
	ErrTrackerMissing     ErrorCode = 3006
	ErrTeamNameTaken      ErrorCode = 3007

	// Realtime gateway errors (4000-4999)
	ErrConnectionClosed  ErrorCode = 4000
	ErrSendBufferFull    ErrorCode = 4001
	ErrMessageFormat     ErrorCode = 4002
	ErrUnknownMessage    ErrorCode = 4003
	ErrBroadcastFailed   ErrorCode = 4004
	ErrClientNotJoined   ErrorCode = 4005

	// Database errors (5000-5999)
	ErrDatabaseConnect ErrorCode = 5000
	ErrDatabaseQuery   ErrorCode = 5001
	ErrDatabaseInsert  ErrorCode = 5002
	ErrDatabaseUpdate  ErrorCode = 5003
	ErrDatabaseDelete  ErrorCode = 5004
	ErrTransaction     ErrorCode = 5005

	// Config errors (6000-6999)
	ErrConfigLoad     ErrorCode = 6000
	ErrConfigParse    ErrorCode = 6001
	ErrConfigValidate ErrorCode = 6002

	// Security and throttling errors (7000-7999)
	ErrAuthentication    ErrorCode = 7000
	ErrAuthorization     ErrorCode = 7001
	ErrTokenExpired      ErrorCode = 7002
	ErrTokenInvalid      ErrorCode = 7003
	ErrRateLimitExceeded ErrorCode = 7004
)

var errorMessages = map[ErrorCode]string{
	ErrUnknown:          "unknown error",
	ErrInvalidParam:     "invalid parameter",
	ErrNotFound:         "resource not found",
	ErrAlreadyExists:    "resource already exists",
	ErrPermissionDenied: "permission denied",
	ErrTimeout:          "operation timed out",
	ErrCanceled:         "operation canceled",

	ErrTeamNotFound:        "team not found",
	ErrMissionNotFound:     "mission not found",
	ErrGameMismatch:        "team and mission belong to different games",
	ErrInvalidStudentData:  "invalid student data",
	ErrInvalidInputData:    "invalid input data",
	ErrInvalidInputType:    "invalid input type",
	ErrInputValueTooLong:   "input value too long",
	ErrInvalidRating:       "rating must be between 1 and 5",
	ErrDuplicateSubmission: "student has already submitted inputs for this phase",
	ErrPastPhase:           "cannot submit for past phase",

	ErrSessionNotFound:   "session not found",
	ErrSessionEnded:      "session has ended",
	ErrSessionNotStarted: "session has not started",
	ErrAdvanceConflict:   "session already advanced",
	ErrNoNextMission:     "no next mission available",
	ErrAutoAdvanceOff:    "auto-progression disabled",
	ErrTrackerMissing:    "no completion tracker found",
	ErrTeamNameTaken:     "team name already taken in this session",

	ErrConnectionClosed: "connection closed",
	ErrSendBufferFull:   "send buffer full",
	ErrMessageFormat:    "invalid message format",
	ErrUnknownMessage:   "unsupported message type",
	ErrBroadcastFailed:  "broadcast failed",
	ErrClientNotJoined:  "connection has not joined a session",

	ErrDatabaseConnect: "database connection failed",
	ErrDatabaseQuery:   "database query failed",
	ErrDatabaseInsert:  "database insert failed",
	ErrDatabaseUpdate:  "database update failed",
	ErrDatabaseDelete:  "database delete failed",
	ErrTransaction:     "transaction failed",

	ErrConfigLoad:     "config load failed",
	ErrConfigParse:    "config parse failed",
	ErrConfigValidate: "config validation failed",

	ErrAuthentication:    "authentication failed",
	ErrAuthorization:     "authorization failed",
	ErrTokenExpired:      "token has expired",
	ErrTokenInvalid:      "invalid token",
	ErrRateLimitExceeded: "too many submissions, try again later",
}

// AppError application error
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details string       `json:"details"`
	Cause   error        `json:"-"`
	Stack   []StackFrame `json:"stack,omitempty"`
}

// StackFrame one captured call frame
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails adds detail text
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the original error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	if cause != nil && e.Details == "" {
		e.Details = cause.Error()
	}
	return e
}

// New creates an application error
func New(code ErrorCode, details ...string) *AppError {
	message, ok := errorMessages[code]
	if !ok {
		message = errorMessages[ErrUnknown]
	}

	err := &AppError{
		Code:    code,
		Message: message,
	}

	if len(details) > 0 {
		err.Details = strings.Join(details, "; ")
	}

	err.captureStack(2)

	return err
}

// Newf creates a formatted application error
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an arbitrary error under a code
func Wrap(err error, code ErrorCode, details ...string) *AppError {
	if err == nil {
		return nil
	}

	// Already an AppError, keep the original code
	if appErr, ok := err.(*AppError); ok {
		if len(details) > 0 {
			appErr.Details = strings.Join(details, "; ") + "; " + appErr.Details
		}
		return appErr
	}

	appErr := New(code, details...)
	appErr.Cause = err
	if appErr.Details == "" {
		appErr.Details = err.Error()
	}

	return appErr
}

// Wrapf wraps an error with formatted details
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Is reports whether err carries the given code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// GetCode extracts the error code
func GetCode(err error) ErrorCode {
	if err == nil {
		return 0
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}

	return ErrUnknown
}

// Retryable reports whether a client may retry the failed operation.
// Validation and consistency failures are terminal; infrastructure and
// rate-limit failures are not.
func Retryable(err error) bool {
	code := GetCode(err)
	switch {
	case code >= 5000 && code < 6000:
		return true
	case code == ErrRateLimitExceeded:
		return true
	case code == ErrTimeout, code == ErrBroadcastFailed, code == ErrSendBufferFull:
		return true
	default:
		return false
	}
}

func (e *AppError) captureStack(skip int) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	if n > 0 {
		frames := runtime.CallersFrames(pcs[:n])
		for {
			frame, more := frames.Next()

			// Skip runtime and this package
			if strings.Contains(frame.Function, "runtime.") ||
				strings.Contains(frame.Function, "github.com/decipherworld/classroom-server/internal/errors") {
				if !more {
					break
				}
				continue
			}

			e.Stack = append(e.Stack, StackFrame{
				Function: frame.Function,
				File:     frame.File,
				Line:     frame.Line,
			})

			if !more {
				break
			}

			if len(e.Stack) >= 10 {
				break
			}
		}
	}
}

// GetStack returns the formatted call stack
func (e *AppError) GetStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, frame := range e.Stack {
		builder.WriteString(fmt.Sprintf("%d. %s\n   %s:%d\n",
			i+1, frame.Function, frame.File, frame.Line))
	}

	return builder.String()
}

// HTTPStatus maps the code to an HTTP status
func (e *AppError) HTTPStatus() int {
	switch {
	case e.Code == ErrNotFound, e.Code == ErrSessionNotFound,
		e.Code == ErrTeamNotFound, e.Code == ErrMissionNotFound:
		return 404
	case e.Code >= 2000 && e.Code < 3000:
		return 400
	case e.Code == ErrPermissionDenied, e.Code == ErrAuthorization:
		return 403
	case e.Code == ErrAuthentication, e.Code == ErrTokenExpired, e.Code == ErrTokenInvalid:
		return 401
	case e.Code == ErrAlreadyExists, e.Code == ErrTeamNameTaken, e.Code == ErrAdvanceConflict:
		return 409
	case e.Code == ErrRateLimitExceeded:
		return 429
	case e.Code == ErrTimeout:
		return 504
	default:
		return 500
	}
}
