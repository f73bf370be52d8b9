package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite test suite for the errors package
type ErrorsTestSuite struct {
	suite.Suite
}

func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Empty(err.Details)

	err = New(ErrSessionNotFound, "join code ABC123")
	suite.Equal(ErrSessionNotFound, err.Code)
	suite.Equal("session not found", err.Message)
	suite.Equal("join code ABC123", err.Details)

	err = New(ErrDatabaseConnect, "connect failed", "host: localhost", "port: 5432")
	suite.Equal("connect failed; host: localhost; port: 5432", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidRating, "rating %d for input %d", 7, 1)
	suite.Equal(ErrInvalidRating, err.Code)
	suite.Equal("rating 7 for input 1", err.Details)
	suite.Contains(err.Message, "between 1 and 5")
}

func (suite *ErrorsTestSuite) TestWrap() {
	cause := errors.New("disk I/O error")
	err := Wrap(cause, ErrDatabaseQuery)
	suite.Equal(ErrDatabaseQuery, err.Code)
	suite.Equal(cause, err.Cause)
	suite.Equal("disk I/O error", err.Details)
	suite.ErrorIs(err, cause)

	// Wrapping an AppError keeps the original code
	inner := New(ErrDuplicateSubmission)
	outer := Wrap(inner, ErrDatabaseInsert, "while saving")
	suite.Equal(ErrDuplicateSubmission, outer.Code)
	suite.Contains(outer.Details, "while saving")

	suite.Nil(Wrap(nil, ErrDatabaseQuery))
}

func (suite *ErrorsTestSuite) TestIsAndGetCode() {
	err := New(ErrPastPhase)
	suite.True(Is(err, ErrPastPhase))
	suite.False(Is(err, ErrDuplicateSubmission))
	suite.False(Is(nil, ErrPastPhase))

	suite.Equal(ErrPastPhase, GetCode(err))
	suite.Equal(ErrorCode(0), GetCode(nil))
	suite.Equal(ErrUnknown, GetCode(errors.New("plain")))
}

func (suite *ErrorsTestSuite) TestRetryable() {
	// Infrastructure failures may be retried
	suite.True(Retryable(New(ErrDatabaseQuery)))
	suite.True(Retryable(New(ErrTransaction)))
	suite.True(Retryable(New(ErrRateLimitExceeded)))
	suite.True(Retryable(New(ErrBroadcastFailed)))

	// Validation and consistency failures are terminal
	suite.False(Retryable(New(ErrDuplicateSubmission)))
	suite.False(Retryable(New(ErrPastPhase)))
	suite.False(Retryable(New(ErrGameMismatch)))
	suite.False(Retryable(New(ErrInvalidRating)))
	suite.False(Retryable(nil))
}

func (suite *ErrorsTestSuite) TestHTTPStatus() {
	suite.Equal(400, New(ErrInvalidRating).HTTPStatus())
	suite.Equal(404, New(ErrSessionNotFound).HTTPStatus())
	suite.Equal(401, New(ErrTokenExpired).HTTPStatus())
	suite.Equal(409, New(ErrTeamNameTaken).HTTPStatus())
	suite.Equal(429, New(ErrRateLimitExceeded).HTTPStatus())
	suite.Equal(500, New(ErrDatabaseQuery).HTTPStatus())
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

func TestErrorsTestSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
