package moodle

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when a webservice call is attempted
	// without a token.
	ErrNotAuthenticated = errors.New("moodle: not authenticated")

	// ErrOffline is returned to callers that arrive while another call
	// already owns the reconnect loop.
	ErrOffline = errors.New("moodle: disconnected, reconnect in progress")

	// ErrLoginCanceled is returned when the interactive login is dismissed.
	ErrLoginCanceled = errors.New("moodle: login canceled")
)

// Error codes the remote service reports in the response body.
const (
	CodeInvalidToken    = "invalidtoken"
	CodeAccessException = "accessexception"
	CodeInvalidLogin    = "invalidlogin"
)

// APIError is an application-level error the webservice returned in-body
// with a 200 response.
type APIError struct {
	Code      string `json:"errorcode"`
	Exception string `json:"exception"`
	Message   string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("moodle: api error: %s - %s", e.Code, e.Message)
}

// IsInvalidToken reports whether the error means the bearer token expired
// or was revoked.
func (e *APIError) IsInvalidToken() bool {
	return e.Code == CodeInvalidToken || e.Code == CodeAccessException
}

// AuthError means credentials were rejected or interactive login failed.
// It is surfaced to the user only when re-authentication itself fails.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("moodle: auth: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("moodle: auth: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is a transport-level failure. It is transient: the client
// recovers from it through the reconnect loop and it never crosses the
// client boundary as a hard failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("moodle: network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteDataError is a malformed or unexpected response body. Callers treat
// it as "no data" for the affected course.
type RemoteDataError struct {
	Op  string
	Err error
}

func (e *RemoteDataError) Error() string {
	return fmt.Sprintf("moodle: bad response: %s: %v", e.Op, e.Err)
}

func (e *RemoteDataError) Unwrap() error { return e.Err }

// IsTransient reports whether err will be recovered automatically.
func IsTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) || errors.Is(err, ErrOffline)
}
