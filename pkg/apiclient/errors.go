package apiclient

import (
	"errors"
	"fmt"
)

// Sentinel errors exposed by the request layer.
var (
	// ErrNotAuthenticated means no access token was stored; no call was attempted.
	ErrNotAuthenticated = errors.New("apiclient.not_authenticated")
	// ErrSessionExpired means renewal failed or the retried call was rejected again.
	// The credential store has been cleared.
	ErrSessionExpired = errors.New("apiclient.session_expired")
	// ErrRequestFailed matches every *RequestError.
	ErrRequestFailed = errors.New("apiclient.request_failed")
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("apiclient.network")
	// ErrNoRefreshToken means renewal was skipped because no refresh token was stored.
	ErrNoRefreshToken = errors.New("apiclient.refresh.missing_refresh_token")
	// ErrRefreshFailed means the refresh endpoint rejected the token or returned an unusable body.
	ErrRefreshFailed = errors.New("apiclient.refresh.failed")
	// ErrMalformedResponse means a body labelled as JSON did not parse.
	ErrMalformedResponse = errors.New("apiclient.malformed_response")

	ErrMissingBaseURL = errors.New("apiclient.missing_base_url")
	ErrInvalidBaseURL = errors.New("apiclient.invalid_base_url")
	ErrMissingStore   = errors.New("apiclient.missing_store")
)

// RequestError describes a non-2xx response.
type RequestError struct {
	StatusCode int
	Message    string
}

func (requestError *RequestError) Error() string {
	return fmt.Sprintf("apiclient.request_failed.%d: %s", requestError.StatusCode, requestError.Message)
}

// Is lets errors.Is(err, ErrRequestFailed) match.
func (requestError *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// NetworkError wraps a transport-level failure.
type NetworkError struct {
	Operation string
	Err       error
}

func (networkError *NetworkError) Error() string {
	return fmt.Sprintf("apiclient.network.%s: %v", networkError.Operation, networkError.Err)
}

func (networkError *NetworkError) Unwrap() error {
	return networkError.Err
}

// Is lets errors.Is(err, ErrNetwork) match.
func (networkError *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// StatusCode returns the HTTP status carried by a *RequestError inside err, or 0.
func StatusCode(err error) int {
	var requestError *RequestError
	if errors.As(err, &requestError) {
		return requestError.StatusCode
	}
	return 0
}

// Message returns the human-readable server message carried by err, falling back to err.Error().
func Message(err error) string {
	var requestError *RequestError
	if errors.As(err, &requestError) {
		return requestError.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
