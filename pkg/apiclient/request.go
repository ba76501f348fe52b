package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerRequestID     = "X-Request-ID"
	contentTypeJSON     = "application/json"

	// DefaultFailureMessage is reported when a non-2xx body carries no readable message.
	DefaultFailureMessage = "Request failed"
)

// RequestOptions describes one logical call. Method defaults to GET.
// Body is JSON-encoded unless it is already a []byte or json.RawMessage.
type RequestOptions struct {
	Method         string
	Headers        http.Header
	Query          url.Values
	Body           any
	FailureMessage string
}

type exchangeResult struct {
	statusCode  int
	contentType string
	body        []byte
}

// Request performs an authenticated call. It returns the decoded JSON body, or nil when the
// response is empty or not JSON. A 401 is retried once after a successful renewal.
func (client *Client) Request(ctx context.Context, endpoint string, options RequestOptions) (json.RawMessage, error) {
	accessToken, found, storeErr := client.store.AccessToken(ctx)
	if storeErr != nil {
		return nil, fmt.Errorf("apiclient.request.store: %w", storeErr)
	}
	if !found {
		return nil, ErrNotAuthenticated
	}
	payload, encodeErr := encodeBody(options.Body)
	if encodeErr != nil {
		return nil, encodeErr
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, exchangeErr := client.exchange(ctx, endpoint, options, payload, accessToken)
		if exchangeErr != nil {
			return nil, exchangeErr
		}
		if result.statusCode != http.StatusUnauthorized {
			return interpret(result, options.FailureMessage)
		}
		if attempt == maxAttempts {
			client.logger.Warn("request rejected after renewal",
				zap.String("code", "apiclient.request.unauthorized_after_retry"),
				zap.String("endpoint", endpoint))
			if clearErr := client.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				return nil, errors.Join(ErrSessionExpired, clearErr)
			}
			return nil, ErrSessionExpired
		}
		renewedToken, renewErr := client.renew(ctx, accessToken)
		if renewErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrSessionExpired, renewErr)
		}
		client.metrics.Increment(EventRequestRetry)
		accessToken = renewedToken
	}
	return nil, ErrSessionExpired
}

// RequestJSON performs Request and decodes a non-empty result into target.
func (client *Client) RequestJSON(ctx context.Context, endpoint string, options RequestOptions, target any) error {
	raw, requestErr := client.Request(ctx, endpoint, options)
	if requestErr != nil {
		return requestErr
	}
	return decodeInto(raw, target)
}

// Public performs an unauthenticated call. No token is attached and a 401 is not retried.
func (client *Client) Public(ctx context.Context, endpoint string, options RequestOptions) (json.RawMessage, error) {
	payload, encodeErr := encodeBody(options.Body)
	if encodeErr != nil {
		return nil, encodeErr
	}
	result, exchangeErr := client.exchange(ctx, endpoint, options, payload, "")
	if exchangeErr != nil {
		return nil, exchangeErr
	}
	return interpret(result, options.FailureMessage)
}

// PublicJSON performs Public and decodes a non-empty result into target.
func (client *Client) PublicJSON(ctx context.Context, endpoint string, options RequestOptions, target any) error {
	raw, requestErr := client.Public(ctx, endpoint, options)
	if requestErr != nil {
		return requestErr
	}
	return decodeInto(raw, target)
}

func (client *Client) exchange(ctx context.Context, endpoint string, options RequestOptions, payload []byte, accessToken string) (exchangeResult, error) {
	if client.limiter != nil {
		if waitErr := client.limiter.Wait(ctx); waitErr != nil {
			return exchangeResult{}, &NetworkError{Operation: "rate_limit", Err: waitErr}
		}
	}
	method := strings.ToUpper(strings.TrimSpace(options.Method))
	if method == "" {
		method = http.MethodGet
	}
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpRequest, buildErr := http.NewRequestWithContext(ctx, method, client.resolve(endpoint, options.Query), bodyReader)
	if buildErr != nil {
		return exchangeResult{}, fmt.Errorf("apiclient.request.build: %w", buildErr)
	}
	httpRequest.Header = mergeHeaders(options.Headers, payload != nil, accessToken)
	requestID := uuid.NewString()
	httpRequest.Header.Set(headerRequestID, requestID)

	client.metrics.Increment(EventRequestSent)
	response, doErr := client.httpClient.Do(httpRequest)
	if doErr != nil {
		client.logger.Warn("backend exchange failed",
			zap.String("code", "apiclient.request.network"),
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Error(doErr))
		return exchangeResult{}, &NetworkError{Operation: "do", Err: doErr}
	}
	defer response.Body.Close()
	body, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return exchangeResult{}, &NetworkError{Operation: "read", Err: readErr}
	}
	client.logger.Debug("backend exchange",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("status", response.StatusCode))
	return exchangeResult{
		statusCode:  response.StatusCode,
		contentType: response.Header.Get(headerContentType),
		body:        body,
	}, nil
}

// mergeHeaders copies the caller headers and applies the bearer token last so it wins.
func mergeHeaders(callerHeaders http.Header, hasBody bool, accessToken string) http.Header {
	merged := make(http.Header, len(callerHeaders)+3)
	for name, values := range callerHeaders {
		merged[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if hasBody && merged.Get(headerContentType) == "" {
		merged.Set(headerContentType, contentTypeJSON)
	}
	if merged.Get(headerAccept) == "" {
		merged.Set(headerAccept, contentTypeJSON)
	}
	if accessToken != "" {
		merged.Set(headerAuthorization, "Bearer "+accessToken)
	}
	return merged
}

func encodeBody(body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return typed, nil
	case []byte:
		return typed, nil
	default:
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, fmt.Errorf("apiclient.request.encode: %w", marshalErr)
		}
		return encoded, nil
	}
}

func interpret(result exchangeResult, failureMessage string) (json.RawMessage, error) {
	if result.statusCode < 200 || result.statusCode > 299 {
		return nil, &RequestError{StatusCode: result.statusCode, Message: extractMessage(result.body, failureMessage)}
	}
	trimmed := bytes.TrimSpace(result.body)
	if len(trimmed) == 0 || !isJSONContentType(result.contentType) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, ErrMalformedResponse
	}
	return json.RawMessage(trimmed), nil
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, parseErr := mime.ParseMediaType(contentType)
	if parseErr != nil {
		return false
	}
	return mediaType == contentTypeJSON || strings.HasSuffix(mediaType, "+json")
}

// extractMessage reads detail, then error, then message from an error body.
// FastAPI validation errors carry detail as a list of {msg} objects.
func extractMessage(body []byte, failureMessage string) string {
	fallback := strings.TrimSpace(failureMessage)
	if fallback == "" {
		fallback = DefaultFailureMessage
	}
	var envelope map[string]json.RawMessage
	if json.Unmarshal(body, &envelope) != nil {
		return fallback
	}
	for _, field := range []string{"detail", "error", "message"} {
		if message := messageFrom(envelope[field]); message != "" {
			return message
		}
	}
	return fallback
}

func messageFrom(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		messages := make([]string, 0, len(items))
		for _, item := range items {
			if trimmed := strings.TrimSpace(item.Msg); trimmed != "" {
				messages = append(messages, trimmed)
			}
		}
		return strings.Join(messages, "; ")
	}
	var object struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	if json.Unmarshal(raw, &object) == nil {
		if trimmed := strings.TrimSpace(object.Message); trimmed != "" {
			return trimmed
		}
		return strings.TrimSpace(object.Msg)
	}
	return ""
}

func decodeInto(raw json.RawMessage, target any) error {
	if target == nil || len(raw) == 0 {
		return nil
	}
	if decodeErr := json.Unmarshal(raw, target); decodeErr != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, decodeErr)
	}
	return nil
}
