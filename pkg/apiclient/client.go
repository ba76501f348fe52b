// Package apiclient implements the authenticated request layer for the bus-route backend.
// Calls carry the stored bearer token; a 401 triggers one coalesced token renewal and a
// single retry.
package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tyemirov/busclient/pkg/credentials"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// DefaultRefreshEndpoint is the backend path that rotates the credential pair.
const DefaultRefreshEndpoint = "/api/auth/refresh"

const maxAttempts = 2

// Config describes the dependencies of a Client.
type Config struct {
	BaseURL         string
	HTTPClient      *http.Client
	Store           credentials.Store
	Logger          *zap.Logger
	Metrics         MetricsRecorder
	Limiter         *rate.Limiter
	RefreshEndpoint string
}

// Client issues calls against the backend on behalf of the stored session.
type Client struct {
	baseURL         *url.URL
	httpClient      *http.Client
	store           credentials.Store
	logger          *zap.Logger
	metrics         MetricsRecorder
	limiter         *rate.Limiter
	refreshEndpoint string
	refreshGroup    singleflight.Group
}

// New validates the configuration and constructs a Client.
func New(configuration Config) (*Client, error) {
	trimmedBase := strings.TrimSpace(configuration.BaseURL)
	if trimmedBase == "" {
		return nil, ErrMissingBaseURL
	}
	parsedBase, parseErr := url.Parse(strings.TrimRight(trimmedBase, "/"))
	if parseErr != nil || parsedBase.Scheme == "" || parsedBase.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBaseURL, trimmedBase)
	}
	if configuration.Store == nil {
		return nil, ErrMissingStore
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var metrics MetricsRecorder = noopMetrics{}
	if configuration.Metrics != nil {
		metrics = configuration.Metrics
	}
	refreshEndpoint := strings.TrimSpace(configuration.RefreshEndpoint)
	if refreshEndpoint == "" {
		refreshEndpoint = DefaultRefreshEndpoint
	}
	return &Client{
		baseURL:         parsedBase,
		httpClient:      httpClient,
		store:           configuration.Store,
		logger:          logger,
		metrics:         metrics,
		limiter:         configuration.Limiter,
		refreshEndpoint: refreshEndpoint,
	}, nil
}

// Store exposes the credential store backing the client.
func (client *Client) Store() credentials.Store {
	return client.store
}

// BaseURL returns the normalized backend base URL.
func (client *Client) BaseURL() string {
	return client.baseURL.String()
}

func (client *Client) resolve(endpoint string, query url.Values) string {
	trimmed := strings.TrimSpace(endpoint)
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	target := client.baseURL.String() + trimmed
	if len(query) > 0 {
		separator := "?"
		if strings.Contains(target, "?") {
			separator = "&"
		}
		target += separator + query.Encode()
	}
	return target
}
