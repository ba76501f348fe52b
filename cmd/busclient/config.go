package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	defaultBaseURL    = "http://localhost:8000"
	defaultListenAddr = "127.0.0.1:8080"

	configCodeMissingBaseURL          = "config.missing_base_url"
	configCodeInvalidBaseURL          = "config.invalid_base_url"
	configCodeMissingCredentialsURL   = "config.missing_credentials_url"
	configCodeInvalidCredentialsURL   = "config.invalid_credentials_url"
	configCodeInvalidRequestTimeout   = "config.invalid_request_timeout"
	configCodeInvalidRateLimit        = "config.invalid_rate_limit"
	configCodeInvalidLogLevel         = "config.invalid_log_level"
	configCodeMissingCORSOrigins      = "config.missing_cors_allowed_origins"
	configCodeInvalidCORSOrigin       = "config.invalid_cors_allowed_origin"
	configCodeUninitializedClientConf = "config.uninitialized_client_config"
)

type contextKey string

const clientConfigContextKey contextKey = "clientConfig"

// ClientConfig is the validated command configuration.
type ClientConfig struct {
	BaseURL             string
	CredentialsURL      string
	RequestTimeout      time.Duration
	RateLimitRPS        float64
	RateLimitBurst      int
	LogLevel            zapcore.Level
	ListenAddr          string
	EnableCORS          bool
	CORSAllowedOrigins  []string
	InsecureCORSOrigins []string
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func prepareClientConfig(command *cobra.Command, arguments []string) error {
	clientConfig, loadErr := LoadClientConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, clientConfigContextKey, clientConfig))
	return nil
}

func clientConfigFrom(command *cobra.Command) (ClientConfig, error) {
	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(clientConfigContextKey)
	}
	clientConfig, ok := contextValue.(ClientConfig)
	if !ok {
		return ClientConfig{}, configError(configCodeUninitializedClientConf, "client configuration not prepared; PersistentPreRunE must execute before RunE")
	}
	return clientConfig, nil
}

// LoadClientConfig reads and validates the viper-backed settings.
func LoadClientConfig() (ClientConfig, error) {
	baseURL := strings.TrimSpace(viper.GetString("base_url"))
	if baseURL == "" {
		return ClientConfig{}, configError(configCodeMissingBaseURL, "base_url must be provided")
	}
	parsedBase, parseErr := url.Parse(baseURL)
	if parseErr != nil || (parsedBase.Scheme != "http" && parsedBase.Scheme != "https") || parsedBase.Host == "" {
		return ClientConfig{}, configError(configCodeInvalidBaseURL, "base_url must be an absolute http(s) URL")
	}

	credentialsURL := strings.TrimSpace(viper.GetString("credentials_url"))
	if credentialsURL == "" {
		return ClientConfig{}, configError(configCodeMissingCredentialsURL, "credentials_url must be provided")
	}
	if parsedCredentials, credentialsErr := url.Parse(credentialsURL); credentialsErr != nil || parsedCredentials.Scheme == "" {
		return ClientConfig{}, configError(configCodeInvalidCredentialsURL, "credentials_url must carry a scheme (memory, sqlite, postgres, redis)")
	}

	requestTimeout := viper.GetDuration("request_timeout")
	if requestTimeout < 0 {
		return ClientConfig{}, configError(configCodeInvalidRequestTimeout, "request_timeout must not be negative")
	}

	rateLimitRPS := viper.GetFloat64("rate_limit_rps")
	rateLimitBurst := viper.GetInt("rate_limit_burst")
	if rateLimitRPS < 0 || rateLimitBurst < 0 {
		return ClientConfig{}, configError(configCodeInvalidRateLimit, "rate_limit_rps and rate_limit_burst must not be negative")
	}
	if rateLimitRPS > 0 && rateLimitBurst == 0 {
		rateLimitBurst = 1
	}

	var logLevel zapcore.Level
	if levelErr := logLevel.UnmarshalText([]byte(viper.GetString("log_level"))); levelErr != nil {
		return ClientConfig{}, configError(configCodeInvalidLogLevel, levelErr.Error())
	}

	listenAddr := strings.TrimSpace(viper.GetString("listen_addr"))
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	enableCORS := viper.GetBool("enable_cors")
	var corsAllowedOrigins, insecureCORSOrigins []string
	if enableCORS {
		var originsErr error
		corsAllowedOrigins, insecureCORSOrigins, originsErr = normalizeCORSOrigins(viper.GetStringSlice("cors_allowed_origins"))
		if originsErr != nil {
			return ClientConfig{}, originsErr
		}
	}

	return ClientConfig{
		BaseURL:             strings.TrimRight(baseURL, "/"),
		CredentialsURL:      credentialsURL,
		RequestTimeout:      requestTimeout,
		RateLimitRPS:        rateLimitRPS,
		RateLimitBurst:      rateLimitBurst,
		LogLevel:            logLevel,
		ListenAddr:          listenAddr,
		EnableCORS:          enableCORS,
		CORSAllowedOrigins:  corsAllowedOrigins,
		InsecureCORSOrigins: insecureCORSOrigins,
	}, nil
}

// normalizeCORSOrigins reduces origins to sorted, deduplicated scheme://host values.
func normalizeCORSOrigins(origins []string) ([]string, []string, error) {
	seen := make(map[string]struct{}, len(origins))
	var normalized, insecure []string
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			return nil, nil, configError(configCodeInvalidCORSOrigin, "wildcard origin is not allowed")
		}
		parsed, parseErr := url.Parse(trimmed)
		if parseErr != nil || parsed.Host == "" {
			return nil, nil, configError(configCodeInvalidCORSOrigin, fmt.Sprintf("%q is not an absolute origin", trimmed))
		}
		scheme := strings.ToLower(parsed.Scheme)
		if scheme != "http" && scheme != "https" {
			return nil, nil, configError(configCodeInvalidCORSOrigin, fmt.Sprintf("%q must use http or https", trimmed))
		}
		if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
			return nil, nil, configError(configCodeInvalidCORSOrigin, fmt.Sprintf("%q must not carry a path, query or fragment", trimmed))
		}
		value := scheme + "://" + strings.ToLower(parsed.Host)
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
		if scheme == "http" && parsed.Hostname() != "localhost" && parsed.Hostname() != "127.0.0.1" {
			insecure = append(insecure, value)
		}
	}
	if len(normalized) == 0 {
		return nil, nil, configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
	}
	sort.Strings(normalized)
	return normalized, insecure, nil
}

func defaultCredentialsURL() string {
	homeDir, homeErr := os.UserHomeDir()
	if homeErr != nil || homeDir == "" {
		return "memory://"
	}
	return "sqlite://" + filepath.ToSlash(filepath.Join(homeDir, ".busclient", "credentials.db"))
}

// ensureCredentialsDirectory creates the parent directory of a file-backed sqlite store.
func ensureCredentialsDirectory(credentialsURL string) error {
	parsed, parseErr := url.Parse(credentialsURL)
	if parseErr != nil {
		return parseErr
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "sqlite" && scheme != "sqlite3" {
		return nil
	}
	path := parsed.Path
	if parsed.Opaque != "" || path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	if parsed.Host != "" {
		path = filepath.Join(parsed.Host, path)
	}
	return os.MkdirAll(filepath.Dir(filepath.FromSlash(path)), 0o700)
}
