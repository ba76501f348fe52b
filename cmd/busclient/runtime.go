package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tyemirov/busclient/internal/busapi"
	"github.com/tyemirov/busclient/pkg/apiclient"
	"github.com/tyemirov/busclient/pkg/credentials"
	"github.com/tyemirov/busclient/pkg/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// clientRuntime holds the components a command works with.
type clientRuntime struct {
	logger  *zap.Logger
	store   credentials.ClosableStore
	client  *apiclient.Client
	guard   *session.Guard
	routes  *busapi.Routes
	buses   *busapi.Buses
	metrics *apiclient.CounterMetrics
}

var buildLogger = func(level zapcore.Level) (*zap.Logger, error) {
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(level)
	return loggerConfig.Build()
}

func openRuntime(ctx context.Context, clientConfig ClientConfig) (*clientRuntime, error) {
	logger, loggerErr := buildLogger(clientConfig.LogLevel)
	if loggerErr != nil {
		return nil, loggerErr
	}
	if directoryErr := ensureCredentialsDirectory(clientConfig.CredentialsURL); directoryErr != nil {
		return nil, fmt.Errorf("runtime.credentials_directory: %w", directoryErr)
	}
	store, storeErr := credentials.Open(ctx, clientConfig.CredentialsURL)
	if storeErr != nil {
		return nil, storeErr
	}

	var limiter *rate.Limiter
	if clientConfig.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(clientConfig.RateLimitRPS), clientConfig.RateLimitBurst)
	}
	metrics := apiclient.NewCounterMetrics()
	client, clientErr := apiclient.New(apiclient.Config{
		BaseURL:    clientConfig.BaseURL,
		HTTPClient: &http.Client{Timeout: clientConfig.RequestTimeout},
		Store:      store,
		Logger:     logger,
		Metrics:    metrics,
		Limiter:    limiter,
	})
	if clientErr != nil {
		_ = store.Close()
		return nil, clientErr
	}
	guard, guardErr := session.New(session.Config{Store: store, Principals: client, Logger: logger})
	if guardErr != nil {
		_ = store.Close()
		return nil, guardErr
	}
	return &clientRuntime{
		logger:  logger,
		store:   store,
		client:  client,
		guard:   guard,
		routes:  busapi.NewRoutes(client),
		buses:   busapi.NewBuses(client),
		metrics: metrics,
	}, nil
}

func (runtime *clientRuntime) Close() error {
	runtime.logger.Debug("client metrics", zap.Object("counters", runtime.metrics.Totals()))
	_ = runtime.logger.Sync()
	return runtime.store.Close()
}

var (
	errNotLoggedIn     = errors.New("not logged in: run `busclient login`")
	errAlreadyLoggedIn = errors.New("already logged in: run `busclient logout` first")
)

// decisionError turns a guard decision into a command error.
func (runtime *clientRuntime) decisionError(decision session.Decision) error {
	if decision.Allow {
		return nil
	}
	switch decision.RedirectTo {
	case runtime.guard.LoginPath():
		return errNotLoggedIn
	case runtime.guard.LandingPath():
		return errAlreadyLoggedIn
	}
	if decision.Notice != "" {
		return errors.New(decision.Notice)
	}
	return fmt.Errorf("redirected to %s", decision.RedirectTo)
}

// commandError rewrites session failures into the re-login hint.
func commandError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apiclient.ErrNotAuthenticated):
		return errNotLoggedIn
	case errors.Is(err, apiclient.ErrSessionExpired):
		return errors.New("session expired: run `busclient login` again")
	default:
		return err
	}
}
