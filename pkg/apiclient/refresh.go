package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tyemirov/busclient/pkg/credentials"
	"go.uber.org/zap"
)

const refreshFlightKey = "refresh"

// renewal is the shared result of one refresh flight. exchanged is false when the flight
// reused a token that had already been rotated and never contacted the backend; pair then
// carries only the access token.
type renewal struct {
	pair      credentials.Pair
	exchanged bool
}

// Refresh exchanges the stored refresh token for a new credential pair and stores it.
// Without a refresh token it fails before any network call. Every failure clears the store.
func (client *Client) Refresh(ctx context.Context) (credentials.Pair, error) {
	for {
		value, flightErr, shared := client.refreshGroup.Do(refreshFlightKey, func() (any, error) {
			pair, err := client.performRefresh(context.WithoutCancel(ctx))
			return renewal{pair: pair, exchanged: true}, err
		})
		if shared {
			client.metrics.Increment(EventRefreshCoalesce)
		}
		if flightErr != nil {
			return credentials.Pair{}, flightErr
		}
		if result := value.(renewal); result.exchanged {
			return result.pair, nil
		}
		// Joined a flight that skipped the exchange; start one of our own.
		if err := ctx.Err(); err != nil {
			return credentials.Pair{}, err
		}
	}
}

// renew returns an access token newer than staleAccessToken. Concurrent callers share one
// renewal; a caller whose token was already rotated reuses the stored one.
func (client *Client) renew(ctx context.Context, staleAccessToken string) (string, error) {
	value, flightErr, shared := client.refreshGroup.Do(refreshFlightKey, func() (any, error) {
		detachedCtx := context.WithoutCancel(ctx)
		currentToken, found, storeErr := client.store.AccessToken(detachedCtx)
		if storeErr == nil && found && currentToken != staleAccessToken {
			return renewal{pair: credentials.Pair{AccessToken: currentToken}}, nil
		}
		pair, err := client.performRefresh(detachedCtx)
		return renewal{pair: pair, exchanged: true}, err
	})
	if shared {
		client.metrics.Increment(EventRefreshCoalesce)
	}
	if flightErr != nil {
		return "", flightErr
	}
	return value.(renewal).pair.AccessToken, nil
}

func (client *Client) performRefresh(ctx context.Context) (credentials.Pair, error) {
	refreshToken, found, storeErr := client.store.RefreshToken(ctx)
	if storeErr != nil {
		return credentials.Pair{}, client.failRefresh(ctx, fmt.Errorf("apiclient.refresh.store: %w", storeErr))
	}
	if !found {
		return credentials.Pair{}, client.failRefresh(ctx, ErrNoRefreshToken)
	}

	payload, encodeErr := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if encodeErr != nil {
		return credentials.Pair{}, client.failRefresh(ctx, fmt.Errorf("apiclient.refresh.encode: %w", encodeErr))
	}
	result, exchangeErr := client.exchange(ctx, client.refreshEndpoint, RequestOptions{Method: http.MethodPost}, payload, "")
	if exchangeErr != nil {
		return credentials.Pair{}, client.failRefresh(ctx, exchangeErr)
	}
	raw, interpretErr := interpret(result, "Token refresh failed")
	if interpretErr != nil {
		return credentials.Pair{}, client.failRefresh(ctx, fmt.Errorf("%w: %w", ErrRefreshFailed, interpretErr))
	}
	var tokens TokenResponse
	if decodeErr := decodeInto(raw, &tokens); decodeErr != nil {
		return credentials.Pair{}, client.failRefresh(ctx, fmt.Errorf("%w: %w", ErrRefreshFailed, decodeErr))
	}
	pair := tokens.Pair()
	if saveErr := client.store.Save(ctx, pair); saveErr != nil {
		return credentials.Pair{}, client.failRefresh(ctx, fmt.Errorf("%w: %w", ErrRefreshFailed, saveErr))
	}
	client.metrics.Increment(EventRefreshSuccess)
	client.logger.Info("credentials rotated",
		zap.String("code", "apiclient.refresh.rotated"),
		zap.String("access_fingerprint", credentials.Fingerprint(pair.AccessToken)))
	return pair, nil
}

func (client *Client) failRefresh(ctx context.Context, cause error) error {
	client.metrics.Increment(EventRefreshFailure)
	client.logger.Warn("credential renewal failed",
		zap.String("code", "apiclient.refresh.failed"),
		zap.Error(cause))
	if clearErr := client.store.Clear(ctx); clearErr != nil {
		return errors.Join(cause, fmt.Errorf("apiclient.refresh.clear: %w", clearErr))
	}
	return cause
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}
