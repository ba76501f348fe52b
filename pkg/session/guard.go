// Package session implements page-entry guards over the stored credential pair.
// Guards compute a Decision; applying it (HTTP redirect, CLI message) is left to the caller.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/busclient/pkg/apiclient"
	"github.com/tyemirov/busclient/pkg/credentials"
	"go.uber.org/zap"
)

// Default navigation targets.
const (
	DefaultLoginPath   = "/auth/login"
	DefaultLandingPath = "/auth/dashboard"
)

// AccessDeniedNotice is attached to decisions that deny a non-admin principal.
const AccessDeniedNotice = "Access denied. Admin privileges required."

// Sentinel errors exposed by the guard.
var (
	ErrMissingStore      = errors.New("session.guard.missing_store")
	ErrMissingPrincipals = errors.New("session.guard.missing_principals")
)

// PrincipalSource fetches the authenticated principal. *apiclient.Client satisfies it.
type PrincipalSource interface {
	CurrentUser(ctx context.Context) (apiclient.Principal, error)
}

// Config configures the Guard.
type Config struct {
	Store       credentials.Store
	Principals  PrincipalSource
	Logger      *zap.Logger
	LoginPath   string
	LandingPath string
}

// Decision is the outcome of a guard check. When Allow is false the caller navigates to
// RedirectTo and shows Notice if it is not empty.
type Decision struct {
	Allow      bool
	RedirectTo string
	Notice     string
	Principal  *apiclient.Principal
}

// Guard evaluates session guards.
type Guard struct {
	store       credentials.Store
	principals  PrincipalSource
	logger      *zap.Logger
	loginPath   string
	landingPath string
}

// New constructs a Guard after validating the supplied configuration.
func New(configuration Config) (*Guard, error) {
	if configuration.Store == nil {
		return nil, fmt.Errorf("session.guard.new: %w", ErrMissingStore)
	}
	if configuration.Principals == nil {
		return nil, fmt.Errorf("session.guard.new: %w", ErrMissingPrincipals)
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loginPath := strings.TrimSpace(configuration.LoginPath)
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	landingPath := strings.TrimSpace(configuration.LandingPath)
	if landingPath == "" {
		landingPath = DefaultLandingPath
	}
	return &Guard{
		store:       configuration.Store,
		principals:  configuration.Principals,
		logger:      logger,
		loginPath:   loginPath,
		landingPath: landingPath,
	}, nil
}

// LoginPath returns the login redirect target.
func (guard *Guard) LoginPath() string {
	return guard.loginPath
}

// LandingPath returns the authenticated landing page.
func (guard *Guard) LandingPath() string {
	return guard.landingPath
}

// RequireAuth allows logged-in sessions and redirects everyone else to login.
func (guard *Guard) RequireAuth(ctx context.Context) Decision {
	if !guard.loggedIn(ctx) {
		return Decision{RedirectTo: guard.loginPath}
	}
	return Decision{Allow: true}
}

// RequireAdmin allows admin principals. Sessions without a token go to login without a
// principal fetch; any other outcome, including a failed fetch, goes to fallbackPath with
// AccessDeniedNotice. An expired session goes to login.
func (guard *Guard) RequireAdmin(ctx context.Context, fallbackPath string) Decision {
	if !guard.loggedIn(ctx) {
		return Decision{RedirectTo: guard.loginPath}
	}
	principal, fetchErr := guard.principals.CurrentUser(ctx)
	if fetchErr != nil {
		guard.logger.Warn("principal fetch failed during admin check",
			zap.String("code", "session.guard.principal_fetch_failed"),
			zap.Error(fetchErr))
		if errors.Is(fetchErr, apiclient.ErrSessionExpired) || errors.Is(fetchErr, apiclient.ErrNotAuthenticated) {
			return Decision{RedirectTo: guard.loginPath}
		}
		return Decision{RedirectTo: fallbackOrLanding(fallbackPath, guard.landingPath), Notice: AccessDeniedNotice}
	}
	if !principal.IsAdmin() {
		return Decision{RedirectTo: fallbackOrLanding(fallbackPath, guard.landingPath), Notice: AccessDeniedNotice, Principal: &principal}
	}
	return Decision{Allow: true, Principal: &principal}
}

// RedirectIfAuthenticated sends logged-in sessions to the landing page. Used on login and
// registration entry points.
func (guard *Guard) RedirectIfAuthenticated(ctx context.Context) Decision {
	if guard.loggedIn(ctx) {
		return Decision{RedirectTo: guard.landingPath}
	}
	return Decision{Allow: true}
}

// IsAdmin probes the admin role without producing a redirect. Failures read as false.
func (guard *Guard) IsAdmin(ctx context.Context) bool {
	if !guard.loggedIn(ctx) {
		return false
	}
	principal, fetchErr := guard.principals.CurrentUser(ctx)
	if fetchErr != nil {
		guard.logger.Debug("principal fetch failed during admin probe",
			zap.String("code", "session.guard.probe_failed"),
			zap.Error(fetchErr))
		return false
	}
	return principal.IsAdmin()
}

func (guard *Guard) loggedIn(ctx context.Context) bool {
	loggedIn, storeErr := credentials.IsLoggedIn(ctx, guard.store)
	if storeErr != nil {
		guard.logger.Error("credential store unavailable",
			zap.String("code", "session.guard.store_unavailable"),
			zap.Error(storeErr))
		return false
	}
	return loggedIn
}

func fallbackOrLanding(fallbackPath string, landingPath string) string {
	if trimmed := strings.TrimSpace(fallbackPath); trimmed != "" {
		return trimmed
	}
	return landingPath
}
