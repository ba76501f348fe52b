package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tyemirov/busclient/pkg/credentials"
	"go.uber.org/zap"
)

// Backend auth endpoints.
const (
	LoginEndpoint         = "/api/auth/login"
	RegisterEndpoint      = "/api/auth/register"
	RegisterAdminEndpoint = "/api/auth/register/admin"
	CurrentUserEndpoint   = "/api/auth/me"
	LogoutEndpoint        = "/api/auth/logout"
)

// RoleAdmin is the role granting administrative access. Roles compare case-insensitively.
const RoleAdmin = "ADMIN"

// LoginRequest carries the login credentials.
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	Password        string `json:"password"`
}

// TokenResponse is the pair issued on login and refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Pair converts the response into a storable credential pair.
func (response TokenResponse) Pair() credentials.Pair {
	return credentials.Pair{AccessToken: response.AccessToken, RefreshToken: response.RefreshToken}
}

// Registration describes a new account.
type Registration struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Principal is the authenticated user as reported by the backend.
type Principal struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	FullName    string    `json:"full_name,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// IsAdmin reports whether the principal carries the admin role.
func (principal Principal) IsAdmin() bool {
	return strings.EqualFold(strings.TrimSpace(principal.Role), RoleAdmin)
}

// Login authenticates and stores the issued pair.
func (client *Client) Login(ctx context.Context, request LoginRequest) (TokenResponse, error) {
	var tokens TokenResponse
	loginErr := client.PublicJSON(ctx, LoginEndpoint, RequestOptions{
		Method:         http.MethodPost,
		Body:           request,
		FailureMessage: "Login failed",
	}, &tokens)
	if loginErr != nil {
		return TokenResponse{}, loginErr
	}
	if saveErr := client.store.Save(ctx, tokens.Pair()); saveErr != nil {
		return TokenResponse{}, fmt.Errorf("apiclient.login.save: %w", saveErr)
	}
	client.logger.Info("logged in",
		zap.String("code", "apiclient.login.success"),
		zap.String("access_fingerprint", credentials.Fingerprint(tokens.AccessToken)))
	return tokens, nil
}

// Register creates a customer account.
func (client *Client) Register(ctx context.Context, registration Registration) (Principal, error) {
	var principal Principal
	registerErr := client.PublicJSON(ctx, RegisterEndpoint, RequestOptions{
		Method:         http.MethodPost,
		Body:           registration,
		FailureMessage: "Registration failed",
	}, &principal)
	return principal, registerErr
}

// RegisterAdmin creates an admin account. The current session must be an admin.
func (client *Client) RegisterAdmin(ctx context.Context, registration Registration) (Principal, error) {
	var principal Principal
	registerErr := client.RequestJSON(ctx, RegisterAdminEndpoint, RequestOptions{
		Method:         http.MethodPost,
		Body:           registration,
		FailureMessage: "Admin registration failed",
	}, &principal)
	return principal, registerErr
}

// CurrentUser fetches the authenticated principal.
func (client *Client) CurrentUser(ctx context.Context) (Principal, error) {
	var principal Principal
	if fetchErr := client.RequestJSON(ctx, CurrentUserEndpoint, RequestOptions{Method: http.MethodGet}, &principal); fetchErr != nil {
		return Principal{}, fetchErr
	}
	return principal, nil
}

// Logout notifies the backend and clears the store regardless of the outcome.
// A missing session is not reported as an error.
func (client *Client) Logout(ctx context.Context) error {
	_, logoutErr := client.Request(ctx, LogoutEndpoint, RequestOptions{Method: http.MethodPost})
	if errors.Is(logoutErr, ErrNotAuthenticated) || errors.Is(logoutErr, ErrSessionExpired) {
		logoutErr = nil
	}
	if logoutErr != nil {
		client.logger.Warn("logout call failed",
			zap.String("code", "apiclient.logout.failed"),
			zap.Error(logoutErr))
	}
	clearErr := client.store.Clear(context.WithoutCancel(ctx))
	if clearErr != nil {
		clearErr = fmt.Errorf("apiclient.logout.clear: %w", clearErr)
	}
	return errors.Join(logoutErr, clearErr)
}
