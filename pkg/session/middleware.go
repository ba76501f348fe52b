package session

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// DefaultContextKey stores the admin principal on the gin context after RequireAdmin allows.
const DefaultContextKey = "session_principal"

// NoticeQueryParameter carries a decision notice on the redirect target.
const NoticeQueryParameter = "notice"

// RedirectLocation returns the redirect target with the notice attached as a query parameter.
func RedirectLocation(decision Decision) string {
	if decision.Notice == "" {
		return decision.RedirectTo
	}
	target, parseErr := url.Parse(decision.RedirectTo)
	if parseErr != nil {
		return decision.RedirectTo
	}
	query := target.Query()
	query.Set(NoticeQueryParameter, decision.Notice)
	target.RawQuery = query.Encode()
	return target.String()
}

// ApplyDecision continues the chain when the decision allows and otherwise aborts with a
// 303 redirect.
func ApplyDecision(contextGin *gin.Context, decision Decision) {
	if decision.Allow {
		if decision.Principal != nil {
			contextGin.Set(DefaultContextKey, *decision.Principal)
		}
		contextGin.Next()
		return
	}
	contextGin.Redirect(http.StatusSeeOther, RedirectLocation(decision))
	contextGin.Abort()
}

// RequireAuthMiddleware gates a route on a stored session.
func (guard *Guard) RequireAuthMiddleware() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		ApplyDecision(contextGin, guard.RequireAuth(contextGin.Request.Context()))
	}
}

// RequireAdminMiddleware gates a route on an admin principal.
func (guard *Guard) RequireAdminMiddleware(fallbackPath string) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		ApplyDecision(contextGin, guard.RequireAdmin(contextGin.Request.Context(), fallbackPath))
	}
}

// RedirectIfAuthenticatedMiddleware keeps logged-in sessions away from login and registration.
func (guard *Guard) RedirectIfAuthenticatedMiddleware() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		ApplyDecision(contextGin, guard.RedirectIfAuthenticated(contextGin.Request.Context()))
	}
}
