// Package web exposes the busclient gateway: a local gin server that applies the session
// guards to HTTP entry points and forwards API calls through the authenticated request layer.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/busclient/internal/busapi"
	"github.com/tyemirov/busclient/pkg/apiclient"
	"github.com/tyemirov/busclient/pkg/credentials"
	"github.com/tyemirov/busclient/pkg/session"
	"go.uber.org/zap"
)

// SessionClient is the part of *apiclient.Client the gateway drives.
type SessionClient interface {
	Login(ctx context.Context, request apiclient.LoginRequest) (apiclient.TokenResponse, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (apiclient.Principal, error)
	Request(ctx context.Context, endpoint string, options apiclient.RequestOptions) (json.RawMessage, error)
}

// Gateway bundles the dependencies of the gateway routes.
type Gateway struct {
	Client SessionClient
	Store  credentials.Store
	Guard  *session.Guard
	Routes *busapi.Routes
	Buses  *busapi.Buses
	Logger *zap.Logger
}

// Validate reports missing dependencies.
func (gateway Gateway) Validate() error {
	switch {
	case gateway.Client == nil:
		return errors.New("web.gateway.missing_client")
	case gateway.Store == nil:
		return errors.New("web.gateway.missing_store")
	case gateway.Guard == nil:
		return errors.New("web.gateway.missing_guard")
	case gateway.Routes == nil:
		return errors.New("web.gateway.missing_routes")
	case gateway.Buses == nil:
		return errors.New("web.gateway.missing_buses")
	}
	return nil
}

// MountGateway registers the health, auth, admin, resource and /api passthrough routes.
func MountGateway(router gin.IRouter, gateway Gateway) error {
	if err := gateway.Validate(); err != nil {
		return err
	}
	logger := gateway.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := gateway.Guard

	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/auth/login", guard.RedirectIfAuthenticatedMiddleware(), func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"login": true, "notice": contextGin.Query(session.NoticeQueryParameter)})
	})

	router.POST("/auth/login", guard.RedirectIfAuthenticatedMiddleware(), func(contextGin *gin.Context) {
		var inbound apiclient.LoginRequest
		if err := contextGin.ShouldBindJSON(&inbound); err != nil || strings.TrimSpace(inbound.UsernameOrEmail) == "" || inbound.Password == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if _, loginErr := gateway.Client.Login(contextGin.Request.Context(), inbound); loginErr != nil {
			respondWithError(contextGin, logger, "web.auth.login", loginErr)
			return
		}
		contextGin.Redirect(http.StatusSeeOther, guard.LandingPath())
	})

	router.POST("/auth/logout", func(contextGin *gin.Context) {
		if logoutErr := gateway.Client.Logout(contextGin.Request.Context()); logoutErr != nil {
			logger.Warn("logout completed with errors",
				zap.String("code", "web.auth.logout"),
				zap.Error(logoutErr))
		}
		contextGin.Redirect(http.StatusSeeOther, guard.LoginPath())
	})

	router.GET("/auth/dashboard", guard.RequireAuthMiddleware(), func(contextGin *gin.Context) {
		principal, fetchErr := gateway.Client.CurrentUser(contextGin.Request.Context())
		if fetchErr != nil {
			logger.Warn("dashboard principal unavailable",
				zap.String("code", "web.dashboard.principal"),
				zap.Error(fetchErr))
			if clearErr := gateway.Store.Clear(contextGin.Request.Context()); clearErr != nil {
				logger.Error("credential clear failed",
					zap.String("code", "web.dashboard.clear"),
					zap.Error(clearErr))
			}
			contextGin.Redirect(http.StatusSeeOther, guard.LoginPath())
			return
		}
		contextGin.JSON(http.StatusOK, principal)
	})

	router.GET("/admin/check", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"admin": guard.IsAdmin(contextGin.Request.Context())})
	})

	router.GET("/routes", func(contextGin *gin.Context) {
		filter := busapi.RouteFilter{
			Page:            pageFromQuery(contextGin),
			OriginCity:      contextGin.Query("origin_city"),
			DestinationCity: contextGin.Query("destination_city"),
			Status:          contextGin.Query("status"),
		}
		items, listErr := gateway.Routes.List(contextGin.Request.Context(), filter)
		if listErr != nil {
			respondWithError(contextGin, logger, "web.routes.list", listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"routes": items, "notice": contextGin.Query(session.NoticeQueryParameter)})
	})

	router.POST("/routes/create", guard.RequireAdminMiddleware("/routes"), func(contextGin *gin.Context) {
		var input busapi.RouteInput
		if err := contextGin.ShouldBindJSON(&input); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		created, createErr := gateway.Routes.Create(contextGin.Request.Context(), input)
		if createErr != nil {
			respondWithError(contextGin, logger, "web.routes.create", createErr)
			return
		}
		contextGin.JSON(http.StatusCreated, created)
	})

	router.GET("/buses", guard.RequireAuthMiddleware(), func(contextGin *gin.Context) {
		filter := busapi.BusFilter{
			Page:         pageFromQuery(contextGin),
			BusNumber:    contextGin.Query("bus_number"),
			Manufacturer: contextGin.Query("manufacturer"),
			Model:        contextGin.Query("model"),
			Type:         contextGin.Query("type"),
			Status:       contextGin.Query("status"),
		}
		items, listErr := gateway.Buses.List(contextGin.Request.Context(), filter)
		if listErr != nil {
			respondWithError(contextGin, logger, "web.buses.list", listErr)
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"buses": items, "notice": contextGin.Query(session.NoticeQueryParameter)})
	})

	router.POST("/buses/create", guard.RequireAdminMiddleware("/buses"), func(contextGin *gin.Context) {
		var input busapi.BusInput
		if err := contextGin.ShouldBindJSON(&input); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		created, createErr := gateway.Buses.Create(contextGin.Request.Context(), input)
		if createErr != nil {
			respondWithError(contextGin, logger, "web.buses.create", createErr)
			return
		}
		contextGin.JSON(http.StatusCreated, created)
	})

	passthrough := func(contextGin *gin.Context) {
		payload, readErr := io.ReadAll(contextGin.Request.Body)
		if readErr != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}
		options := apiclient.RequestOptions{
			Method: contextGin.Request.Method,
			Query:  contextGin.Request.URL.Query(),
		}
		if len(payload) > 0 {
			options.Body = payload
			options.Headers = http.Header{}
			if contentType := contextGin.GetHeader("Content-Type"); contentType != "" {
				options.Headers.Set("Content-Type", contentType)
			}
		}
		result, requestErr := gateway.Client.Request(contextGin.Request.Context(), "/api"+contextGin.Param("path"), options)
		if requestErr != nil {
			respondWithError(contextGin, logger, "web.api.passthrough", requestErr)
			return
		}
		if len(result) == 0 {
			contextGin.Status(http.StatusNoContent)
			return
		}
		contextGin.Data(http.StatusOK, "application/json; charset=utf-8", result)
	}
	for _, method := range PassthroughMethods {
		router.Handle(method, "/api/*path", passthrough)
	}

	return nil
}

func pageFromQuery(contextGin *gin.Context) busapi.Page {
	offset, _ := strconv.Atoi(contextGin.Query("offset"))
	limit, _ := strconv.Atoi(contextGin.Query("limit"))
	return busapi.Page{Offset: offset, Limit: limit}
}

// respondWithError maps request-layer errors to gateway responses. Session failures become
// 401, backend rejections keep their status, transport failures become 502.
func respondWithError(contextGin *gin.Context, logger *zap.Logger, code string, err error) {
	var requestError *apiclient.RequestError
	switch {
	case errors.Is(err, apiclient.ErrNotAuthenticated):
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
	case errors.Is(err, apiclient.ErrSessionExpired):
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_expired"})
	case errors.As(err, &requestError):
		contextGin.AbortWithStatusJSON(requestError.StatusCode, gin.H{"error": requestError.Message})
	case errors.Is(err, apiclient.ErrNetwork):
		logger.Warn("backend unreachable", zap.String("code", code), zap.Error(err))
		contextGin.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "backend_unavailable"})
	case errors.Is(err, busapi.ErrMissingID):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_id"})
	default:
		logger.Error("gateway request failed", zap.String("code", code), zap.Error(err))
		contextGin.AbortWithStatus(http.StatusInternalServerError)
	}
}
