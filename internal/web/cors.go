package web

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// PassthroughMethods are the verbs the /api passthrough forwards to the backend.
var PassthroughMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// ConfigureCORS enables cross-origin calls from already validated origins. The allowed
// methods are read from registered on the first request, so the middleware can be installed
// before MountGateway and still advertise exactly the verbs the gateway serves.
// The gateway keeps the session server-side, so credentialed requests are not allowed.
func ConfigureCORS(allowedOrigins []string, registered func() gin.RoutesInfo) gin.HandlerFunc {
	var (
		buildOnce sync.Once
		handler   gin.HandlerFunc
	)
	return func(contextGin *gin.Context) {
		buildOnce.Do(func() {
			handler = cors.New(cors.Config{
				AllowOrigins:  allowedOrigins,
				AllowMethods:  RegisteredMethods(registered()),
				AllowHeaders:  []string{"Content-Type", "Accept", "X-Requested-With", "X-Request-ID"},
				ExposeHeaders: []string{"Content-Type", "Location", "X-Request-ID"},
				MaxAge:        12 * time.Hour,
			})
		})
		handler(contextGin)
	}
}

// RegisteredMethods lists the distinct HTTP methods of the given routes in sorted order.
func RegisteredMethods(routes gin.RoutesInfo) []string {
	seen := make(map[string]struct{}, len(routes))
	methods := make([]string, 0, len(routes))
	for _, route := range routes {
		if _, exists := seen[route.Method]; exists {
			continue
		}
		seen[route.Method] = struct{}{}
		methods = append(methods, route.Method)
	}
	sort.Strings(methods)
	return methods
}
