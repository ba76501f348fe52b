package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/busclient/internal/busapi"
	"github.com/tyemirov/busclient/pkg/apiclient"
	"github.com/tyemirov/busclient/pkg/credentials"
	"github.com/tyemirov/busclient/pkg/session"
	"go.uber.org/zap/zaptest"
)

type backendState struct {
	mutex    sync.Mutex
	role     string
	meStatus int
	calls    []string
}

func (state *backendState) record(call string) {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	state.calls = append(state.calls, call)
}

func (state *backendState) snapshot() []string {
	state.mutex.Lock()
	defer state.mutex.Unlock()
	return append([]string(nil), state.calls...)
}

func (state *backendState) count(call string) int {
	total := 0
	for _, recorded := range state.snapshot() {
		if recorded == call {
			total++
		}
	}
	return total
}

func newBackendServer(t *testing.T, state *backendState) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		state.record(request.Method + " " + request.URL.Path)
		writer.Header().Set("Content-Type", "application/json")
		authenticated := request.Header.Get("Authorization") == "Bearer A1"
		switch request.Method + " " + request.URL.Path {
		case "POST /api/auth/login":
			_, _ = io.WriteString(writer, `{"access_token":"A1","refresh_token":"R1","token_type":"bearer","expires_in":1800}`)
		case "POST /api/auth/logout":
			_, _ = io.WriteString(writer, `{"message":"Successfully logged out"}`)
		case "GET /api/auth/me":
			state.mutex.Lock()
			role, meStatus := state.role, state.meStatus
			state.mutex.Unlock()
			if meStatus != 0 {
				writer.WriteHeader(meStatus)
				_, _ = io.WriteString(writer, `{"detail":"unavailable"}`)
				return
			}
			_, _ = io.WriteString(writer, `{"id":"u-1","username":"ada","email":"ada@example.com","role":"`+role+`","is_active":true}`)
		case "GET /api/routes/":
			_, _ = io.WriteString(writer, `[{"id":"r-1","route_number":"R-1","origin_city":"Lviv","destination_city":"Kyiv","status":"ACTIVE"}]`)
		case "POST /api/routes/":
			if !authenticated {
				writer.WriteHeader(http.StatusUnauthorized)
				return
			}
			writer.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(writer, `{"id":"r-2","route_number":"R-2","status":"ACTIVE"}`)
		case "GET /api/buses/":
			_, _ = io.WriteString(writer, `[{"id":"b-1","bus_number":"B-1","bus_type":"`+request.URL.Query().Get("type")+`"}]`)
		default:
			writer.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(writer, `{"detail":"Not found"}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

type gatewayHarness struct {
	router *gin.Engine
	store  *credentials.MemoryStore
	state  *backendState
}

func newGatewayHarness(t *testing.T, role string) *gatewayHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	state := &backendState{role: role}
	server := newBackendServer(t, state)
	store := credentials.NewMemoryStore()
	logger := zaptest.NewLogger(t)
	client, clientErr := apiclient.New(apiclient.Config{BaseURL: server.URL, Store: store, Logger: logger})
	if clientErr != nil {
		t.Fatalf("new client: %v", clientErr)
	}
	guard, guardErr := session.New(session.Config{Store: store, Principals: client, Logger: logger})
	if guardErr != nil {
		t.Fatalf("new guard: %v", guardErr)
	}
	router := gin.New()
	router.Use(ConfigureCORS([]string{"http://localhost:5173"}, router.Routes))
	mountErr := MountGateway(router, Gateway{
		Client: client,
		Store:  store,
		Guard:  guard,
		Routes: busapi.NewRoutes(client),
		Buses:  busapi.NewBuses(client),
		Logger: logger,
	})
	if mountErr != nil {
		t.Fatalf("mount gateway: %v", mountErr)
	}
	return &gatewayHarness{router: router, store: store, state: state}
}

func (harness *gatewayHarness) login(t *testing.T) {
	t.Helper()
	if err := harness.store.Save(context.Background(), credentials.Pair{AccessToken: "A1", RefreshToken: "R1"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
}

func (harness *gatewayHarness) serve(method string, target string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	harness.router.ServeHTTP(recorder, request)
	return recorder
}

func TestMountGatewayRequiresDependencies(t *testing.T) {
	if err := MountGateway(gin.New(), Gateway{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestGatewayLoginFlow(t *testing.T) {
	harness := newGatewayHarness(t, "CUSTOMER")

	anonymousDashboard := harness.serve(http.MethodGet, "/auth/dashboard", "")
	if anonymousDashboard.Code != http.StatusSeeOther || anonymousDashboard.Header().Get("Location") != session.DefaultLoginPath {
		t.Fatalf("expected login redirect, got %d %q", anonymousDashboard.Code, anonymousDashboard.Header().Get("Location"))
	}
	if len(harness.state.snapshot()) != 0 {
		t.Fatalf("expected no backend calls, got %v", harness.state.snapshot())
	}

	if invalid := harness.serve(http.MethodPost, "/auth/login", `{"username_or_email":""}`); invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank credentials, got %d", invalid.Code)
	}

	login := harness.serve(http.MethodPost, "/auth/login", `{"username_or_email":"ada","password":"secret"}`)
	if login.Code != http.StatusSeeOther || login.Header().Get("Location") != session.DefaultLandingPath {
		t.Fatalf("expected landing redirect, got %d %q", login.Code, login.Header().Get("Location"))
	}
	if loggedIn, _ := credentials.IsLoggedIn(context.Background(), harness.store); !loggedIn {
		t.Fatalf("expected stored session after login")
	}

	loginAgain := harness.serve(http.MethodGet, "/auth/login", "")
	if loginAgain.Code != http.StatusSeeOther || loginAgain.Header().Get("Location") != session.DefaultLandingPath {
		t.Fatalf("expected logged-in visitor to skip login, got %d", loginAgain.Code)
	}

	dashboard := harness.serve(http.MethodGet, "/auth/dashboard", "")
	if dashboard.Code != http.StatusOK {
		t.Fatalf("expected dashboard, got %d", dashboard.Code)
	}
	var principal apiclient.Principal
	if err := json.Unmarshal(dashboard.Body.Bytes(), &principal); err != nil || principal.Username != "ada" {
		t.Fatalf("unexpected principal %s", dashboard.Body.String())
	}

	logout := harness.serve(http.MethodPost, "/auth/logout", "")
	if logout.Code != http.StatusSeeOther || logout.Header().Get("Location") != session.DefaultLoginPath {
		t.Fatalf("expected login redirect after logout, got %d", logout.Code)
	}
	if loggedIn, _ := credentials.IsLoggedIn(context.Background(), harness.store); loggedIn {
		t.Fatalf("expected cleared session after logout")
	}
}

func TestGatewayDashboardClearsSessionWhenPrincipalFails(t *testing.T) {
	harness := newGatewayHarness(t, "CUSTOMER")
	harness.login(t)
	harness.state.meStatus = http.StatusInternalServerError

	recorder := harness.serve(http.MethodGet, "/auth/dashboard", "")
	if recorder.Code != http.StatusSeeOther || recorder.Header().Get("Location") != session.DefaultLoginPath {
		t.Fatalf("expected login redirect, got %d %q", recorder.Code, recorder.Header().Get("Location"))
	}
	if loggedIn, _ := credentials.IsLoggedIn(context.Background(), harness.store); loggedIn {
		t.Fatalf("expected session to be cleared")
	}
}

func TestGatewayAdminGuards(t *testing.T) {
	customer := newGatewayHarness(t, "CUSTOMER")
	customer.login(t)
	denied := customer.serve(http.MethodPost, "/routes/create", `{"route_number":"R-2"}`)
	if denied.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", denied.Code)
	}
	location, parseErr := url.Parse(denied.Header().Get("Location"))
	if parseErr != nil || location.Path != "/routes" || location.Query().Get(session.NoticeQueryParameter) != session.AccessDeniedNotice {
		t.Fatalf("unexpected location %q", denied.Header().Get("Location"))
	}
	if customer.state.count("GET /api/auth/me") != 1 || customer.state.count("POST /api/routes/") != 0 {
		t.Fatalf("unexpected backend calls %v", customer.state.snapshot())
	}
	probe := customer.serve(http.MethodGet, "/admin/check", "")
	if !bytes.Contains(probe.Body.Bytes(), []byte(`"admin":false`)) {
		t.Fatalf("expected admin false, got %s", probe.Body.String())
	}

	admin := newGatewayHarness(t, "ADMIN")
	admin.login(t)
	created := admin.serve(http.MethodPost, "/routes/create", `{"route_number":"R-2","origin_city":"Lviv","destination_city":"Odesa"}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", created.Code, created.Body.String())
	}
	if admin.state.count("POST /api/routes/") != 1 {
		t.Fatalf("expected one create call, got %v", admin.state.snapshot())
	}
	adminProbe := admin.serve(http.MethodGet, "/admin/check", "")
	if !bytes.Contains(adminProbe.Body.Bytes(), []byte(`"admin":true`)) {
		t.Fatalf("expected admin true, got %s", adminProbe.Body.String())
	}

	anonymous := newGatewayHarness(t, "ADMIN")
	redirected := anonymous.serve(http.MethodPost, "/buses/create", `{}`)
	if redirected.Code != http.StatusSeeOther || redirected.Header().Get("Location") != session.DefaultLoginPath {
		t.Fatalf("expected login redirect, got %d %q", redirected.Code, redirected.Header().Get("Location"))
	}
	if len(anonymous.state.snapshot()) != 0 {
		t.Fatalf("expected no backend calls, got %v", anonymous.state.snapshot())
	}
}

func TestGatewayListings(t *testing.T) {
	harness := newGatewayHarness(t, "CUSTOMER")

	routes := harness.serve(http.MethodGet, "/routes?origin_city=Lviv&notice=hello", "")
	if routes.Code != http.StatusOK || !strings.Contains(routes.Body.String(), `"route_number":"R-1"`) || !strings.Contains(routes.Body.String(), `"notice":"hello"`) {
		t.Fatalf("unexpected routes response %d %s", routes.Code, routes.Body.String())
	}
	buses := harness.serve(http.MethodGet, "/buses", "")
	if buses.Code != http.StatusSeeOther {
		t.Fatalf("expected anonymous bus listing to redirect, got %d", buses.Code)
	}
}

func TestGatewayAPIPassthrough(t *testing.T) {
	harness := newGatewayHarness(t, "CUSTOMER")

	anonymous := harness.serve(http.MethodGet, "/api/buses/", "")
	if anonymous.Code != http.StatusUnauthorized || !strings.Contains(anonymous.Body.String(), "not_authenticated") {
		t.Fatalf("expected 401, got %d %s", anonymous.Code, anonymous.Body.String())
	}

	harness.login(t)
	listed := harness.serve(http.MethodGet, "/api/buses/?type=LUXURY", "")
	if listed.Code != http.StatusOK || !strings.Contains(listed.Body.String(), `"bus_type":"LUXURY"`) {
		t.Fatalf("unexpected passthrough response %d %s", listed.Code, listed.Body.String())
	}
	missing := harness.serve(http.MethodGet, "/api/buses/unknown", "")
	if missing.Code != http.StatusNotFound || !strings.Contains(missing.Body.String(), "Not found") {
		t.Fatalf("expected backend 404 to pass through, got %d %s", missing.Code, missing.Body.String())
	}
	created := harness.serve(http.MethodPost, "/api/routes/", `{"route_number":"R-2"}`)
	if created.Code != http.StatusOK || !strings.Contains(created.Body.String(), `"id":"r-2"`) {
		t.Fatalf("unexpected create passthrough %d %s", created.Code, created.Body.String())
	}
}

func TestGatewayHealth(t *testing.T) {
	harness := newGatewayHarness(t, "CUSTOMER")
	if recorder := harness.serve(http.MethodGet, "/healthz", ""); recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestGatewayCORSAdvertisesRegisteredMethods(t *testing.T) {
	harness := newGatewayHarness(t, "CUSTOMER")

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/api/routes/", nil)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	harness.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from preflight, got %d", recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:5173" {
		t.Fatalf("unexpected allowed origin header: %q", origin)
	}
	allowedMethods := recorder.Header().Get("Access-Control-Allow-Methods")
	for _, method := range PassthroughMethods {
		if !strings.Contains(allowedMethods, method) {
			t.Fatalf("expected %s in allowed methods %q", method, allowedMethods)
		}
	}
	for _, method := range []string{http.MethodConnect, http.MethodTrace, http.MethodHead} {
		if strings.Contains(allowedMethods, method) {
			t.Fatalf("unexpected %s in allowed methods %q", method, allowedMethods)
		}
	}
	if credentialsHeader := recorder.Header().Get("Access-Control-Allow-Credentials"); credentialsHeader != "" {
		t.Fatalf("expected credentialed requests to stay disabled, got %q", credentialsHeader)
	}
	if harness.state.count("GET /api/routes/") != 0 {
		t.Fatalf("expected preflight to stay local")
	}
}

func TestRegisteredMethods(t *testing.T) {
	t.Parallel()
	routes := gin.RoutesInfo{
		{Method: http.MethodPost, Path: "/auth/login"},
		{Method: http.MethodGet, Path: "/healthz"},
		{Method: http.MethodGet, Path: "/routes"},
		{Method: http.MethodDelete, Path: "/api/*path"},
	}
	methods := RegisteredMethods(routes)
	if strings.Join(methods, ",") != "DELETE,GET,POST" {
		t.Fatalf("unexpected methods %v", methods)
	}
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestLogger(zaptest.NewLogger(t)))
	router.GET("/ping", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", recorder.Code)
	}
}
