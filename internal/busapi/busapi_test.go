package busapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/tyemirov/busclient/pkg/apiclient"
	"github.com/tyemirov/busclient/pkg/credentials"
	"go.uber.org/zap/zaptest"
)

type observedRequest struct {
	method        string
	path          string
	query         url.Values
	authorization string
	body          string
}

func newBackend(t *testing.T, responses map[string]string) (*httptest.Server, func() []observedRequest) {
	t.Helper()
	var mutex sync.Mutex
	var observed []observedRequest
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		payload, _ := io.ReadAll(request.Body)
		mutex.Lock()
		observed = append(observed, observedRequest{
			method:        request.Method,
			path:          request.URL.Path,
			query:         request.URL.Query(),
			authorization: request.Header.Get("Authorization"),
			body:          string(payload),
		})
		mutex.Unlock()
		body, ok := responses[request.Method+" "+request.URL.Path]
		if !ok {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(writer, `{"detail":"Not found"}`)
			return
		}
		if body == "" {
			writer.WriteHeader(http.StatusNoContent)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(writer, body)
	}))
	t.Cleanup(server.Close)
	return server, func() []observedRequest {
		mutex.Lock()
		defer mutex.Unlock()
		return append([]observedRequest(nil), observed...)
	}
}

func newClient(t *testing.T, baseURL string, loggedIn bool) *apiclient.Client {
	t.Helper()
	store := credentials.NewMemoryStore()
	if loggedIn {
		if err := store.Save(context.Background(), credentials.Pair{AccessToken: "A1", RefreshToken: "R1"}); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	client, err := apiclient.New(apiclient.Config{BaseURL: baseURL, Store: store, Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestRoutesListIsPublicAndEncodesFilter(t *testing.T) {
	server, observed := newBackend(t, map[string]string{
		"GET /api/routes/": `[{"id":"r-1","route_number":"R-1","origin_city":"Lviv","destination_city":"Kyiv","distance_km":540,"estimated_duration_hours":7.5,"base_price":25,"status":"ACTIVE","is_express":true,"is_operational":true}]`,
	})
	routes := NewRoutes(newClient(t, server.URL, false))

	items, err := routes.List(context.Background(), RouteFilter{
		Page:       Page{Offset: 16, Limit: 500},
		OriginCity: " Lviv ",
		Status:     RouteStatusActive,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].RouteNumber != "R-1" || !items[0].IsExpress {
		t.Fatalf("unexpected items %+v", items)
	}
	request := observed()[0]
	if request.authorization != "" {
		t.Fatalf("route listing must be anonymous")
	}
	if request.query.Get("offset") != "16" || request.query.Get("limit") != "100" || request.query.Get("origin_city") != "Lviv" || request.query.Get("status") != "ACTIVE" {
		t.Fatalf("unexpected query %v", request.query)
	}
	if request.query.Has("destination_city") {
		t.Fatalf("empty filters must be omitted: %v", request.query)
	}
}

func TestRoutesWritesRequireSession(t *testing.T) {
	server, observed := newBackend(t, map[string]string{
		"POST /api/routes/":      `{"id":"r-2","route_number":"R-2","status":"ACTIVE","created_at":"2024-06-01T08:00:00"}`,
		"PUT /api/routes/r-2":    `{"id":"r-2","route_number":"R-2b","status":"SEASONAL"}`,
		"DELETE /api/routes/r-2": ``,
	})
	anonymous := NewRoutes(newClient(t, server.URL, false))
	if _, err := anonymous.Create(context.Background(), RouteInput{RouteNumber: "R-2"}); !errors.Is(err, apiclient.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if len(observed()) != 0 {
		t.Fatalf("expected no calls for anonymous writes")
	}

	routes := NewRoutes(newClient(t, server.URL, true))
	created, err := routes.Create(context.Background(), RouteInput{RouteNumber: "R-2", OriginCity: "Lviv", DestinationCity: "Odesa", DistanceKM: 790})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "r-2" || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected route %+v", created)
	}
	updated, err := routes.Update(context.Background(), "r-2", RouteInput{RouteNumber: "R-2b", Status: RouteStatusSeasonal})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != RouteStatusSeasonal {
		t.Fatalf("unexpected status %q", updated.Status)
	}
	if err := routes.Delete(context.Background(), "r-2"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	requests := observed()
	if len(requests) != 3 {
		t.Fatalf("expected three calls, got %d", len(requests))
	}
	for _, request := range requests {
		if request.authorization != "Bearer A1" {
			t.Fatalf("expected bearer on %s %s", request.method, request.path)
		}
	}
	if requests[1].body != `{"route_number":"R-2b","status":"SEASONAL"}` {
		t.Fatalf("update must send only set fields, got %s", requests[1].body)
	}
}

func TestRoutesGetReportsServerMessage(t *testing.T) {
	server, _ := newBackend(t, map[string]string{})
	routes := NewRoutes(newClient(t, server.URL, false))

	_, err := routes.Get(context.Background(), "missing")
	if apiclient.StatusCode(err) != http.StatusNotFound || apiclient.Message(err) != "Not found" {
		t.Fatalf("expected 404 Not found, got %v", err)
	}
	if _, err := routes.Get(context.Background(), " "); !errors.Is(err, ErrMissingID) {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestBusesAreAuthenticated(t *testing.T) {
	server, observed := newBackend(t, map[string]string{
		"GET /api/buses/":    `[{"id":"b-1","bus_number":"B-1","license_plate":"AA1234BB","bus_type":"LUXURY","capacity":40,"status":"ACTIVE","is_accessible":true,"amenities_list":["wifi"]}]`,
		"GET /api/buses/b-1": `{"id":"b-1","bus_number":"B-1","license_plate":"AA1234BB","bus_type":"LUXURY","capacity":40,"status":"ACTIVE","rows":[{"row_number":1,"seat_count":4}],"amenities_list":["wifi"]}`,
	})
	anonymous := NewBuses(newClient(t, server.URL, false))
	if _, err := anonymous.List(context.Background(), BusFilter{}); !errors.Is(err, apiclient.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	buses := NewBuses(newClient(t, server.URL, true))
	items, err := buses.List(context.Background(), BusFilter{Type: BusTypeLuxury, Manufacturer: "Neoplan"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].BusType != BusTypeLuxury {
		t.Fatalf("unexpected items %+v", items)
	}
	bus, err := buses.Get(context.Background(), "b-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(bus.Rows) != 1 || bus.Rows[0].SeatCount != 4 {
		t.Fatalf("unexpected bus %+v", bus)
	}
	listRequest := observed()[0]
	if listRequest.query.Get("type") != BusTypeLuxury || listRequest.query.Get("manufacturer") != "Neoplan" || listRequest.authorization != "Bearer A1" {
		t.Fatalf("unexpected list request %+v", listRequest)
	}
}
