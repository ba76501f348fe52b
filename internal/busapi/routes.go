package busapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tyemirov/busclient/pkg/apiclient"
)

// Route statuses reported by the backend.
const (
	RouteStatusActive   = "ACTIVE"
	RouteStatusInactive = "INACTIVE"
	RouteStatusSeasonal = "SEASONAL"
	RouteStatusDeleted  = "DELETED"
)

// IntermediateStop is a stop between origin and destination.
type IntermediateStop struct {
	City                 string `json:"city"`
	StopDurationMinutes  int    `json:"stop_duration_minutes"`
	DistanceFromOriginKM int    `json:"distance_from_origin_km"`
}

// RouteListItem is the summary returned by the listing.
type RouteListItem struct {
	ID                     string  `json:"id"`
	RouteNumber            string  `json:"route_number"`
	RouteName              string  `json:"route_name,omitempty"`
	OriginCity             string  `json:"origin_city"`
	DestinationCity        string  `json:"destination_city"`
	DistanceKM             int     `json:"distance_km"`
	EstimatedDurationHours float64 `json:"estimated_duration_hours"`
	BasePrice              float64 `json:"base_price"`
	Status                 string  `json:"status"`
	IsExpress              bool    `json:"is_express"`
	IsOperational          bool    `json:"is_operational"`
}

// Route is the full route representation.
type Route struct {
	ID                     string              `json:"id"`
	RouteNumber            string              `json:"route_number"`
	RouteName              string              `json:"route_name,omitempty"`
	OriginCity             string              `json:"origin_city"`
	DestinationCity        string              `json:"destination_city"`
	DistanceKM             int                 `json:"distance_km"`
	DurationMinutes        int                 `json:"duration_minutes"`
	IntermediateStops      []IntermediateStop  `json:"intermediate_stops,omitempty"`
	BasePrice              float64             `json:"base_price"`
	IsExpress              bool                `json:"is_express"`
	IsOvernight            bool                `json:"is_overnight"`
	OperatesDaily          bool                `json:"operates_daily"`
	OperatingDays          []string            `json:"operating_days,omitempty"`
	Description            string              `json:"description,omitempty"`
	Notes                  string              `json:"notes,omitempty"`
	Status                 string              `json:"status"`
	CreatedByID            string              `json:"created_by_id,omitempty"`
	CreatedAt              apiclient.Timestamp `json:"created_at"`
	UpdatedAt              apiclient.Timestamp `json:"updated_at"`
	IsOperational          bool                `json:"is_operational"`
	EstimatedDurationHours float64             `json:"estimated_duration_hours"`
	HasStops               bool                `json:"has_stops"`
	TotalStops             int                 `json:"total_stops"`
}

// RouteInput is the payload for create and update. Update sends only the set fields.
type RouteInput struct {
	RouteNumber       string             `json:"route_number,omitempty"`
	RouteName         string             `json:"route_name,omitempty"`
	OriginCity        string             `json:"origin_city,omitempty"`
	DestinationCity   string             `json:"destination_city,omitempty"`
	DistanceKM        int                `json:"distance_km,omitempty"`
	DurationMinutes   int                `json:"duration_minutes,omitempty"`
	IntermediateStops []IntermediateStop `json:"intermediate_stops,omitempty"`
	BasePrice         float64            `json:"base_price,omitempty"`
	IsExpress         *bool              `json:"is_express,omitempty"`
	IsOvernight       *bool              `json:"is_overnight,omitempty"`
	OperatesDaily     *bool              `json:"operates_daily,omitempty"`
	OperatingDays     []string           `json:"operating_days,omitempty"`
	Description       string             `json:"description,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	Status            string             `json:"status,omitempty"`
}

// RouteFilter narrows the route listing.
type RouteFilter struct {
	Page
	OriginCity      string
	DestinationCity string
	Status          string
}

func (filter RouteFilter) query() url.Values {
	query := url.Values{}
	filter.Page.apply(query)
	setIfPresent(query, "origin_city", filter.OriginCity)
	setIfPresent(query, "destination_city", filter.DestinationCity)
	setIfPresent(query, "status", filter.Status)
	return query
}

// Routes accesses /api/routes. Reads are public; writes require an admin session.
type Routes struct {
	requester Requester
}

// NewRoutes constructs a route client.
func NewRoutes(requester Requester) *Routes {
	return &Routes{requester: requester}
}

// List returns one page of routes matching the filter.
func (routes *Routes) List(ctx context.Context, filter RouteFilter) ([]RouteListItem, error) {
	var items []RouteListItem
	if err := routes.requester.PublicJSON(ctx, RoutesEndpoint, apiclient.RequestOptions{
		Method:         http.MethodGet,
		Query:          filter.query(),
		FailureMessage: "Failed to load routes",
	}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns one route.
func (routes *Routes) Get(ctx context.Context, id string) (Route, error) {
	endpoint, endpointErr := itemEndpoint(RoutesEndpoint, id)
	if endpointErr != nil {
		return Route{}, endpointErr
	}
	var route Route
	if err := routes.requester.PublicJSON(ctx, endpoint, apiclient.RequestOptions{Method: http.MethodGet}, &route); err != nil {
		return Route{}, err
	}
	return route, nil
}

// Create adds a route.
func (routes *Routes) Create(ctx context.Context, input RouteInput) (Route, error) {
	var route Route
	if err := routes.requester.RequestJSON(ctx, RoutesEndpoint, apiclient.RequestOptions{
		Method:         http.MethodPost,
		Body:           input,
		FailureMessage: "Failed to create route",
	}, &route); err != nil {
		return Route{}, err
	}
	return route, nil
}

// Update replaces the set fields of a route.
func (routes *Routes) Update(ctx context.Context, id string, input RouteInput) (Route, error) {
	endpoint, endpointErr := itemEndpoint(RoutesEndpoint, id)
	if endpointErr != nil {
		return Route{}, endpointErr
	}
	var route Route
	if err := routes.requester.RequestJSON(ctx, endpoint, apiclient.RequestOptions{
		Method:         http.MethodPut,
		Body:           input,
		FailureMessage: "Failed to update route",
	}, &route); err != nil {
		return Route{}, err
	}
	return route, nil
}

// Delete removes a route.
func (routes *Routes) Delete(ctx context.Context, id string) error {
	endpoint, endpointErr := itemEndpoint(RoutesEndpoint, id)
	if endpointErr != nil {
		return endpointErr
	}
	return routes.requester.RequestJSON(ctx, endpoint, apiclient.RequestOptions{
		Method:         http.MethodDelete,
		FailureMessage: "Failed to delete route",
	}, nil)
}
