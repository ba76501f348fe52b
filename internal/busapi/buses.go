package busapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tyemirov/busclient/pkg/apiclient"
)

// Bus types reported by the backend.
const (
	BusTypeMinibus       = "MINIBUS"
	BusTypeStandard      = "STANDARD"
	BusTypeLuxury        = "LUXURY"
	BusTypeSleeper       = "SLEEPER"
	BusTypeMinibusLuxury = "MINIBUS_LUXURY"
)

// Bus statuses reported by the backend.
const (
	BusStatusActive      = "ACTIVE"
	BusStatusMaintenance = "MAINTENANCE"
	BusStatusInactive    = "INACTIVE"
	BusStatusDeleted     = "DELETED"
)

// BusRow describes one seat row.
type BusRow struct {
	RowNumber int `json:"row_number"`
	SeatCount int `json:"seat_count"`
}

// BusListItem is the summary returned by the listing.
type BusListItem struct {
	ID            string   `json:"id"`
	BusNumber     string   `json:"bus_number"`
	LicensePlate  string   `json:"license_plate"`
	BusName       string   `json:"bus_name,omitempty"`
	BusType       string   `json:"bus_type"`
	Capacity      int      `json:"capacity"`
	Status        string   `json:"status"`
	IsAccessible  bool     `json:"is_accessible"`
	AmenitiesList []string `json:"amenities_list"`
}

// Bus is the full bus representation.
type Bus struct {
	ID               string   `json:"id"`
	BusNumber        string   `json:"bus_number"`
	LicensePlate     string   `json:"license_plate"`
	BusName          string   `json:"bus_name,omitempty"`
	BusType          string   `json:"bus_type"`
	Capacity         int      `json:"capacity"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	Model            string   `json:"model,omitempty"`
	YearManufactured int      `json:"year_manufactured,omitempty"`
	HasWifi          bool     `json:"has_wifi"`
	HasAC            bool     `json:"has_ac"`
	HasTV            bool     `json:"has_tv"`
	HasChargingPorts bool     `json:"has_charging_ports"`
	HasRefreshments  bool     `json:"has_refreshments"`
	HasRestroom      bool     `json:"has_restroom"`
	Status           string   `json:"status"`
	IsAccessible     bool     `json:"is_accessible"`
	Description      string   `json:"description,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	Rows             []BusRow `json:"rows"`
	RouteIDs         []string `json:"route_ids,omitempty"`
	AmenitiesList    []string `json:"amenities_list"`
}

// BusInput is the payload for create and update. Update sends only the set fields.
type BusInput struct {
	BusNumber        string   `json:"bus_number,omitempty"`
	LicensePlate     string   `json:"license_plate,omitempty"`
	BusName          string   `json:"bus_name,omitempty"`
	BusType          string   `json:"bus_type,omitempty"`
	Capacity         int      `json:"capacity,omitempty"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	Model            string   `json:"model,omitempty"`
	YearManufactured int      `json:"year_manufactured,omitempty"`
	HasWifi          *bool    `json:"has_wifi,omitempty"`
	HasAC            *bool    `json:"has_ac,omitempty"`
	HasTV            *bool    `json:"has_tv,omitempty"`
	HasChargingPorts *bool    `json:"has_charging_ports,omitempty"`
	HasRefreshments  *bool    `json:"has_refreshments,omitempty"`
	HasRestroom      *bool    `json:"has_restroom,omitempty"`
	Status           string   `json:"status,omitempty"`
	IsAccessible     *bool    `json:"is_accessible,omitempty"`
	Description      string   `json:"description,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	Rows             []BusRow `json:"rows,omitempty"`
	RouteIDs         []string `json:"route_ids,omitempty"`
}

// BusFilter narrows the bus listing.
type BusFilter struct {
	Page
	BusNumber    string
	Manufacturer string
	Model        string
	Type         string
	Status       string
}

func (filter BusFilter) query() url.Values {
	query := url.Values{}
	filter.Page.apply(query)
	setIfPresent(query, "bus_number", filter.BusNumber)
	setIfPresent(query, "manufacturer", filter.Manufacturer)
	setIfPresent(query, "model", filter.Model)
	setIfPresent(query, "type", filter.Type)
	setIfPresent(query, "status", filter.Status)
	return query
}

// Buses accesses /api/buses. Every call is authenticated.
type Buses struct {
	requester Requester
}

// NewBuses constructs a bus client.
func NewBuses(requester Requester) *Buses {
	return &Buses{requester: requester}
}

// List returns one page of buses matching the filter.
func (buses *Buses) List(ctx context.Context, filter BusFilter) ([]BusListItem, error) {
	var items []BusListItem
	if err := buses.requester.RequestJSON(ctx, BusesEndpoint, apiclient.RequestOptions{
		Method:         http.MethodGet,
		Query:          filter.query(),
		FailureMessage: "Failed to load buses",
	}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns one bus.
func (buses *Buses) Get(ctx context.Context, id string) (Bus, error) {
	endpoint, endpointErr := itemEndpoint(BusesEndpoint, id)
	if endpointErr != nil {
		return Bus{}, endpointErr
	}
	var bus Bus
	if err := buses.requester.RequestJSON(ctx, endpoint, apiclient.RequestOptions{Method: http.MethodGet}, &bus); err != nil {
		return Bus{}, err
	}
	return bus, nil
}

// Create adds a bus.
func (buses *Buses) Create(ctx context.Context, input BusInput) (Bus, error) {
	var bus Bus
	if err := buses.requester.RequestJSON(ctx, BusesEndpoint, apiclient.RequestOptions{
		Method:         http.MethodPost,
		Body:           input,
		FailureMessage: "Failed to create bus",
	}, &bus); err != nil {
		return Bus{}, err
	}
	return bus, nil
}

// Update replaces the set fields of a bus.
func (buses *Buses) Update(ctx context.Context, id string, input BusInput) (Bus, error) {
	endpoint, endpointErr := itemEndpoint(BusesEndpoint, id)
	if endpointErr != nil {
		return Bus{}, endpointErr
	}
	var bus Bus
	if err := buses.requester.RequestJSON(ctx, endpoint, apiclient.RequestOptions{
		Method:         http.MethodPut,
		Body:           input,
		FailureMessage: "Failed to update bus",
	}, &bus); err != nil {
		return Bus{}, err
	}
	return bus, nil
}

// Delete removes a bus.
func (buses *Buses) Delete(ctx context.Context, id string) error {
	endpoint, endpointErr := itemEndpoint(BusesEndpoint, id)
	if endpointErr != nil {
		return endpointErr
	}
	return buses.requester.RequestJSON(ctx, endpoint, apiclient.RequestOptions{
		Method:         http.MethodDelete,
		FailureMessage: "Failed to delete bus",
	}, nil)
}
