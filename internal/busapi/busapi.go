// Package busapi provides typed access to the route and bus resources of the backend.
package busapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/tyemirov/busclient/pkg/apiclient"
)

// Backend resource collections.
const (
	RoutesEndpoint = "/api/routes/"
	BusesEndpoint  = "/api/buses/"
)

// MaxPageLimit is the largest page the backend accepts.
const MaxPageLimit = 100

// ErrMissingID indicates that a resource call was made without an identifier.
var ErrMissingID = errors.New("busapi.missing_id")

// Requester is the subset of *apiclient.Client the resource clients depend on.
type Requester interface {
	RequestJSON(ctx context.Context, endpoint string, options apiclient.RequestOptions, target any) error
	PublicJSON(ctx context.Context, endpoint string, options apiclient.RequestOptions, target any) error
}

// Page selects a window of a listing. Zero values leave the backend defaults in place.
type Page struct {
	Offset int
	Limit  int
}

func (page Page) apply(query url.Values) {
	if page.Offset > 0 {
		query.Set("offset", strconv.Itoa(page.Offset))
	}
	if page.Limit > 0 {
		limit := page.Limit
		if limit > MaxPageLimit {
			limit = MaxPageLimit
		}
		query.Set("limit", strconv.Itoa(limit))
	}
}

func setIfPresent(query url.Values, key string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		query.Set(key, trimmed)
	}
}

func itemEndpoint(collection string, id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrMissingID
	}
	return collection + url.PathEscape(trimmed), nil
}
