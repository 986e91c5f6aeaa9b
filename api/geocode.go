package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

var geocodeEndpoint = "https://nominatim.openstreetmap.org/search"

// GeocodeCountry limits place lookups to the marketplace's region.
const GeocodeCountry = "in"

// Place is a resolved search location.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocode resolves a free-text place name, such as a city or area, to
// coordinates for a nearby search. It talks to OpenStreetMap rather than the
// booking backend, so it never carries a bearer token.
func (c *Client) Geocode(ctx context.Context, query string) (Place, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("countrycodes", GeocodeCountry)
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geocodeEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Place{}, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	status, body, err := c.send(req)
	if err != nil {
		return Place{}, err
	}
	if status < 200 || status >= 300 {
		return Place{}, &APIError{Method: http.MethodGet, Path: "geocode", StatusCode: status, Body: body}
	}

	var results []struct {
		DisplayName string `json:"display_name"`
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return Place{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return Place{}, fmt.Errorf("no place found for %q", query)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("geocode longitude: %w", err)
	}
	place := Place{Name: results[0].DisplayName, Latitude: lat, Longitude: lon}
	c.logger().Debug("geocoded", "query", query, "place", place.Name, "lat", lat, "lon", lon)
	return place, nil
}
