// Package mapsapi adapts the Google Maps web services to the tracker's
// coordinate types. A Client without an API key is nil and every consumer
// degrades to its offline behaviour.
package mapsapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gmaps "googlemaps.github.io/maps"

	"bus_tracker/internal/models"
)

var (
	ErrNoAPIKey   = errors.New("maps api key not configured")
	ErrNoResults  = errors.New("maps: no results")
	ErrNoRoute    = errors.New("maps: no route")
	ErrUnroutable = errors.New("maps: element not routable")
)

type Client struct {
	c *gmaps.Client
}

// New returns nil, nil when apiKey is empty.
func New(apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, nil
	}
	c, err := gmaps.NewClient(gmaps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Client{c: c}, nil
}

// DrivingDuration queries the distance matrix for a single origin/destination pair.
func (m *Client) DrivingDuration(ctx context.Context, from, to models.LatLng) (time.Duration, error) {
	if m == nil {
		return 0, ErrNoAPIKey
	}
	resp, err := m.c.DistanceMatrix(ctx, &gmaps.DistanceMatrixRequest{
		Origins:      []string{from.String()},
		Destinations: []string{to.String()},
		Mode:         gmaps.TravelModeDriving,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, ErrNoResults
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("%w: %s", ErrUnroutable, el.Status)
	}
	return el.Duration, nil
}

func (m *Client) Geocode(ctx context.Context, address string) (models.LatLng, error) {
	if m == nil {
		return models.LatLng{}, ErrNoAPIKey
	}
	res, err := m.c.Geocode(ctx, &gmaps.GeocodingRequest{Address: address})
	if err != nil {
		return models.LatLng{}, err
	}
	if len(res) == 0 {
		return models.LatLng{}, ErrNoResults
	}
	loc := res[0].Geometry.Location
	return models.LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func (m *Client) ReverseGeocode(ctx context.Context, p models.LatLng) (string, error) {
	if m == nil {
		return "", ErrNoAPIKey
	}
	res, err := m.c.ReverseGeocode(ctx, &gmaps.GeocodingRequest{
		LatLng: &gmaps.LatLng{Lat: p.Lat, Lng: p.Lng},
	})
	if err != nil {
		return "", err
	}
	if len(res) == 0 {
		return "", ErrNoResults
	}
	return res[0].FormattedAddress, nil
}

// Directions returns the driving polyline through the given points in order.
func (m *Client) Directions(ctx context.Context, points []models.LatLng) ([]models.LatLng, error) {
	if m == nil {
		return nil, ErrNoAPIKey
	}
	if len(points) < 2 {
		return nil, models.ErrPathTooShort
	}
	req := &gmaps.DirectionsRequest{
		Origin:      points[0].String(),
		Destination: points[len(points)-1].String(),
		Mode:        gmaps.TravelModeDriving,
	}
	for _, p := range points[1 : len(points)-1] {
		req.Waypoints = append(req.Waypoints, p.String())
	}
	routes, _, err := m.c.Directions(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, ErrNoRoute
	}
	decoded, err := routes[0].OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	out := make([]models.LatLng, len(decoded))
	for i, p := range decoded {
		out[i] = models.LatLng{Lat: p.Lat, Lng: p.Lng}
	}
	return out, nil
}
