// Package client talks to a bus_tracker server over HTTP on behalf of a
// driver. It implements tracking.Pusher so a Sampler can run remotely.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"bus_tracker/internal/models"
)

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response carrying the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

type Client struct {
	base  string
	http  *http.Client
	token string
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) Token() string { return c.token }

type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Login exchanges credentials for a token, retrying while the server is
// unreachable. Rejected credentials are not retried.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var res LoginResult
	op := func() error {
		err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &res)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return LoginResult{}, err
	}
	c.token = res.Token
	return res, nil
}

type DriverBus struct {
	Driver models.Driver `json:"driver"`
	Bus    models.Bus    `json:"bus"`
}

func (c *Client) DriverBus(ctx context.Context) (DriverBus, error) {
	var out DriverBus
	err := c.do(ctx, http.MethodGet, "/driver/bus", nil, &out)
	return out, err
}

func (c *Client) Route(ctx context.Context, id string) (models.Route, error) {
	var r models.Route
	err := c.do(ctx, http.MethodGet, "/routes/"+id, nil, &r)
	return r, err
}

func (c *Client) PushLocation(ctx context.Context, busID string, loc models.LatLng, occ models.Occupancy) error {
	body := map[string]any{"bus_id": busID, "lat": loc.Lat, "lng": loc.Lng, "occupancy": occ}
	return c.do(ctx, http.MethodPost, "/driver/location", body, nil)
}

// PushStatus maps a bus status onto the driver endpoint that sets it.
func (c *Client) PushStatus(ctx context.Context, busID string, st models.BusStatus) error {
	var path string
	switch st {
	case models.StatusAvailable:
		path = "/driver/online"
	case models.StatusInTrip:
		path = "/driver/trip/start"
	case models.StatusInactive:
		path = "/driver/offline"
	default:
		return fmt.Errorf("unknown status %q", st)
	}
	return c.do(ctx, http.MethodPost, path, map[string]string{"bus_id": busID}, nil)
}

func (c *Client) PushOccupancy(ctx context.Context, busID string, occ models.Occupancy) error {
	return c.do(ctx, http.MethodPost, "/driver/occupancy", map[string]any{"bus_id": busID, "occupancy": occ}, nil)
}

func (c *Client) PushSOS(ctx context.Context, busID string) error {
	return c.do(ctx, http.MethodPost, "/driver/sos", map[string]string{"bus_id": busID}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
