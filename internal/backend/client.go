package backend

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

	"github.com/sero-sim/scene-engine/internal/observability"
)

// ErrStatus is returned when the backend answers with a non-2xx status
var ErrStatus = errors.New("backend returned non-success status")

// Client calls the optimization/risk service
type Client struct {
	base    string
	h       *http.Client
	metrics *observability.Metrics
}

// New creates a client for the given API origin
func New(base string, timeout time.Duration, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		h:       &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// LatestRisk calls GET /risk/latest
func (c *Client) LatestRisk(ctx context.Context) ([]RiskCell, error) {
	var cells []RiskCell
	if err := c.do(ctx, "risk", http.MethodGet, "/risk/latest", nil, &cells); err != nil {
		return nil, err
	}
	return cells, nil
}

// OptimizeDeployment calls POST /optimize/deployment
func (c *Client) OptimizeDeployment(ctx context.Context, req DeploymentRequest) (*DeploymentResponse, error) {
	var out DeploymentResponse
	if err := c.do(ctx, "deployment", http.MethodPost, "/optimize/deployment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Route calls POST /route
func (c *Client) Route(ctx context.Context, req RouteRequest) (*RouteResponse, error) {
	var out RouteResponse
	if err := c.do(ctx, "route", http.MethodPost, "/route", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveBackendCall(endpoint, time.Since(start), err)
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.h.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s: %w", method, path, resp.StatusCode, strings.TrimSpace(string(b)), ErrStatus)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
