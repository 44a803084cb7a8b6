// Package client is a typed HTTP client for the lab API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/ailab/internal/api"
	"github.com/ashureev/ailab/internal/domain"
)

const defaultTimeout = 60 * time.Second

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ailab api: %d %s", e.Status, e.Message)
}

// Client talks to a lab server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL. A nil httpClient uses a default with a
// timeout long enough for generation round trips.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Experiments lists the scenario catalog.
func (c *Client) Experiments(ctx context.Context) ([]api.ExperimentSummary, error) {
	var out struct {
		Experiments []api.ExperimentSummary `json:"experiments"`
	}
	if err := c.do(ctx, http.MethodGet, "/experiments", nil, &out); err != nil {
		return nil, err
	}
	return out.Experiments, nil
}

// Experiment returns one scenario with its steps.
func (c *Client) Experiment(ctx context.Context, id string) (domain.ExperimentScenario, error) {
	var out domain.ExperimentScenario
	err := c.do(ctx, http.MethodGet, "/experiments/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Start opens a session.
func (c *Client) Start(ctx context.Context, req api.StartRequest) (api.StartResponse, error) {
	var out api.StartResponse
	err := c.do(ctx, http.MethodPost, "/simulate/start", req, &out)
	return out, err
}

// Interact sends one student message.
func (c *Client) Interact(ctx context.Context, req api.InteractRequest) (api.InteractResponse, error) {
	var out api.InteractResponse
	err := c.do(ctx, http.MethodPost, "/simulate/interact", req, &out)
	return out, err
}

// Complete finishes a session.
func (c *Client) Complete(ctx context.Context, sessionID, experimentID string) (api.CompleteResponse, error) {
	var out api.CompleteResponse
	err := c.do(ctx, http.MethodPost, "/simulate/complete", api.CompleteRequest{SessionID: sessionID, ExperimentID: experimentID}, &out)
	return out, err
}

// Compute evaluates a formula.
func (c *Client) Compute(ctx context.Context, formulaID string, params map[string]float64) (domain.ComputationResult, error) {
	var out domain.ComputationResult
	err := c.do(ctx, http.MethodPost, "/compute/"+url.PathEscape(formulaID), api.ComputeRequest{Params: params}, &out)
	return out, err
}

// Reports lists stored reports, newest first.
func (c *Client) Reports(ctx context.Context, limit int) ([]domain.ReportRecord, error) {
	var out struct {
		Reports []domain.ReportRecord `json:"reports"`
	}
	path := "/reports"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

// Report returns the markdown of a session's report.
func (c *Client) Report(ctx context.Context, sessionID string) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/reports/"+url.PathEscape(sessionID), nil, "text/markdown")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(data), nil
}

// Health returns the server's health payload.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}
