// Package gateway talks to the HTTP model-serving endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/okian/icexg/internal/domain/scoring"
	"github.com/okian/icexg/pkg/metrics"
)

const (
	defaultBaseURL     = "http://127.0.0.1:5000"
	defaultHTTPTimeout = 10 * time.Second
	defaultVersion     = "latest"
	errorBodyLimit     = 512
)

var tracer = otel.Tracer("github.com/okian/icexg/internal/adapters/gateway")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config controls how the client reaches the model server.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration

	// Workspace and Model describe the model the server loads at startup.
	// An empty Model leaves the client without an active model until
	// SelectModel succeeds.
	Workspace string
	Model     string
	Version   string
}

// Client implements scoring.Gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient httpDoer

	mu     sync.RWMutex
	active *scoring.ModelInfo
}

// NewClient constructs a gateway client. An initial model outside the
// capability table is rejected.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		httpClient: resolveHTTPClient(cfg.HTTPClient, cfg.Timeout),
	}
	if cfg.Model != "" {
		f, err := scoring.RequiredFeatures(cfg.Model)
		if err != nil {
			return nil, err
		}
		c.active = &scoring.ModelInfo{
			Workspace: cfg.Workspace,
			Model:     cfg.Model,
			Version:   versionOrLatest(cfg.Version),
			Features:  f,
		}
	}
	return c, nil
}

type predictResponse struct {
	Predictions *[]float64 `json:"predictions"`
}

// Predict posts the vectors as a JSON array of feature objects.
func (c *Client) Predict(ctx context.Context, vectors []scoring.Vector) (probs []float64, err error) {
	ctx, span := tracer.Start(ctx, "gateway.Predict")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.Int("rows", len(vectors)))

	start := time.Now()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	}()

	payload := make([]map[string]float64, len(vectors))
	for i, v := range vectors {
		payload[i] = v.Map()
	}
	body, err := c.post(ctx, "/predict", payload)
	if err != nil {
		metrics.RecordScoringError("unavailable")
		return nil, err
	}

	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Predictions == nil {
		metrics.RecordScoringError("contract")
		return nil, fmt.Errorf("%w: response has no predictions array", scoring.ErrContractViolation)
	}
	return *resp.Predictions, nil
}

type selectResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Version string `json:"version"`
}

// SelectModel asks the server to load a registry model. The active model
// only changes when the server confirms.
func (c *Client) SelectModel(ctx context.Context, req scoring.ModelRequest) (scoring.ModelInfo, error) {
	features, err := scoring.RequiredFeatures(req.Model)
	if err != nil {
		return scoring.ModelInfo{}, err
	}
	req.Version = versionOrLatest(req.Version)

	ctx, span := tracer.Start(ctx, "gateway.SelectModel")
	defer span.End()
	span.SetAttributes(attribute.String("model", req.Model), attribute.String("version", req.Version))

	body, err := c.post(ctx, "/download_registry_model", req)
	if err != nil {
		span.RecordError(err)
		return scoring.ModelInfo{}, err
	}
	var resp selectResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Status != "" && resp.Status != "success" {
		return scoring.ModelInfo{}, fmt.Errorf("%w: model server answered status %q", scoring.ErrGatewayUnavailable, resp.Status)
	}
	if resp.Version != "" {
		req.Version = resp.Version
	}

	info := scoring.ModelInfo{Workspace: req.Workspace, Model: req.Model, Version: req.Version, Features: features}
	c.mu.Lock()
	c.active = &info
	c.mu.Unlock()
	return info, nil
}

// Active returns the model the server is believed to serve.
func (c *Client) Active() (scoring.ModelInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return scoring.ModelInfo{}, scoring.ErrNoModel
	}
	return *c.active, nil
}

type logsResponse struct {
	Logs []string `json:"logs"`
}

// Logs returns the server log lines. A non-JSON body is split into lines.
func (c *Client) Logs(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logs", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", scoring.ErrGatewayUnavailable, err)
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var resp logsResponse
	if err := json.Unmarshal(body, &resp); err == nil && resp.Logs != nil {
		return resp.Logs, nil
	}
	text := strings.TrimRight(string(body), "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", scoring.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scoring.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		kind := scoring.ErrGatewayUnavailable
		if resp.StatusCode == http.StatusBadRequest && strings.HasSuffix(req.URL.Path, "/download_registry_model") {
			kind = scoring.ErrUnknownModel
		}
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", kind, req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", scoring.ErrGatewayUnavailable, err)
	}
	return body, nil
}

func resolveHTTPClient(client *http.Client, timeout time.Duration) httpDoer {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

func normalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = defaultBaseURL
	}
	return strings.TrimSuffix(raw, "/")
}

func versionOrLatest(v string) string {
	if v == "" {
		return defaultVersion
	}
	return v
}
