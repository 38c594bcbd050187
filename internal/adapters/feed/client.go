// Package feed fetches play-by-play snapshots and the live scoreboard from
// the league's public API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/pkg/metrics"
)

const (
	endpointPlayByPlay = "play_by_play"
	endpointScoreboard = "scoreboard"
)

var tracer = otel.Tracer("github.com/okian/icexg/internal/adapters/feed")

// Config controls how the client reaches the feed.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	RatePerSec float64 // outbound requests per second; <= 0 uses the default
	Burst      int
}

// Client fetches game snapshots. Every request waits on a shared token
// bucket; concurrent scoreboard lookups share one request.
type Client struct {
	baseURL    string
	httpClient httpDoer
	limiter    *rate.Limiter
	group      singleflight.Group
	timeout    time.Duration
}

// NewClient constructs a feed client.
func NewClient(cfg Config) *Client {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = defaultRatePerSec
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		httpClient: resolveHTTPClient(cfg.HTTPClient, cfg.Timeout),
		limiter:    rate.NewLimiter(rate.Limit(perSec), burst),
		timeout:    timeout,
	}
}

// FetchGame returns the current snapshot of a game.
func (c *Client) FetchGame(ctx context.Context, gameID string) (model.GameSnapshot, error) {
	if !model.ValidGameID(gameID) {
		return model.GameSnapshot{}, fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}
	ctx, span := tracer.Start(ctx, "feed.FetchGame")
	defer span.End()
	span.SetAttributes(attribute.String("game.id", gameID))

	var payload playByPlayResponse
	if err := c.getJSON(ctx, endpointPlayByPlay, "/gamecenter/"+gameID+"/play-by-play", &payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.GameSnapshot{}, err
	}
	snap := mapSnapshot(gameID, payload)
	span.SetAttributes(attribute.Int("game.plays", len(snap.Plays)))
	return snap, nil
}

// LiveGames lists the games on today's scoreboard. Callers that arrive
// while a request is in flight share its result. The shared request is not
// tied to any one caller, so a caller giving up does not fail the others.
func (c *Client) LiveGames(ctx context.Context) ([]model.LiveGame, error) {
	ch := c.group.DoChan(endpointScoreboard, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		var payload scoreboardResponse
		if err := c.getJSON(fctx, endpointScoreboard, "/scoreboard/now", &payload); err != nil {
			return nil, err
		}
		return mapLiveGames(payload), nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrFeedUnavailable, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	games := res.Val.([]model.LiveGame)
	out := make([]model.LiveGame, len(games))
	copy(out, games)
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, dst any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordFeedRequest(endpoint, err == nil, float64(time.Since(start).Milliseconds()))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", ErrFeedUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("%w: unexpected status %d: %s", ErrFeedUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrFeedDecode, err)
	}
	return nil
}
