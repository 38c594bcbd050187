package service_test

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/icexg/internal/adapters/repository"
	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/scoring"
)

const gameID = "2024020500"

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }
func intp(v int) *int        { return &v }

func shot(id int64, team int64, x, y float64) model.RawPlayEvent {
	return model.RawPlayEvent{
		EventID:          i64(id),
		TypeKey:          model.TypeKeyShotOnGoal,
		Period:           intp(1),
		TimeRemaining:    str("12:00"),
		SituationCode:    str("1551"),
		TeamID:           i64(team),
		ShootingPlayerID: i64(7),
		GoalieInNetID:    i64(30),
		X:                f64(x),
		Y:                f64(y),
	}
}

func faceoff(id int64) model.RawPlayEvent {
	return model.RawPlayEvent{EventID: i64(id), TypeKey: "faceoff"}
}

// fakeFeed serves a mutable snapshot.
type fakeFeed struct {
	mu    sync.Mutex
	snap  model.GameSnapshot
	err   error
	calls int
	live  []model.LiveGame
}

func newFakeFeed(plays ...model.RawPlayEvent) *fakeFeed {
	return &fakeFeed{snap: model.GameSnapshot{
		GameID:    gameID,
		GameState: "LIVE",
		Home:      model.Team{ID: 1, Name: "Canadiens", Abbrev: "MTL"},
		Away:      model.Team{ID: 2, Name: "Bruins", Abbrev: "BOS"},
		Plays:     plays,
	}}
}

func (f *fakeFeed) FetchGame(_ context.Context, id string) (model.GameSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return model.GameSnapshot{}, f.err
	}
	snap := f.snap
	snap.GameID = id
	snap.Plays = append([]model.RawPlayEvent(nil), f.snap.Plays...)
	return snap, nil
}

func (f *fakeFeed) LiveGames(context.Context) ([]model.LiveGame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.live, nil
}

func (f *fakeFeed) add(plays ...model.RawPlayEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Plays = append(f.snap.Plays, plays...)
}

func (f *fakeFeed) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// flakyGateway wraps a scorer and fails Predict while down is set.
type flakyGateway struct {
	*scoring.InMemoryScorer
	mu   sync.Mutex
	down bool
}

func newGateway() *flakyGateway {
	return &flakyGateway{InMemoryScorer: scoring.NewInMemoryScorer(scoring.WithInitialModel(scoring.ModelDistance))}
}

func (g *flakyGateway) setDown(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.down = down
}

func (g *flakyGateway) Predict(ctx context.Context, v []scoring.Vector) ([]float64, error) {
	g.mu.Lock()
	down := g.down
	g.mu.Unlock()
	if down {
		return nil, scoring.ErrGatewayUnavailable
	}
	return g.InMemoryScorer.Predict(ctx, v)
}

// shortGateway drops the last prediction of every response.
type shortGateway struct {
	*flakyGateway
}

func (g shortGateway) Predict(ctx context.Context, v []scoring.Vector) ([]float64, error) {
	probs, err := g.flakyGateway.Predict(ctx, v)
	if err != nil || len(probs) == 0 {
		return probs, err
	}
	return probs[:len(probs)-1], nil
}

// loggingGateway also exposes model server logs.
type loggingGateway struct {
	*flakyGateway
}

func (loggingGateway) Logs(context.Context) ([]string, error) {
	return []string{"loaded distance"}, nil
}

// brokenTable fails every merge.
type brokenTable struct {
	repository.Table
}

func (brokenTable) Merge(context.Context, []model.ScoredRow) (int, error) {
	return 0, errors.New("disk full")
}

// recorder collects published batches.
type recorder struct {
	mu      sync.Mutex
	batches []model.Batch
}

func (r *recorder) Publish(_ context.Context, b model.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *recorder) Clients() int { return 3 }
