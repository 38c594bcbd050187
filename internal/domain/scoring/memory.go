package scoring

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/icexg/internal/domain/model"
)

// Coefficients is a logistic model: p = 1 / (1 + exp(-(Intercept + sum w*x))).
type Coefficients struct {
	Intercept float64
	Weights   map[string]float64
}

var defaultCoefficients = map[string]Coefficients{
	ModelDistance: {Intercept: -0.85, Weights: map[string]float64{model.FeatureDistance: -0.058}},
	ModelAngle:    {Intercept: -1.9, Weights: map[string]float64{model.FeatureAngleFromNet: -0.021}},
	ModelDistanceAngle: {Intercept: -0.9, Weights: map[string]float64{
		model.FeatureDistance:     -0.052,
		model.FeatureAngleFromNet: -0.009,
	}},
}

// Option applies a configuration option to the InMemoryScorer.
type Option func(*InMemoryScorer)

// WithLatencyRange simulates a remote model by sleeping a random duration
// in [minLatency, maxLatency) on each Predict.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(s *InMemoryScorer) {
		if minLatency > 0 && maxLatency > minLatency {
			s.minLatency = minLatency
			s.maxLatency = maxLatency
		}
	}
}

// WithCoefficients overrides the coefficients of one model.
func WithCoefficients(name string, c Coefficients) Option {
	return func(s *InMemoryScorer) {
		s.coefficients[name] = c
	}
}

// WithInitialModel selects a model at construction. Unknown names are ignored.
func WithInitialModel(name string) Option {
	return func(s *InMemoryScorer) {
		if f, err := RequiredFeatures(name); err == nil {
			s.active = &ModelInfo{Workspace: "local", Model: name, Features: f}
		}
	}
}

// InMemoryScorer implements Gateway with local logistic models. It backs
// tests and offline runs where no model server is reachable.
type InMemoryScorer struct {
	mu           sync.RWMutex
	coefficients map[string]Coefficients
	active       *ModelInfo
	minLatency   time.Duration
	maxLatency   time.Duration
	rng          *rand.Rand
}

// NewInMemoryScorer creates a scorer with no active model unless
// WithInitialModel is given.
func NewInMemoryScorer(opts ...Option) *InMemoryScorer {
	s := &InMemoryScorer{
		coefficients: make(map[string]Coefficients, len(defaultCoefficients)),
		rng:          rand.New(rand.NewSource(42)), //nolint:gosec // latency jitter only
	}
	for name, c := range defaultCoefficients {
		s.coefficients[name] = c
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict scores each vector with the active model's coefficients.
func (s *InMemoryScorer) Predict(ctx context.Context, vectors []Vector) ([]float64, error) {
	s.mu.RLock()
	active := s.active
	s.mu.RUnlock()
	if active == nil {
		return nil, ErrNoModel
	}
	coef, ok := s.coefficients[active.Model]
	if !ok {
		return nil, fmt.Errorf("%w: no coefficients for %q", ErrUnknownModel, active.Model)
	}

	if s.maxLatency > 0 {
		s.mu.Lock()
		latency := s.minLatency + time.Duration(s.rng.Int63n(int64(s.maxLatency-s.minLatency)))
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-time.After(latency):
		}
	}

	out := make([]float64, len(vectors))
	for i, v := range vectors {
		z := coef.Intercept
		for j, f := range v.Features {
			z += coef.Weights[f] * v.Values[j]
		}
		out[i] = 1 / (1 + math.Exp(-z))
	}
	return out, nil
}

// SelectModel activates a model from the capability table.
func (s *InMemoryScorer) SelectModel(_ context.Context, req ModelRequest) (ModelInfo, error) {
	f, err := RequiredFeatures(req.Model)
	if err != nil {
		return ModelInfo{}, err
	}
	info := ModelInfo{Workspace: req.Workspace, Model: req.Model, Version: req.Version, Features: f}
	s.mu.Lock()
	s.active = &info
	s.mu.Unlock()
	return info, nil
}

// Active returns the selected model.
func (s *InMemoryScorer) Active() (ModelInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ModelInfo{}, ErrNoModel
	}
	return *s.active, nil
}
