// Package scoring defines the contract with the goal probability model and
// the helpers that enforce it.
package scoring

import (
	"context"
	"fmt"

	"github.com/okian/icexg/internal/domain/model"
)

// ModelRequest selects a model from the registry.
type ModelRequest struct {
	Workspace string `json:"workspace"`
	Model     string `json:"model"`
	Version   string `json:"version"`
}

// ModelInfo describes the active model.
type ModelInfo struct {
	Workspace string   `json:"workspace,omitempty"`
	Model     string   `json:"model"`
	Version   string   `json:"version,omitempty"`
	Features  []string `json:"features"`
}

// Gateway is the scoring model as seen by a session.
type Gateway interface {
	// Predict returns one goal probability per vector, in order. Each vector
	// holds the active model's features in capability order.
	Predict(ctx context.Context, vectors []Vector) ([]float64, error)

	// SelectModel switches the active model.
	SelectModel(ctx context.Context, req ModelRequest) (ModelInfo, error)

	// Active returns the current model, or ErrNoModel.
	Active() (ModelInfo, error)
}

// LogSource is implemented by gateways that expose server logs.
type LogSource interface {
	Logs(ctx context.Context) ([]string, error)
}

// Vector is a row projected onto a model's features.
type Vector struct {
	Features []string
	Values   []float64
}

// Map returns the vector as a feature name to value map.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, len(v.Features))
	for i, f := range v.Features {
		m[f] = v.Values[i]
	}
	return m
}

// Project builds the vector for row. The boolean is false when the row has
// no value for one of the features, e.g. a shot without coordinates.
func Project(row model.FeatureRow, features []string) (Vector, bool, error) {
	v := Vector{Features: features, Values: make([]float64, len(features))}
	for i, f := range features {
		val, ok := row.Feature(f)
		if !ok {
			return Vector{}, false, fmt.Errorf("%w: %q", ErrMissingFeature, f)
		}
		if val == nil {
			return Vector{}, false, nil
		}
		v.Values[i] = *val
	}
	return v, true, nil
}

// Score runs rows through g. Rows lacking a value for a required feature are
// not submitted and come back with a nil probability. A response with the
// wrong number of probabilities fails with ErrContractViolation.
func Score(ctx context.Context, g Gateway, rows []model.FeatureRow) ([]model.ScoredRow, error) {
	info, err := g.Active()
	if err != nil {
		return nil, err
	}

	out := make([]model.ScoredRow, len(rows))
	vectors := make([]Vector, 0, len(rows))
	index := make([]int, 0, len(rows))
	for i, row := range rows {
		out[i] = model.ScoredRow{FeatureRow: row}
		v, ok, err := Project(row, info.Features)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		vectors = append(vectors, v)
		index = append(index, i)
	}
	if len(vectors) == 0 {
		return out, nil
	}

	probs, err := g.Predict(ctx, vectors)
	if err != nil {
		return nil, err
	}
	if len(probs) != len(vectors) {
		return nil, fmt.Errorf("%w: sent %d rows, got %d predictions", ErrContractViolation, len(vectors), len(probs))
	}
	for j, i := range index {
		p := probs[j]
		out[i].GoalProb = &p
	}
	return out, nil
}
