package scoring

import (
	"fmt"
	"slices"

	"github.com/okian/icexg/internal/domain/model"
)

// Model identifiers served by the registry.
const (
	ModelDistance      = "distance"
	ModelAngle         = "angle_from_net"
	ModelDistanceAngle = "distance_angle"
)

// capabilities maps each model to the ordered feature list it is trained on.
var capabilities = map[string][]string{
	ModelDistance:      {model.FeatureDistance},
	ModelAngle:         {model.FeatureAngleFromNet},
	ModelDistanceAngle: {model.FeatureDistance, model.FeatureAngleFromNet},
}

// RequiredFeatures returns a copy of the feature list for name.
func RequiredFeatures(name string) ([]string, error) {
	f, ok := capabilities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return slices.Clone(f), nil
}

// Validate checks that name is a known model and that every feature it
// needs can be read from a feature row.
func Validate(name string) error {
	f, err := RequiredFeatures(name)
	if err != nil {
		return err
	}
	var probe model.FeatureRow
	for _, feat := range f {
		if _, ok := probe.Feature(feat); !ok {
			return fmt.Errorf("%w: model %q needs %q", ErrMissingFeature, name, feat)
		}
	}
	return nil
}

// Models lists the known model identifiers in sorted order.
func Models() []string {
	out := make([]string, 0, len(capabilities))
	for name := range capabilities {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
