package scoring

import "errors"

// Error kinds returned by gateways and the scoring helpers. Callers match
// them with errors.Is.
var (
	// ErrGatewayUnavailable is a transient failure to reach the model server
	// or a non-2xx answer from it. Retrying the poll is safe.
	ErrGatewayUnavailable = errors.New("scoring gateway unavailable")

	// ErrContractViolation means the gateway answered, but not with one
	// probability per submitted row.
	ErrContractViolation = errors.New("scoring contract violation")

	// ErrMissingFeature means a model requires a feature the rows cannot
	// provide.
	ErrMissingFeature = errors.New("required feature missing")

	// ErrNoModel means no model has been selected yet.
	ErrNoModel = errors.New("no model loaded")

	// ErrUnknownModel means the model name is not in the capability table.
	ErrUnknownModel = errors.New("unknown model")
)
