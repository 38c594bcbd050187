package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/icexg/internal/adapters/feed"
	service "github.com/okian/icexg/internal/app"
	"github.com/okian/icexg/internal/domain/scoring"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// NewKind tags kind with the handler op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags err with the handler op and kind so both match errors.Is.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// statusFor maps domain error kinds to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidGameID),
		errors.Is(err, feed.ErrInvalidGameID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, scoring.ErrUnknownModel):
		return http.StatusBadRequest, "unknown_model"
	case errors.Is(err, service.ErrAutoPollDisabled):
		return http.StatusConflict, "auto_poll_disabled"
	case errors.Is(err, service.ErrLogsUnsupported):
		return http.StatusNotImplemented, "logs_unsupported"
	case errors.Is(err, scoring.ErrNoModel):
		return http.StatusServiceUnavailable, "no_model"
	case errors.Is(err, scoring.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "gateway_unavailable"
	case errors.Is(err, feed.ErrFeedUnavailable):
		return http.StatusBadGateway, "feed_unavailable"
	case errors.Is(err, feed.ErrFeedDecode):
		return http.StatusBadGateway, "feed_decode"
	case errors.Is(err, scoring.ErrContractViolation),
		errors.Is(err, scoring.ErrMissingFeature):
		return http.StatusBadGateway, "contract_violation"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
