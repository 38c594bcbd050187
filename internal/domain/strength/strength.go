// Package strength decodes feed situation codes into a skater strength state.
package strength

import (
	"strconv"

	"github.com/okian/icexg/internal/domain/model"
)

// codeLength is the width of a situation code: two digits per side,
// home half first.
const codeLength = 4

// Decode maps a situation code to a strength state. Each half counts the
// goalie, so one is subtracted before comparing skaters. Malformed codes
// decode to model.StrengthUnknown; Decode never fails.
func Decode(code string) model.Strength {
	if len(code) != codeLength {
		return model.StrengthUnknown
	}
	home, err := strconv.Atoi(code[:2])
	if err != nil {
		return model.StrengthUnknown
	}
	away, err := strconv.Atoi(code[2:])
	if err != nil {
		return model.StrengthUnknown
	}
	// Atoi accepts a leading sign, which no real code carries.
	if code[0] == '+' || code[0] == '-' || code[2] == '+' || code[2] == '-' {
		return model.StrengthUnknown
	}

	home, away = home-1, away-1
	switch {
	case home == away:
		return model.StrengthEven
	case home > away:
		return model.StrengthPowerPlay
	default:
		return model.StrengthShortHanded
	}
}

// DecodePtr is Decode for an optional code.
func DecodePtr(code *string) model.Strength {
	if code == nil {
		return model.StrengthUnknown
	}
	return Decode(*code)
}
