package watch

import (
	"fmt"
	"os"

	"github.com/okian/icexg/pkg/logger"
)

// SetupLogging initializes the global logger in the given format.
func SetupLogging(format string, verbose bool) error {
	if err := logger.InitWithFormat(os.Stdout, format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the watch tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`icexg watch
===========

Polls one game through a running icexg service and reports new shots with
their goal probabilities and the running expected goals per side.

Usage:
  go run ./cmd/watch [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -game string
        Game id to watch (default: first live game on the scoreboard)
  -model string
        Model to select before polling: distance, angle_from_net, distance_angle
  -workspace string
        Registry workspace for -model
  -interval duration
        Delay between polls (default 15s)
  -polls int
        Stop after this many polls (default 0, until the game ends)
  -timeout duration
        HTTP request timeout (default 10s)
  -output string
        Save the final table as JSON to this file
  -log-format string
        text or json (default "text")
  -verbose
        Log every scored row
  -help
        Show this help message

Examples:
  # Watch the first live game
  go run ./cmd/watch

  # Watch a game with the two-feature model and keep the table
  go run ./cmd/watch -game 2024020500 -model distance_angle -output table.json
`)
}
