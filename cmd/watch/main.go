package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/icexg/internal/watch"
)

// Default configuration constants.
const (
	defaultInterval = 15 * time.Second
	defaultTimeout  = 10 * time.Second
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		gameID    = flag.String("game", "", "Game id to watch (default: first live game)")
		modelName = flag.String("model", "", "Model to select before polling")
		workspace = flag.String("workspace", "", "Registry workspace for -model")
		interval  = flag.Duration("interval", defaultInterval, "Delay between polls")
		maxPolls  = flag.Int("polls", 0, "Stop after this many polls (0 runs until the game ends)")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		output    = flag.String("output", "", "Save the final table as JSON to this file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every scored row")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		watch.ShowHelp()
		return
	}

	if err := watch.SetupLogging(*logFormat, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &watch.Config{
		BaseURL:    *baseURL,
		GameID:     *gameID,
		Model:      *modelName,
		Workspace:  *workspace,
		Interval:   *interval,
		MaxPolls:   *maxPolls,
		Timeout:    *timeout,
		OutputFile: *output,
		Verbose:    *verbose,
	}
	if err := watch.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("watch failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
