package watch_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/types"
	"github.com/okian/icexg/internal/watch"
	"github.com/okian/icexg/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeService answers the routes the watcher uses. The game turns final on
// the third poll.
type fakeService struct {
	mu       sync.Mutex
	polls    int
	models   []string
	live     []model.LiveGame
	pollCode int
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# HELP up\n"))
	})
	mux.HandleFunc("GET /live", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"games": f.live})
	})
	mux.HandleFunc("POST /model", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.models = append(f.models, req.Model)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success", "model": req.Model})
	})
	mux.HandleFunc("POST /games/{id}/poll", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		n := f.polls
		code := f.pollCode
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "feed_unavailable", "message": "down"})
			return
		}
		state := "LIVE"
		if n >= 3 {
			state = "OFF"
		}
		p := 0.2
		batch := model.Batch{
			PollID:    "p",
			GameID:    r.PathValue("id"),
			NewEvents: 1,
			Rows:      []model.ScoredRow{{FeatureRow: model.FeatureRow{EventID: "e"}, GoalProb: &p}},
			Meta:      model.GameMeta{GameID: r.PathValue("id"), GameState: state, HomeTeam: "MTL", AwayTeam: "BOS"},
		}
		_ = json.NewEncoder(w).Encode(batch)
	})
	mux.HandleFunc("GET /games/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(types.Summary{GameID: r.PathValue("id"), HomeXG: 0.6})
	})
	mux.HandleFunc("GET /games/{id}/table", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"game_id": r.PathValue("id"), "rows": []any{map[string]any{"event_id": "e"}}})
	})
	return mux
}

func (f *fakeService) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func TestRun(t *testing.T) {
	_ = logger.InitWithFormat(io.Discard, "text")

	Convey("Given a running service with one live game", t, func() {
		fake := &fakeService{live: []model.LiveGame{
			{ID: 2024020001, State: "FUT"},
			{ID: 2024020002, State: "LIVE"},
		}}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()
		out := filepath.Join(t.TempDir(), "out", "table.json")
		cfg := &watch.Config{
			BaseURL:    srv.URL,
			Model:      "distance_angle",
			Interval:   5 * time.Millisecond,
			Timeout:    time.Second,
			OutputFile: out,
			Verbose:    true,
		}

		Convey("When watching without a game id", func() {
			err := watch.Run(context.Background(), cfg)

			Convey("Then the live game is polled until it is final", func() {
				So(err, ShouldBeNil)
				So(fake.pollCount(), ShouldEqual, 3)
				So(fake.models, ShouldResemble, []string{"distance_angle"})
			})

			Convey("Then the table is saved", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, `"game_id": "2024020002"`)
			})
		})

		Convey("When a poll limit is set", func() {
			cfg.MaxPolls = 1
			cfg.OutputFile = ""
			So(watch.Run(context.Background(), cfg), ShouldBeNil)

			Convey("Then it stops after that many polls", func() {
				So(fake.pollCount(), ShouldEqual, 1)
			})
		})

		Convey("When polls fail", func() {
			fake.pollCode = http.StatusBadGateway
			cfg.MaxPolls = 2
			cfg.OutputFile = ""

			Convey("Then the watcher keeps going", func() {
				So(watch.Run(context.Background(), cfg), ShouldBeNil)
				So(fake.pollCount(), ShouldEqual, 2)
			})
		})

		Convey("When nothing is live", func() {
			fake.live = nil
			err := watch.Run(context.Background(), cfg)

			Convey("Then ErrNoLiveGame is returned", func() {
				So(errors.Is(err, watch.ErrNoLiveGame), ShouldBeTrue)
			})
		})
	})
}

func TestRunCanceled(t *testing.T) {
	_ = logger.InitWithFormat(io.Discard, "text")

	Convey("Given a watcher on a game that never ends", t, func() {
		fake := &fakeService{}
		srv := httptest.NewServer(fake.handler())
		defer srv.Close()

		Convey("When the context is canceled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			err := watch.Run(ctx, &watch.Config{
				BaseURL:  srv.URL,
				GameID:   "2024020001",
				Interval: time.Hour,
				Timeout:  time.Second,
			})

			Convey("Then it returns cleanly after the first poll", func() {
				So(err, ShouldBeNil)
				So(fake.pollCount(), ShouldEqual, 1)
			})
		})
	})
}
