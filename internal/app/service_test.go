package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/icexg/internal/adapters/repository"
	service "github.com/okian/icexg/internal/app"
	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		feed := newFakeFeed(shot(1, 1, 80, 10), shot(3, 2, -60, -5))
		gw := newGateway()
		pub := &recorder{}
		svc := service.New(feed, gw, service.WithPublisher(pub))

		Convey("When polling an invalid game id", func() {
			_, err := svc.Poll(ctx, "12ab")

			Convey("Then ErrInvalidGameID is returned", func() {
				So(errors.Is(err, service.ErrInvalidGameID), ShouldBeTrue)
			})
		})

		Convey("When reading a game never polled", func() {
			rows, err := svc.Table(ctx, gameID)
			So(err, ShouldBeNil)
			sum, err := svc.Summary(ctx, gameID)
			So(err, ShouldBeNil)
			_, ok := svc.Meta(gameID)

			Convey("Then everything is empty", func() {
				So(rows, ShouldBeEmpty)
				So(sum.GameID, ShouldEqual, gameID)
				So(sum.Rows, ShouldEqual, 0)
				So(ok, ShouldBeFalse)
				So(svc.ResetSession(ctx, gameID), ShouldBeNil)
			})
		})

		Convey("When a game is polled", func() {
			batch, err := svc.Poll(ctx, gameID)
			So(err, ShouldBeNil)
			So(batch.Rows, ShouldHaveLength, 2)

			Convey("Then the table and summary reflect it", func() {
				rows, err := svc.Table(ctx, gameID)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				sum, err := svc.Summary(ctx, gameID)
				So(err, ShouldBeNil)
				So(sum.Rows, ShouldEqual, 2)
				So(sum.HomeXG, ShouldBeGreaterThan, 0)
				So(sum.AwayXG, ShouldBeGreaterThan, 0)
			})

			Convey("Then stats list the session", func() {
				stats := svc.GetStats()
				So(stats.Sessions, ShouldEqual, 1)
				So(stats.LedgerSizes[gameID], ShouldEqual, 2)
				So(stats.Model, ShouldEqual, scoring.ModelDistance)
				So(stats.StreamPeers, ShouldEqual, 3)
			})

			Convey("And the model changes", func() {
				info, err := svc.SelectModel(ctx, scoring.ModelRequest{Model: scoring.ModelAngle, Version: "latest"})
				So(err, ShouldBeNil)

				Convey("Then every session starts over", func() {
					So(info.Model, ShouldEqual, scoring.ModelAngle)
					rows, _ := svc.Table(ctx, gameID)
					So(rows, ShouldBeEmpty)
					again, err := svc.Poll(ctx, gameID)
					So(err, ShouldBeNil)
					So(again.Rows, ShouldHaveLength, 2)
					So(again.Model, ShouldEqual, scoring.ModelAngle)
				})
			})

			Convey("And an unknown model is requested", func() {
				_, err := svc.SelectModel(ctx, scoring.ModelRequest{Model: "shot_type"})

				Convey("Then the active model and the table are kept", func() {
					So(errors.Is(err, scoring.ErrUnknownModel), ShouldBeTrue)
					active, err := svc.ActiveModel()
					So(err, ShouldBeNil)
					So(active.Model, ShouldEqual, scoring.ModelDistance)
					rows, _ := svc.Table(ctx, gameID)
					So(rows, ShouldHaveLength, 2)
				})
			})

			Convey("And the game is dropped", func() {
				So(svc.Drop(ctx, gameID), ShouldBeNil)

				Convey("Then the session is gone", func() {
					So(svc.GetStats().Sessions, ShouldEqual, 0)
					rows, _ := svc.Table(ctx, gameID)
					So(rows, ShouldBeEmpty)
				})

				Convey("Then the next poll starts from scratch", func() {
					again, err := svc.Poll(ctx, gameID)
					So(err, ShouldBeNil)
					So(again.Rows, ShouldHaveLength, 2)
					So(svc.GetStats().Sessions, ShouldEqual, 1)
				})
			})
		})

		Convey("When an invalid game is dropped", func() {
			err := svc.Drop(ctx, "x")

			Convey("Then ErrInvalidGameID is returned", func() {
				So(errors.Is(err, service.ErrInvalidGameID), ShouldBeTrue)
			})
		})

		Convey("When model logs are requested from a plain gateway", func() {
			_, err := svc.ModelLogs(ctx)

			Convey("Then ErrLogsUnsupported is returned", func() {
				So(errors.Is(err, service.ErrLogsUnsupported), ShouldBeTrue)
			})
		})

		Convey("When tracking without auto polling", func() {
			err := svc.Track(ctx, gameID)

			Convey("Then ErrAutoPollDisabled is returned", func() {
				So(errors.Is(err, service.ErrAutoPollDisabled), ShouldBeTrue)
			})
		})
	})
}

func TestServiceRestoresStoredTable(t *testing.T) {
	Convey("Given a game scored under the distance model in a SQLite file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "icexg.db")
		feed := newFakeFeed(shot(1, 1, 80, 10), shot(3, 2, -60, -5))

		first, err := repository.OpenSQLiteStore(path)
		So(err, ShouldBeNil)
		before := service.New(feed, newGateway(), service.WithStore(first))
		batch, err := before.Poll(ctx, gameID)
		So(err, ShouldBeNil)
		So(batch.Rows, ShouldHaveLength, 2)
		before.Stop()

		reopen := func() repository.Store {
			s, err := repository.OpenSQLiteStore(path)
			So(err, ShouldBeNil)
			return s
		}

		Convey("When the service restarts with the same model", func() {
			svc := service.New(feed, newGateway(), service.WithStore(reopen()))
			defer svc.Stop()

			Convey("Then the stored rows are served before any poll", func() {
				rows, err := svc.Table(ctx, gameID)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(*rows[0].GoalProb, ShouldEqual, *batch.Rows[0].GoalProb)

				Convey("And the next poll does not score them again", func() {
					again, err := svc.Poll(ctx, gameID)
					So(err, ShouldBeNil)
					So(again.NewEvents, ShouldEqual, 0)
					So(again.Rows, ShouldBeEmpty)
					So(svc.GetStats().LedgerSizes[gameID], ShouldEqual, 2)
				})
			})
		})

		Convey("When the service restarts with another model", func() {
			gw := scoring.NewInMemoryScorer(scoring.WithInitialModel(scoring.ModelAngle))
			svc := service.New(feed, gw, service.WithStore(reopen()))
			defer svc.Stop()

			Convey("Then rows from the previous model are not served", func() {
				rows, err := svc.Table(ctx, gameID)
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
			})

			Convey("Then the next poll rescores every shot and the table matches it", func() {
				again, err := svc.Poll(ctx, gameID)
				So(err, ShouldBeNil)
				So(again.Model, ShouldEqual, scoring.ModelAngle)
				So(again.Rows, ShouldHaveLength, 2)

				rows, err := svc.Table(ctx, gameID)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				for i := range rows {
					So(rows[i].EventID, ShouldEqual, again.Rows[i].EventID)
					So(*rows[i].GoalProb, ShouldEqual, *again.Rows[i].GoalProb)
				}
			})
		})

		Convey("When the game is dropped after a restart", func() {
			svc := service.New(feed, newGateway(), service.WithStore(reopen()))
			defer svc.Stop()
			So(svc.Drop(ctx, gameID), ShouldBeNil)

			Convey("Then the stored rows are gone", func() {
				rows, err := svc.Table(ctx, gameID)
				So(err, ShouldBeNil)
				So(rows, ShouldBeEmpty)
				again, err := svc.Poll(ctx, gameID)
				So(err, ShouldBeNil)
				So(again.Rows, ShouldHaveLength, 2)
			})
		})
	})
}

func TestServiceModelLogs(t *testing.T) {
	Convey("Given a gateway exposing logs", t, func() {
		svc := service.New(newFakeFeed(), loggingGateway{newGateway()})

		Convey("Then the logs are returned", func() {
			lines, err := svc.ModelLogs(context.Background())
			So(err, ShouldBeNil)
			So(lines, ShouldResemble, []string{"loaded distance"})
		})
	})
}

func TestServiceLiveGames(t *testing.T) {
	Convey("Given a feed with a scoreboard", t, func() {
		ctx := context.Background()
		feed := newFakeFeed()
		feed.live = []model.LiveGame{
			{ID: 2024020500, State: "LIVE", HomeTeam: "MTL", AwayTeam: "BOS"},
			{ID: 2024020501, State: "FUT", HomeTeam: "TOR", AwayTeam: "OTT"},
		}
		svc := service.New(feed, newGateway())

		Convey("When the scoreboard is reachable", func() {
			games := svc.LiveGames(ctx)

			Convey("Then every game is listed", func() {
				So(games, ShouldHaveLength, 2)
				So(games[0].IsLive(), ShouldBeTrue)
			})
		})

		Convey("When the scoreboard fails", func() {
			feed.fail(errors.New("503"))
			games := svc.LiveGames(ctx)

			Convey("Then the list is empty", func() {
				So(games, ShouldNotBeNil)
				So(games, ShouldBeEmpty)
			})
		})
	})
}

func TestServiceAutoPoll(t *testing.T) {
	Convey("Given a service with auto polling", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		feed := newFakeFeed(shot(1, 1, 80, 10))
		pub := &recorder{}
		svc := service.New(feed, newGateway(),
			service.WithPublisher(pub),
			service.WithAutoPoll(10*time.Millisecond),
			service.WithWorkerCount(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a game is tracked", func() {
			So(svc.Track(ctx, gameID), ShouldBeNil)
			So(svc.Tracked(), ShouldResemble, []string{gameID})

			Convey("Then it is polled without a request", func() {
				deadline := time.Now().Add(2 * time.Second)
				for pub.count() == 0 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(pub.count(), ShouldEqual, 1)
				rows, err := svc.Table(ctx, gameID)
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 1)
			})

			Convey("And untracked", func() {
				svc.Untrack(ctx, gameID)
				So(svc.Tracked(), ShouldBeEmpty)
			})
		})
	})
}
