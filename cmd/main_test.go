package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/okian/icexg/internal/config"
	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const playByPlay = `{
  "id": 2024020001,
  "gameState": "LIVE",
  "homeTeam": {"id": 10, "commonName": {"default": "Canadiens"}, "abbrev": "MTL", "score": 1},
  "awayTeam": {"id": 20, "commonName": {"default": "Bruins"}, "abbrev": "BOS", "score": 0},
  "plays": [
    {"eventId": 5, "typeDescKey": "faceoff", "situationCode": "1551"},
    {"eventId": 9, "typeDescKey": "goal", "periodDescriptor": {"number": 1, "periodType": "REG"}, "situationCode": "1551",
     "details": {"eventOwnerTeamId": 10, "scoringPlayerId": 1, "goalieInNetId": 2, "xCoord": 80, "yCoord": 10}},
    {"eventId": 11, "typeDescKey": "shot-on-goal", "periodDescriptor": {"number": 1, "periodType": "REG"}, "situationCode": "1551",
     "details": {"eventOwnerTeamId": 20, "shootingPlayerId": 3, "goalieInNetId": 4, "xCoord": -60, "yCoord": 0}}
  ]
}`

func feedServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/scoreboard/now" {
			_, _ = w.Write([]byte(`{"gamesByDate": []}`))
			return
		}
		_, _ = w.Write([]byte(playByPlay))
	}))
}

func gatewayServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		var rows []map[string]float64
		_ = json.NewDecoder(r.Body).Decode(&rows)
		preds := make([]float64, len(rows))
		for i := range preds {
			preds[i] = 0.25
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"predictions": preds})
	})
	return httptest.NewServer(mux)
}

func TestBuild(t *testing.T) {
	convey.Convey("Given a feed, a model server and a config pointing at them", t, func() {
		fsrv := feedServer()
		defer fsrv.Close()
		gsrv := gatewayServer()
		defer gsrv.Close()

		cfg := config.New()
		cfg.FeedBaseURL = fsrv.URL
		cfg.GatewayURL = gsrv.URL
		cfg.FeedRatePerSec = 100

		convey.Convey("When the service graph is built with the memory store", func() {
			c, err := build(cfg, logger.Discard())
			convey.So(err, convey.ShouldBeNil)
			defer c.svc.Stop()

			convey.Convey("Then a poll over HTTP scores both shots", func() {
				rec := httptest.NewRecorder()
				c.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/games/2024020001/poll", nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)

				var batch model.Batch
				convey.So(json.Unmarshal(rec.Body.Bytes(), &batch), convey.ShouldBeNil)
				convey.So(batch.NewEvents, convey.ShouldEqual, 3)
				convey.So(batch.Rows, convey.ShouldHaveLength, 2)
				convey.So(*batch.Rows[0].GoalProb, convey.ShouldEqual, 0.25)
				convey.So(batch.Meta.HomeTeam, convey.ShouldEqual, "Canadiens")
			})

			convey.Convey("Then a second poll finds nothing new", func() {
				for range 2 {
					rec := httptest.NewRecorder()
					c.mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/games/2024020001/poll", nil))
					convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				}
				rows, err := c.svc.Table(context.Background(), "2024020001")
				convey.So(err, convey.ShouldBeNil)
				convey.So(rows, convey.ShouldHaveLength, 2)
			})
		})

		convey.Convey("When the sqlite store and local scoring are selected", func() {
			cfg.GatewayURL = ""
			cfg.TableStore = config.StoreSQLite
			cfg.SQLitePath = filepath.Join(t.TempDir(), "xg.db")
			c, err := build(cfg, logger.Discard())
			convey.So(err, convey.ShouldBeNil)
			defer c.svc.Stop()

			convey.Convey("Then polled rows are persisted", func() {
				_, err := c.svc.Poll(context.Background(), "2024020001")
				convey.So(err, convey.ShouldBeNil)
				sum, err := c.svc.Summary(context.Background(), "2024020001")
				convey.So(err, convey.ShouldBeNil)
				convey.So(sum.Rows, convey.ShouldEqual, 2)
				convey.So(sum.HomeGoals, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the configured model is unknown to the gateway client", func() {
			cfg.Model = "rebound"
			_, err := build(cfg, logger.Discard())

			convey.Convey("Then build fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
