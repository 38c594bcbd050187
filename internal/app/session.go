package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/icexg/internal/adapters/repository"
	"github.com/okian/icexg/internal/domain/features"
	"github.com/okian/icexg/internal/domain/ledger"
	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/scoring"
	"github.com/okian/icexg/internal/domain/types"
	"github.com/okian/icexg/pkg/logger"
	"github.com/okian/icexg/pkg/metrics"
)

var tracer = otel.Tracer("github.com/okian/icexg/internal/app")

// FeedSource fetches game snapshots.
type FeedSource interface {
	FetchGame(ctx context.Context, gameID string) (model.GameSnapshot, error)
}

// Publisher receives every non-empty batch a session produces.
type Publisher interface {
	Publish(ctx context.Context, batch model.Batch)
}

// SessionOption applies a configuration option to a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(l logger.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionLedger replaces the default in-memory ledger.
func WithSessionLedger(l ledger.Ledger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithSessionPublisher forwards batches to p.
func WithSessionPublisher(p Publisher) SessionOption {
	return func(s *Session) {
		s.publisher = p
	}
}

// Session polls one game. It owns the game's ledger and scored table; Poll
// and Reset are serialized.
type Session struct {
	mu        sync.Mutex
	gameID    string
	feed      FeedSource
	gateway   scoring.Gateway
	ledger    ledger.Ledger
	table     repository.Table
	publisher Publisher
	logger    logger.Logger

	meta     model.GameMeta
	lastPoll time.Time
	closed   bool
}

// NewSession creates a session for gameID.
func NewSession(gameID string, feed FeedSource, gateway scoring.Gateway, table repository.Table, opts ...SessionOption) *Session {
	s := &Session{
		gameID:  gameID,
		feed:    feed,
		gateway: gateway,
		table:   table,
		logger:  logger.Discard(),
		meta:    model.GameMeta{GameID: gameID},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = ledger.New()
	}
	s.logger = s.logger.With(logger.String("game_id", gameID))
	return s
}

// GameID returns the polled game.
func (s *Session) GameID() string { return s.gameID }

// Poll fetches the game, scores plays never seen before and merges them into
// the table. Plays are committed to the ledger only once their rows are
// scored and stored; any failure leaves the ledger as it was, so retrying
// reproduces the same set of new plays.
func (s *Session) Poll(ctx context.Context) (batch model.Batch, err error) {
	const op = "session.Poll"

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Batch{}, fmt.Errorf("%s: %w", op, ErrSessionClosed)
	}

	pollID := uuid.NewString()
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("game.id", s.gameID),
		attribute.String("poll.id", pollID),
	))
	start := time.Now()
	outcome := metrics.OutcomeEmpty
	defer func() {
		if err != nil {
			outcome = metrics.OutcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		_ = metrics.RecordPoll(outcome, float64(time.Since(start).Milliseconds()))
		span.End()
	}()

	snap, err := s.feed.FetchGame(ctx, s.gameID)
	if err != nil {
		s.logger.Warn(ctx, "fetch failed", logger.String("poll_id", pollID), logger.Error(err))
		return model.Batch{}, fmt.Errorf("%s: %w", op, err)
	}

	fresh := s.ledger.FilterNew(snap.Plays)
	metrics.RecordEventsFiltered(len(fresh), len(snap.Plays)-len(fresh))
	span.SetAttributes(attribute.Int("plays.total", len(snap.Plays)), attribute.Int("plays.new", len(fresh)))

	batch = model.Batch{PollID: pollID, GameID: s.gameID, NewEvents: len(fresh), Rows: []model.ScoredRow{}, Meta: snap.Meta()}
	if len(fresh) == 0 {
		s.finish(snap)
		return batch, nil
	}

	rows := features.Extract(fresh, snap)
	metrics.RecordRowsExtracted(len(rows))
	keys := ledger.Keys(fresh)
	if len(rows) == 0 {
		// Nothing here can ever produce a row.
		s.ledger.Commit(keys)
		s.finish(snap)
		return batch, nil
	}

	tag := ""
	if info, aerr := s.gateway.Active(); aerr == nil {
		batch.Model = info.Model
		tag = modelTag(info)
	}
	scored, err := scoring.Score(ctx, s.gateway, rows)
	if err != nil {
		s.logger.Warn(ctx, "scoring failed",
			logger.String("poll_id", pollID),
			logger.Int("rows", len(rows)),
			logger.Error(err),
		)
		return model.Batch{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.table.SetModel(ctx, tag); err != nil {
		return model.Batch{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.table.Merge(ctx, scored); err != nil {
		return model.Batch{}, fmt.Errorf("%s: merge: %w", op, err)
	}

	s.ledger.Commit(keys)
	metrics.RecordRowsCommitted(len(scored))
	s.finish(snap)

	outcome = metrics.OutcomeScored
	batch.Rows = scored
	s.logger.Info(ctx, "poll scored",
		logger.String("poll_id", pollID),
		logger.Int("new_events", len(fresh)),
		logger.Int("rows", len(scored)),
		logger.String("model", batch.Model),
	)
	if s.publisher != nil {
		s.publisher.Publish(ctx, batch)
	}
	return batch, nil
}

// finish records the state of a successful poll. Callers hold mu.
func (s *Session) finish(snap model.GameSnapshot) {
	s.meta = snap.Meta()
	s.lastPoll = time.Now()
	metrics.UpdateLedgerEntries(s.gameID, int(s.ledger.Size()))
}

// Reset clears the ledger and the table, so the next poll re-emits every
// qualifying play.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Reset()
	metrics.UpdateLedgerEntries(s.gameID, 0)
	if err := s.table.Reset(ctx); err != nil {
		return fmt.Errorf("session.Reset: %w", err)
	}
	s.meta = model.GameMeta{GameID: s.gameID}
	s.lastPoll = time.Time{}
	s.logger.Info(ctx, "session reset")
	return nil
}

// restore reconciles a table that outlived its ledger. Rows stamped with
// another model are dropped so the next poll scores every play again;
// otherwise their plays are committed and never scored twice.
func (s *Session) restore(ctx context.Context) error {
	const op = "session.restore"

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.table.Rows(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil
	}
	stored, err := s.table.Model(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	current := ""
	if info, aerr := s.gateway.Active(); aerr == nil {
		current = modelTag(info)
	}

	if stored != current {
		if err := s.table.Reset(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		s.logger.Info(ctx, "stored rows discarded",
			logger.String("stored_model", stored),
			logger.String("active_model", current),
			logger.Int("rows", len(rows)),
		)
		return nil
	}

	keys := make([]string, len(rows))
	for i, r := range rows {
		keys[i] = r.EventID
	}
	s.ledger.Commit(keys)
	metrics.UpdateLedgerEntries(s.gameID, int(s.ledger.Size()))
	metrics.UpdateTableRows(s.gameID, len(rows))
	s.logger.Info(ctx, "session restored", logger.Int("rows", len(rows)), logger.String("model", stored))
	return nil
}

// close resets the session and refuses further polls. A poll already
// running finishes first.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.ledger.Reset()
}

// Rows returns the accumulated scored table.
func (s *Session) Rows(ctx context.Context) ([]model.ScoredRow, error) {
	return s.table.Rows(ctx)
}

// Summary returns xG and goals per side.
func (s *Session) Summary(ctx context.Context) (types.Summary, error) {
	return s.table.Summary(ctx)
}

// Meta returns the header of the last successful poll.
func (s *Session) Meta() model.GameMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// LastPoll returns when the last successful poll finished.
func (s *Session) LastPoll() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPoll
}

// modelTag identifies a model and version for stamping tables.
func modelTag(info scoring.ModelInfo) string {
	return info.Workspace + "/" + info.Model + "@" + info.Version
}

// LedgerSize returns the number of committed plays.
func (s *Session) LedgerSize() int64 {
	return s.ledger.Size()
}
