// Package service manages per-game polling sessions and the model they are
// scored with. It implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/okian/icexg/internal/adapters/mq/queue"
	"github.com/okian/icexg/internal/adapters/mq/worker"
	"github.com/okian/icexg/internal/adapters/repository"
	"github.com/okian/icexg/internal/domain/ledger"
	"github.com/okian/icexg/internal/domain/model"
	"github.com/okian/icexg/internal/domain/scoring"
	"github.com/okian/icexg/internal/domain/types"
	"github.com/okian/icexg/pkg/logger"
	"github.com/okian/icexg/pkg/metrics"
)

const systemMetricsInterval = 15 * time.Second

// LiveSource lists games on the scoreboard.
type LiveSource interface {
	LiveGames(ctx context.Context) ([]model.LiveGame, error)
}

// Service owns one session per game. All sessions share the feed, the
// scoring gateway and the table store.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	tracked  map[string]struct{}

	feed      FeedSource
	live      LiveSource
	gateway   scoring.Gateway
	store     repository.Store
	publisher Publisher

	// Auto polling
	autoPollInterval time.Duration
	pollTimeout      time.Duration
	workerCount      int
	queueSize        int
	queue            *queue.InMemoryQueue
	pool             *worker.Pool

	ledgerCapacity int

	started   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLiveSource sets the scoreboard source.
func WithLiveSource(l LiveSource) Option {
	return func(s *Service) {
		s.live = l
	}
}

// WithStore sets the table store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher forwards scored batches of every session to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAutoPoll enables timer driven polling of tracked games.
func WithAutoPoll(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.autoPollInterval = interval
		}
	}
}

// WithPollTimeout bounds each automatic poll.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollTimeout = d
		}
	}
}

// WithWorkerCount sets the number of auto poll workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the auto poll queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLedgerCapacity presizes each session ledger.
func WithLedgerCapacity(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.ledgerCapacity = n
		}
	}
}

// New constructs a Service.
func New(feed FeedSource, gateway scoring.Gateway, opts ...Option) *Service {
	s := &Service{
		sessions:    make(map[string]*Session),
		tracked:     make(map[string]struct{}),
		feed:        feed,
		gateway:     gateway,
		workerCount: runtime.NumCPU(),
		queueSize:   64,
		pollTimeout: 10 * time.Second,
		stopCh:      make(chan struct{}),
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if l, ok := feed.(LiveSource); ok && s.live == nil {
		s.live = l
	}
	return s
}

// Start launches the auto poll workers and the background metric loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting session service...")

	if s.autoPollInterval > 0 {
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		s.pool = worker.NewPool(s.workerCount, s.queue, s,
			worker.WithLogger(s.logger.Named("worker")),
			worker.WithPollTimeout(s.pollTimeout),
		)
		s.pool.Start(ctx)

		s.wg.Add(1)
		go s.runScheduler(ctx)
	}

	s.wg.Add(1)
	go s.runSystemMetrics(ctx)

	s.started = true
	s.logger.Info(ctx, "session service started",
		logger.Duration("auto_poll_interval", s.autoPollInterval),
		logger.Int("workers", s.workerCount),
	)
	return nil
}

// Stop shuts down background work and closes the store. It is safe to call
// on a service that was never started.
func (s *Service) Stop() {
	ctx := context.Background()

	s.mu.Lock()
	started := s.started
	if started {
		s.started = false
		close(s.stopCh)
	}
	pool := s.pool
	s.mu.Unlock()

	if started {
		s.logger.Info(ctx, "stopping session service...")
		if pool != nil {
			_ = pool.Shutdown(ctx)
		}
		s.wg.Wait()
	}
	s.closeOnce.Do(func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error(ctx, "error closing table store", logger.Error(err))
		}
	})
	if started {
		s.logger.Info(ctx, "session service stopped")
	}
}

func (s *Service) runScheduler(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.autoPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.enqueueTracked(ctx)
		}
	}
}

func (s *Service) enqueueTracked(ctx context.Context) {
	for _, id := range s.Tracked() {
		err := s.queue.Enqueue(ctx, queue.PollRequest{GameID: id})
		switch {
		case err == nil:
		case errors.Is(err, queue.ErrDuplicate):
			s.logger.Debug(ctx, "poll already pending", logger.String("game_id", id))
		default:
			s.logger.Warn(ctx, "auto poll not queued", logger.String("game_id", id), logger.Error(err))
		}
	}
}

func (s *Service) runSystemMetrics(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	update := func() {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		metrics.UpdateSystemMemoryUsage(m.Alloc)
		metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	}
	update()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			update()
		}
	}
}

// session returns the session for gameID, creating it on first use. A new
// session is reconciled with rows the store kept from an earlier run.
func (s *Service) session(ctx context.Context, gameID string) (*Session, error) {
	if !model.ValidGameID(gameID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}

	s.mu.RLock()
	sess, ok := s.sessions[gameID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[gameID]; ok {
		return sess, nil
	}
	opts := []SessionOption{
		WithSessionLogger(s.logger.Named("session")),
		WithSessionPublisher(s.publisher),
	}
	if s.ledgerCapacity > 0 {
		opts = append(opts, WithSessionLedger(ledger.New(ledger.WithCapacity(s.ledgerCapacity))))
	}
	sess = NewSession(gameID, s.feed, s.gateway, s.store.Table(gameID), opts...)
	if err := sess.restore(ctx); err != nil {
		return nil, err
	}
	s.sessions[gameID] = sess
	metrics.UpdateSessionsActive(len(s.sessions))
	return sess, nil
}

// existing returns the session for gameID without creating one.
func (s *Service) existing(gameID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[gameID]
	return sess, ok
}

// lookup returns the session for gameID. A session is only created when
// the store already holds rows for the game.
func (s *Service) lookup(ctx context.Context, gameID string) (*Session, bool, error) {
	if !model.ValidGameID(gameID) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}
	if sess, ok := s.existing(gameID); ok {
		return sess, true, nil
	}
	has, err := s.store.Has(ctx, gameID)
	if err != nil || !has {
		return nil, false, err
	}
	sess, err := s.session(ctx, gameID)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Poll runs one poll of gameID.
func (s *Service) Poll(ctx context.Context, gameID string) (model.Batch, error) {
	sess, err := s.session(ctx, gameID)
	if err != nil {
		return model.Batch{}, err
	}
	return sess.Poll(ctx)
}

// ResetSession clears the ledger and table of gameID. Unknown games are a
// no-op.
func (s *Service) ResetSession(ctx context.Context, gameID string) error {
	sess, ok, err := s.lookup(ctx, gameID)
	if err != nil || !ok {
		return err
	}
	return sess.Reset(ctx)
}

// Table returns the scored rows of gameID; empty for games never polled.
func (s *Service) Table(ctx context.Context, gameID string) ([]model.ScoredRow, error) {
	sess, ok, err := s.lookup(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.ScoredRow{}, nil
	}
	rows, err := sess.Rows(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.ScoredRow{}
	}
	return rows, nil
}

// Summary returns xG against goals for gameID.
func (s *Service) Summary(ctx context.Context, gameID string) (types.Summary, error) {
	sess, ok, err := s.lookup(ctx, gameID)
	if err != nil {
		return types.Summary{}, err
	}
	if !ok {
		return types.Summary{GameID: gameID}, nil
	}
	return sess.Summary(ctx)
}

// Meta returns the last known header of gameID.
func (s *Service) Meta(gameID string) (model.GameMeta, bool) {
	sess, ok := s.existing(gameID)
	if !ok {
		return model.GameMeta{}, false
	}
	return sess.Meta(), true
}

// SelectModel switches the scoring model. On success every session is
// reset, so tables never mix probabilities from two models.
func (s *Service) SelectModel(ctx context.Context, req scoring.ModelRequest) (scoring.ModelInfo, error) {
	info, err := s.gateway.SelectModel(ctx, req)
	metrics.RecordModelChange(req.Model, err == nil)
	if err != nil {
		s.logger.Warn(ctx, "model change failed", logger.String("model", req.Model), logger.Error(err))
		return scoring.ModelInfo{}, err
	}

	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	var errs []error
	for _, sess := range sessions {
		if err := sess.Reset(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.logger.Info(ctx, "model changed",
		logger.String("model", info.Model),
		logger.String("version", info.Version),
		logger.Int("sessions_reset", len(sessions)),
	)
	return info, errors.Join(errs...)
}

// ActiveModel returns the model currently used for scoring.
func (s *Service) ActiveModel() (scoring.ModelInfo, error) {
	return s.gateway.Active()
}

// ModelLogs returns the model server logs when the gateway exposes them.
func (s *Service) ModelLogs(ctx context.Context) ([]string, error) {
	src, ok := s.gateway.(scoring.LogSource)
	if !ok {
		return nil, ErrLogsUnsupported
	}
	return src.Logs(ctx)
}

// LiveGames lists scoreboard games. Failures degrade to an empty list.
func (s *Service) LiveGames(ctx context.Context) []model.LiveGame {
	if s.live == nil {
		return []model.LiveGame{}
	}
	games, err := s.live.LiveGames(ctx)
	if err != nil {
		s.logger.Warn(ctx, "live games unavailable", logger.Error(err))
		metrics.RecordErrorByComponent("feed", "scoreboard")
		return []model.LiveGame{}
	}
	live := 0
	for _, g := range games {
		if g.IsLive() {
			live++
		}
	}
	metrics.UpdateLiveGames(live)
	if games == nil {
		games = []model.LiveGame{}
	}
	return games
}

// Track adds gameID to the auto poll set.
func (s *Service) Track(ctx context.Context, gameID string) error {
	if s.autoPollInterval <= 0 {
		return ErrAutoPollDisabled
	}
	if !model.ValidGameID(gameID) {
		return fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}
	s.mu.Lock()
	s.tracked[gameID] = struct{}{}
	s.mu.Unlock()
	s.logger.Info(ctx, "tracking game", logger.String("game_id", gameID))
	return nil
}

// Untrack removes gameID from the auto poll set.
func (s *Service) Untrack(ctx context.Context, gameID string) {
	s.mu.Lock()
	delete(s.tracked, gameID)
	s.mu.Unlock()
	s.logger.Info(ctx, "untracked game", logger.String("game_id", gameID))
}

// Tracked lists auto polled games in sorted order.
func (s *Service) Tracked() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tracked))
	for id := range s.tracked {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Drop forgets a game entirely: its session, its tracking and its stored
// table. A poll already running on the game finishes before the table is
// dropped and nothing is merged afterwards.
func (s *Service) Drop(ctx context.Context, gameID string) error {
	if !model.ValidGameID(gameID) {
		return fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[gameID]; ok {
		sess.close()
		delete(s.sessions, gameID)
	}
	delete(s.tracked, gameID)
	metrics.UpdateSessionsActive(len(s.sessions))
	if err := s.store.Drop(ctx, gameID); err != nil {
		return fmt.Errorf("drop %s: %w", gameID, err)
	}
	metrics.ForgetSession(gameID)
	s.logger.Info(ctx, "game dropped", logger.String("game_id", gameID))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	stats := types.Stats{
		Sessions:    len(s.sessions),
		LedgerSizes: make(map[string]int64, len(s.sessions)),
	}
	for id, sess := range s.sessions {
		stats.LedgerSizes[id] = sess.LedgerSize()
	}
	q := s.queue
	s.mu.RUnlock()

	stats.Tracked = s.Tracked()
	if info, err := s.gateway.Active(); err == nil {
		stats.Model = info.Model
	}
	if q != nil {
		stats.QueueSize = q.Len()
	}
	if c, ok := s.publisher.(interface{ Clients() int }); ok {
		stats.StreamPeers = c.Clients()
	}
	return stats
}
