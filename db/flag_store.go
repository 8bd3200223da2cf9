// Package db persists breach notification flags and alert event history in
// PostgreSQL. Flags back the alert ladder's compare-and-set contract; event
// history is written asynchronously and is strictly best effort.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"propguard/alert"
	"propguard/metrics"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	defaultQueueSize         = 512
	defaultBatchSize         = 32
	defaultFlushInterval     = 200 * time.Millisecond
	defaultMaxRetries        = 5
	defaultBackoffBase       = 150 * time.Millisecond
	defaultBackoffCap        = 3 * time.Second
	defaultDrainTimeout      = 30 * time.Second
	defaultOperationDeadline = 10 * time.Second
	defaultEventLimit        = 50
)

// StoredEvent is one alert event row as read back from history.
type StoredEvent struct {
	TraceID    string           `json:"trace_id"`
	AccountID  string           `json:"account_id"`
	Metric     alert.MetricKind `json:"metric"`
	Threshold  int              `json:"threshold"`
	Severity   alert.Severity   `json:"severity"`
	UsedPct    float64          `json:"used_pct"`
	Remaining  float64          `json:"remaining"`
	RecordedAt time.Time        `json:"recorded_at"`
}

type eventRequest struct {
	event    alert.Event
	traceID  string
	recorded time.Time
}

// FlagStore is the PostgreSQL-backed implementation of alert.FlagStore. Flag
// transitions are synchronous and atomic; event history writes go through a
// buffered queue with batched flushes and retry.
type FlagStore struct {
	pool *pgxpool.Pool

	queue chan eventRequest
	wg    sync.WaitGroup

	queueSize     int
	batchSize     int
	flushInterval time.Duration
	maxRetries    int
	backoffBase   time.Duration
	backoffCap    time.Duration
	drainTimeout  time.Duration

	// mu serializes producers against the queue close: RecordEvent sends
	// under the read lock, Close flips closing and closes the channel under
	// the write lock, so no send can race past the closing check.
	mu            sync.RWMutex
	closing       atomic.Bool
	closeOnce     sync.Once
	poolCloseOnce sync.Once
}

// NewFlagStore applies migrations, connects the pool, and starts the event
// history worker. On failure the caller can fall back to the in-memory store.
func NewFlagStore(connURL string) (*FlagStore, error) {
	if strings.TrimSpace(connURL) == "" {
		return nil, errors.New("empty db connection string")
	}

	if err := runMigrations(connURL); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &FlagStore{
		pool:          pool,
		queueSize:     defaultQueueSize,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		maxRetries:    defaultMaxRetries,
		backoffBase:   defaultBackoffBase,
		backoffCap:    defaultBackoffCap,
		drainTimeout:  defaultDrainTimeout,
	}

	store.startWorker()
	return store, nil
}

// Get reports whether the notification flag for key is currently set. A row
// that was never written counts as unset.
func (s *FlagStore) Get(ctx context.Context, key alert.FlagKey) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	execCtx, cancel := context.WithTimeout(ctx, defaultOperationDeadline)
	defer cancel()

	const query = `
		SELECT notified FROM breach_flags
		WHERE account_id = $1 AND metric = $2 AND threshold = $3
	`

	var notified bool
	err := s.pool.QueryRow(execCtx, query, key.AccountID, string(key.Metric), key.Threshold).Scan(&notified)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		metrics.IncFlagStoreErrors(key.AccountID)
		return false, fmt.Errorf("read flag %s: %w", key, err)
	}
	return notified, nil
}

// CompareAndSet transitions the flag from expected to next and reports
// whether this call won the transition. A degenerate transition where
// expected equals next never wins. The conditional UPDATE is what serializes
// concurrent observers: exactly one of them sees rows-affected of one.
func (s *FlagStore) CompareAndSet(ctx context.Context, key alert.FlagKey, expected, next bool) (bool, error) {
	if expected == next {
		return false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	execCtx, cancel := context.WithTimeout(ctx, defaultOperationDeadline)
	defer cancel()

	// Materialize the row as unset first so the very first crossing has
	// something to compare against.
	const ensureSQL = `
		INSERT INTO breach_flags (account_id, metric, threshold, notified, updated_at)
		VALUES ($1, $2, $3, FALSE, NOW())
		ON CONFLICT (account_id, metric, threshold) DO NOTHING
	`
	if _, err := s.pool.Exec(execCtx, ensureSQL, key.AccountID, string(key.Metric), key.Threshold); err != nil {
		metrics.IncFlagStoreErrors(key.AccountID)
		return false, fmt.Errorf("ensure flag row %s: %w", key, err)
	}

	const casSQL = `
		UPDATE breach_flags
		SET notified = $4, updated_at = NOW()
		WHERE account_id = $1 AND metric = $2 AND threshold = $3 AND notified = $5
	`
	tag, err := s.pool.Exec(execCtx, casSQL, key.AccountID, string(key.Metric), key.Threshold, next, expected)
	if err != nil {
		metrics.IncFlagStoreErrors(key.AccountID)
		return false, fmt.Errorf("flag transition %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordEvent buffers an alert event for history. Writes are best effort:
// when the queue is full the event is dropped with a log line rather than
// blocking the ladder evaluation.
func (s *FlagStore) RecordEvent(event alert.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closing.Load() {
		return
	}

	req := eventRequest{
		event:    event,
		traceID:  uuid.NewString(),
		recorded: time.Now().UTC(),
	}

	select {
	case s.queue <- req:
	default:
		metrics.IncFlagPersistenceFailures(event.AccountID)
		log.Printf("⚠️  alert event queue full, dropping event (account=%s, tag=%s)", event.AccountID, event.Tag())
	}
}

// Events returns the most recent alert events for an account, newest first.
// A non-positive limit falls back to the default page size.
func (s *FlagStore) Events(ctx context.Context, accountID string, limit int) ([]StoredEvent, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	execCtx, cancel := context.WithTimeout(ctx, defaultOperationDeadline)
	defer cancel()

	const query = `
		SELECT trace_id, account_id, metric, threshold, severity, used_pct, remaining, recorded_at
		FROM alert_events
		WHERE account_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(execCtx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alert events: %w", err)
	}
	defer rows.Close()

	events := make([]StoredEvent, 0, limit)
	for rows.Next() {
		var ev StoredEvent
		var metric, severity string
		if err := rows.Scan(&ev.TraceID, &ev.AccountID, &metric, &ev.Threshold, &severity, &ev.UsedPct, &ev.Remaining, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan alert event: %w", err)
		}
		ev.Metric = alert.MetricKind(metric)
		ev.Severity = alert.Severity(severity)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert events: %w", err)
	}
	return events, nil
}

func (s *FlagStore) startWorker() {
	if s.queueSize <= 0 {
		s.queueSize = defaultQueueSize
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.flushInterval <= 0 {
		s.flushInterval = defaultFlushInterval
	}
	if s.maxRetries < 0 {
		s.maxRetries = defaultMaxRetries
	}
	if s.backoffBase <= 0 {
		s.backoffBase = defaultBackoffBase
	}
	if s.backoffCap <= 0 {
		s.backoffCap = defaultBackoffCap
	}
	if s.drainTimeout <= 0 {
		s.drainTimeout = defaultDrainTimeout
	}

	s.queue = make(chan eventRequest, s.queueSize)
	s.wg.Add(1)
	go s.worker()
}

func (s *FlagStore) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	buffer := make([]eventRequest, 0, s.batchSize)

	flush := func(ctx context.Context) {
		if len(buffer) == 0 {
			return
		}
		batch := append([]eventRequest(nil), buffer...)
		buffer = buffer[:0]

		start := time.Now()
		if err := s.insertBatchWithRetry(ctx, batch); err != nil {
			log.Printf("⚠️  alert event batch failed (size=%d): %v", len(batch), err)
		}
		duration := time.Since(start)
		for _, req := range batch {
			metrics.ObserveFlagPersistLatency(req.event.AccountID, duration)
		}
	}

	for {
		select {
		case req, ok := <-s.queue:
			if !ok {
				drainCtx, cancel := context.WithTimeout(context.Background(), s.drainTimeout)
				flush(drainCtx)
				cancel()
				return
			}
			buffer = append(buffer, req)
			if len(buffer) >= s.batchSize {
				flush(context.Background())
			}
		case <-ticker.C:
			flush(context.Background())
		}
	}
}

func (s *FlagStore) insertBatchWithRetry(ctx context.Context, batch []eventRequest) error {
	if len(batch) == 0 {
		return nil
	}

	for _, req := range batch {
		metrics.IncFlagPersistenceAttempts(req.event.AccountID)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if err := s.waitBackoff(ctx, attempt); err != nil {
				return err
			}
		}
		if err := s.insertBatchOnce(ctx, batch); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	for _, req := range batch {
		metrics.IncFlagPersistenceFailures(req.event.AccountID)
	}
	return lastErr
}

func (s *FlagStore) insertBatchOnce(ctx context.Context, batch []eventRequest) error {
	execCtx, cancel := context.WithTimeout(ctx, defaultOperationDeadline)
	defer cancel()

	tx, err := s.pool.BeginTx(execCtx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.Background())
		}
	}()

	const insertSQL = `
		INSERT INTO alert_events (
			trace_id,
			account_id,
			metric,
			threshold,
			severity,
			used_pct,
			remaining,
			recorded_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`

	for _, req := range batch {
		ev := req.event
		if _, err := tx.Exec(execCtx, insertSQL,
			req.traceID,
			ev.AccountID,
			string(ev.Metric),
			ev.Threshold,
			string(ev.Severity),
			ev.UsedPct,
			ev.Remaining,
			req.recorded,
		); err != nil {
			return fmt.Errorf("insert alert event: %w", err)
		}
	}

	if err := tx.Commit(execCtx); err != nil {
		return fmt.Errorf("commit alert event batch: %w", err)
	}
	committed = true
	return nil
}

func (s *FlagStore) waitBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(float64(s.backoffBase) * math.Pow(2, float64(attempt-1)))
	if backoff > s.backoffCap {
		backoff = s.backoffCap
	}
	jitter := time.Duration(rand.Float64() * float64(backoff) * 0.5)

	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close drains pending event writes and releases the pool. The context
// bounds how long to wait for the drain before aborting.
func (s *FlagStore) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing.Store(true)
		if s.queue != nil {
			close(s.queue)
		}
		s.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		s.poolCloseOnce.Do(func() {
			if s.pool != nil {
				s.pool.Close()
			}
		})
		close(done)
	}()

	select {
	case <-ctx.Done():
		s.poolCloseOnce.Do(func() {
			if s.pool != nil {
				s.pool.Close()
			}
		})
		log.Printf("❌ flag store close timed out: %v", ctx.Err())
		return ctx.Err()
	case <-done:
		return nil
	}
}

func runMigrations(connURL string) error {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if srcErr != nil {
			log.Printf("⚠️  migrate source close: %v", srcErr)
		}
		if dbErr != nil {
			log.Printf("⚠️  migrate db close: %v", dbErr)
		}
	}()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	log.Printf("✓ Database migrations applied successfully")
	return nil
}
