package airquality

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// RefreshChannel is the PostgreSQL notification channel announcing
// committed upserts. The payload is the number of rows changed.
const RefreshChannel = "air_quality_refreshed"

// NotificationConn is a dedicated connection that can subscribe to channels.
type NotificationConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Release()
}

// Invalidator drops cached aggregates.
type Invalidator interface {
	InvalidateCache() uint64
}

// InvalidationListenerConfig holds configuration for an InvalidationListener.
type InvalidationListenerConfig struct {
	// Acquire returns a connection for the subscription. See PoolNotifications.
	Acquire func(ctx context.Context) (NotificationConn, error)

	// Target is invalidated on every notification, usually a *Service.
	Target Invalidator

	Logger zerolog.Logger

	// InitialInterval and MaxInterval bound the reconnect backoff
	// (defaults: 1s and 1m).
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// InvalidationListener keeps a process's aggregate cache in step with
// upserts committed by other processes sharing the same database.
type InvalidationListener struct {
	acquire         func(ctx context.Context) (NotificationConn, error)
	target          Invalidator
	logger          zerolog.Logger
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewInvalidationListener creates a new listener.
func NewInvalidationListener(cfg InvalidationListenerConfig) *InvalidationListener {
	initial := cfg.InitialInterval
	if initial <= 0 {
		initial = time.Second
	}
	maxInterval := cfg.MaxInterval
	if maxInterval <= 0 {
		maxInterval = time.Minute
	}
	return &InvalidationListener{
		acquire:         cfg.Acquire,
		target:          cfg.Target,
		logger:          cfg.Logger.With().Str("channel", RefreshChannel).Logger(),
		initialInterval: initial,
		maxInterval:     maxInterval,
	}
}

// PoolNotifications acquires subscription connections from pool.
func PoolNotifications(pool *pgxpool.Pool) func(ctx context.Context) (NotificationConn, error) {
	return func(ctx context.Context) (NotificationConn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return poolConn{conn: conn}, nil
	}
}

type poolConn struct {
	conn *pgxpool.Conn
}

func (c poolConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c poolConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	return c.conn.Conn().WaitForNotification(ctx)
}

func (c poolConn) Release() {
	c.conn.Release()
}

// Run subscribes and invalidates the target on every notification until ctx
// is done. Lost connections are re-established with exponential backoff, and
// the target is invalidated after each subscription since notifications sent
// while disconnected are lost.
func (l *InvalidationListener) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.initialInterval
	b.MaxInterval = l.maxInterval
	b.MaxElapsedTime = 0

	for {
		err := l.listen(ctx, b)
		if ctx.Err() != nil {
			return
		}

		wait := b.NextBackOff()
		l.logger.Warn().Err(err).Dur("retry_in", wait).Msg("cache invalidation listener disconnected")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *InvalidationListener) listen(ctx context.Context, b backoff.BackOff) error {
	conn, err := l.acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer unlisten(ctx, conn)

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{RefreshChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	b.Reset()
	l.target.InvalidateCache()
	l.logger.Info().Msg("listening for refresh notifications")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		gen := l.target.InvalidateCache()
		l.logger.Debug().
			Str("payload", n.Payload).
			Uint64("generation", gen).
			Msg("store changed by another process")
	}
}

// unlisten clears the subscription before the connection goes back to the
// pool, so a later borrower does not inherit it. It runs on a fresh
// deadline because ctx is usually already cancelled here. A broken
// connection fails the UNLISTEN and is discarded by the pool on release.
func unlisten(ctx context.Context, conn NotificationConn) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, _ = conn.Exec(cleanupCtx, "UNLISTEN *")
	conn.Release()
}
