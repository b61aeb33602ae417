package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Retry reasons, also used as metric labels.
const (
	ReasonConnection        = "connection"
	ReasonDeadlock          = "deadlock"
	ReasonLockWait          = "lock_wait"
	ReasonSerialization     = "serialization"
	ReasonPreparedStatement = "prepared_statement"
)

// RetryPolicy bounds how often a transient failure is retried.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when no policy is supplied.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
}

// Gateway owns the database handle and runs units of work against it,
// retrying transient failures.
type Gateway struct {
	mu     sync.RWMutex
	db     *gorm.DB
	open   func() (*gorm.DB, error)
	logger *zap.Logger
	policy RetryPolicy
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithOpener sets the function used to recreate the pool after it was poisoned.
func WithOpener(open func() (*gorm.DB, error)) Option {
	return func(g *Gateway) {
		g.open = open
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(g *Gateway) {
		if policy.MaxAttempts == 0 {
			policy.MaxAttempts = 1
		}
		g.policy = policy
	}
}

// NewGateway wraps db.
func NewGateway(db *gorm.DB, opts ...Option) *Gateway {
	g := &Gateway{
		db:     db,
		logger: zap.NewNop(),
		policy: DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DB returns the current handle.
func (g *Gateway) DB() *gorm.DB {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.db
}

// Repos returns repositories bound to the current handle, outside any
// transaction and without retry.
func (g *Gateway) Repos() *Repositories {
	return NewRepositories(g.DB())
}

// Transaction runs fn in a single database transaction. Transient failures
// roll back and the whole of fn runs again, so fn must not have side effects
// outside the database. Errors returned by fn that are not transient are
// returned unchanged after rollback.
func (g *Gateway) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return g.run(ctx, "transaction", func(db *gorm.DB) error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(NewRepositories(tx))
		})
	})
}

// Do runs fn outside a transaction with the same retry policy.
func (g *Gateway) Do(ctx context.Context, fn func(repos *Repositories) error) error {
	return g.run(ctx, "do", func(db *gorm.DB) error {
		return fn(NewRepositories(db.WithContext(ctx)))
	})
}

func (g *Gateway) run(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.policy.InitialInterval
	b.MaxInterval = g.policy.MaxInterval

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(g.DB())
		if err == nil {
			return struct{}{}, nil
		}

		reason, transient := Classify(err)
		if !transient {
			return struct{}{}, backoff.Permanent(err)
		}

		metrics.GatewayRetries.WithLabelValues(reason).Inc()
		g.logger.Warn("transient database error",
			zap.String("op", op),
			zap.String("reason", reason),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if reason == ReasonPreparedStatement {
			g.reconnect()
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(g.policy.MaxAttempts))

	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	if _, transient := Classify(err); transient {
		g.logger.Error("database retries exhausted",
			zap.String("op", op),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return apierrors.ErrTransient
	}
	return err
}

// reconnect swaps in a fresh pool. Without an opener the pool is kept.
func (g *Gateway) reconnect() {
	if g.open == nil {
		return
	}

	fresh, err := g.open()
	if err != nil {
		g.logger.Error("failed to recreate database pool", zap.Error(err))
		return
	}

	g.mu.Lock()
	old := g.db
	g.db = fresh
	g.mu.Unlock()

	if sqlDB, err := old.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			g.logger.Warn("failed to close poisoned pool", zap.Error(err))
		}
	}
	g.logger.Info("database pool recreated")
}

// Classify reports whether err is a transient database failure and why.
func Classify(err error) (reason string, transient bool) {
	if err == nil {
		return "", false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return ReasonConnection, true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1213:
			return ReasonDeadlock, true
		case 1205:
			return ReasonLockWait, true
		}
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001":
			return ReasonSerialization, true
		case pgErr.Code == "40P01":
			return ReasonDeadlock, true
		case pgErr.Code == "42P05":
			return ReasonPreparedStatement, true
		case strings.HasPrefix(pgErr.Code, "08"):
			return ReasonConnection, true
		}
		return "", false
	}

	if pgconn.SafeToRetry(err) {
		return ReasonConnection, true
	}
	return "", false
}
