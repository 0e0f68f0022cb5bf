// Package lock provides per-account mutual exclusion backed by a shared Redis
// coordination store. At most one balance-mutating operation per account number
// is in flight at a time, across every process sharing the store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "balance:lock:"

var (
	// ErrAcquisitionFailed means the lock was held by someone else for the whole
	// wait window. The guarded operation was never attempted.
	ErrAcquisitionFailed = errors.New("lock: acquisition timed out")

	// ErrServiceUnavailable means the coordination store could not be reached.
	// This is never treated as "lock granted": the caller must fail the
	// operation rather than proceed unguarded.
	ErrServiceUnavailable = errors.New("lock: coordination store unavailable")
)

var (
	acquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "balance_lock_acquisitions_total",
		Help: "Lock acquisition attempts by outcome",
	}, []string{"outcome"})

	acquisitionWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "balance_lock_wait_seconds",
		Help:    "Time spent waiting for the per-account lock",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})
)

// Config bounds lock acquisition and holding.
//
// WaitTimeout is how long Acquire keeps retrying before giving up. LeaseTimeout
// is how long the lock survives without an explicit release; it must be sized
// well above the worst-case hold (validation + mutation + audit write) so the
// lock cannot expire under a live holder.
type Config struct {
	WaitTimeout  time.Duration
	LeaseTimeout time.Duration
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		WaitTimeout:  time.Second,
		LeaseTimeout: 15 * time.Second,
		RetryDelay:   100 * time.Millisecond,
	}
}

// Manager acquires and releases per-account locks. The Redis client is
// injected; the manager owns no connection lifecycle of its own.
type Manager struct {
	rs     *redsync.Redsync
	cfg    Config
	logger *zap.Logger
}

func NewManager(client redis.UniversalClient, cfg Config, logger *zap.Logger) *Manager {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultConfig().WaitTimeout
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = DefaultConfig().LeaseTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig().RetryDelay
	}

	return &Manager{
		rs:     redsync.New(goredis.NewPool(client)),
		cfg:    cfg,
		logger: logger,
	}
}

// Key derives the coordination-store key for an account number. Deterministic:
// two operations on the same account always contend on the same key.
func Key(accountNumber string) string {
	return keyPrefix + accountNumber
}

// Handle identifies one successful acquisition. Only the holder's token can
// release the underlying mutex, so a handle outliving its lease cannot release
// a lock someone else has since acquired.
type Handle struct {
	mutex  *redsync.Mutex
	logger *zap.Logger
}

// Acquire blocks up to the configured wait timeout trying to obtain exclusive
// ownership of the account's lock. The lock auto-expires after the lease even
// if never released, so a crashed holder cannot wedge the account.
//
// Contention for the whole wait window returns ErrAcquisitionFailed. A store
// that cannot be reached returns ErrServiceUnavailable; execution never
// proceeds as if the lock had been granted.
func (m *Manager) Acquire(ctx context.Context, accountNumber string) (*Handle, error) {
	tries := int(m.cfg.WaitTimeout/m.cfg.RetryDelay) + 1

	mutex := m.rs.NewMutex(
		Key(accountNumber),
		redsync.WithExpiry(m.cfg.LeaseTimeout),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(m.cfg.RetryDelay),
	)

	m.logger.Debug("acquiring account lock", zap.String("account_number", accountNumber))

	start := time.Now()
	err := mutex.LockContext(ctx)
	acquisitionWait.Observe(time.Since(start).Seconds())

	if err != nil {
		if isContention(err) {
			acquisitionsTotal.WithLabelValues("timeout").Inc()
			m.logger.Warn("account lock acquisition timed out",
				zap.String("account_number", accountNumber),
				zap.Duration("waited", time.Since(start)))
			return nil, fmt.Errorf("%w: account %s", ErrAcquisitionFailed, accountNumber)
		}

		acquisitionsTotal.WithLabelValues("unavailable").Inc()
		m.logger.Error("lock coordination store unreachable",
			zap.String("account_number", accountNumber), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	acquisitionsTotal.WithLabelValues("acquired").Inc()

	return &Handle{mutex: mutex, logger: m.logger}, nil
}

// Release is a best-effort idempotent release. Releasing an already-expired or
// already-released handle is not an error worth failing a request over, so
// problems are logged and swallowed.
func (h *Handle) Release(ctx context.Context) {
	if h == nil || h.mutex == nil {
		return
	}

	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		h.logger.Warn("lock release failed", zap.String("key", h.mutex.Name()), zap.Error(err))
		return
	}
	if !ok {
		h.logger.Warn("lock was not held at release, lease may have expired", zap.String("key", h.mutex.Name()))
	}
}

// isContention distinguishes "someone else holds the lock" from infrastructure
// failure. redsync reports contention as ErrFailed or a node-level ErrTaken.
func isContention(err error) bool {
	if errors.Is(err, redsync.ErrFailed) {
		return true
	}

	var taken *redsync.ErrTaken
	if errors.As(err, &taken) {
		return true
	}

	return strings.Contains(err.Error(), "lock already taken")
}
