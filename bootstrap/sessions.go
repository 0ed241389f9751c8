package bootstrap

import (
	"context"
	"time"

	"github.com/aatuh/shield/health"
	"github.com/aatuh/shield/ports"
	"github.com/aatuh/shield/session"
	"github.com/aatuh/shield/session/pgstore"
)

// SessionStore is the opened store with its readiness checks and cleanup.
type SessionStore struct {
	Store  ports.SessionStore
	Checks []health.Checker
	Close  func()
}

// OpenSessionStore uses Postgres when dsn is set and memory otherwise.
// Postgres tables are created on first use and expired rows are purged
// every purgeEvery until ctx ends.
func OpenSessionStore(ctx context.Context, dsn string, purgeEvery time.Duration, log ports.Logger) (*SessionStore, error) {
	if dsn == "" {
		log.Warn("sessions: SESSION_DSN not set, using in-memory store")
		mem := session.NewMemoryStore(nil)
		return &SessionStore{
			Store:  mem,
			Checks: []health.Checker{health.SessionStoreChecker(mem)},
			Close:  func() {},
		}, nil
	}

	store, pool, err := pgstore.Open(ctx, dsn, 3*time.Second, pgstore.Options{})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	purgeCtx, cancel := context.WithCancel(ctx)
	go purgeLoop(purgeCtx, store, purgeEvery, log)

	return &SessionStore{
		Store: store,
		Checks: []health.Checker{
			health.NewChecker("postgres", pool.Ping),
			health.SessionStoreChecker(store),
		},
		Close: func() {
			cancel()
			pool.Close()
		},
	}, nil
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func purgeLoop(ctx context.Context, p purger, every time.Duration, log ports.Logger) {
	if every <= 0 {
		every = 10 * time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				log.Error("sessions: purge failed", "err", err)
				continue
			}
			if n > 0 {
				log.Debug("sessions: purged expired", "count", n)
			}
		}
	}
}
