package store

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// badgerLogger adapts zerolog to BadgerDB's Logger interface.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error().Msg(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprintf(format, args...))
}

// openBadger opens the durable tier. Returns nil when cfg selects local-only
// mode or the database cannot be opened; the caller keeps serving from memory.
func openBadger(cfg Config, log zerolog.Logger) *badger.DB {
	if cfg.Dir == "" && !cfg.InMemory {
		log.Warn().Msg("no data dir configured, running in local-only mode")
		return nil
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithLogger(badgerLogger{log: log})
	db, err := badger.Open(opts)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.Dir).Msg("badger open failed, running in local-only mode")
		return nil
	}
	return db
}

// runGC runs value log garbage collection until stop is closed.
func runGC(db *badger.DB, interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			// Repeat while GC makes progress; ErrNoRewrite ends the round.
			for db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}
