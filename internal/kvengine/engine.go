// Package kvengine wraps a single Badger key-value environment with the
// ordered, multi-valued-key contract the hash-data store and its
// siblings are built on: an ordered byte-key to byte-data map that
// allows several values under one key, sorted byte-lexicographically,
// plus cursor-style ordered iteration across keys. Badger itself stores
// one value per key, so the multi-value behaviour is layered on top as
// a small sorted, length-prefixed frame list packed into that one
// value - see frames.go.
//
// A single write mutex serializes writers; Badger's own MVCC View
// transactions give readers a lock-free snapshot.
package kvengine

import (
	"fmt"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Options configures an Engine.
type Options struct {
	// Sync forces every write to be durable before Update returns.
	// Off by default.
	Sync bool
	// Logger receives structured open/close events. A new logrus
	// logger is created when nil.
	Logger *logrus.Logger
}

// Engine owns one Badger environment on disk.
type Engine struct {
	db  *badger.DB
	mu  sync.Mutex
	log *logrus.Logger
	dir string
}

// Open opens (creating if necessary) the Badger environment rooted at
// dir.
func Open(dir string, opts Options) (*Engine, error) {
	if dir == "" {
		return nil, fmt.Errorf("kvengine: empty directory")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kvengine: create directory %s: %w", dir, err)
	}

	bopts := badger.DefaultOptions(dir)
	bopts.Logger = nil
	bopts.SyncWrites = opts.Sync
	bopts.ValueLogFileSize = 1024 * 1024 * 100

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("kvengine: open %s: %w", dir, err)
	}

	opts.Logger.WithFields(logrus.Fields{"dir": dir}).Info("kvengine opened")
	return &Engine{db: db, log: opts.Logger, dir: dir}, nil
}

// Close flushes and releases the Badger environment.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("kvengine: close %s: %w", e.dir, err)
	}
	e.log.WithFields(logrus.Fields{"dir": e.dir}).Info("kvengine closed")
	return nil
}

// Compact syncs the environment and runs one value-log GC pass, exposed
// so the database façade (blockhashdb.DB) can drive it on a timer. It
// triggers Badger's own GC rather than reimplementing one; it does not
// flatten the LSM tree.
func (e *Engine) Compact() error {
	if err := e.db.Sync(); err != nil {
		return fmt.Errorf("kvengine: sync %s: %w", e.dir, err)
	}
	err := e.db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("kvengine: value log gc %s: %w", e.dir, err)
	}
	return nil
}

// Update runs fn inside a write transaction, serialized against every
// other writer on this Engine by mu. fn sees a Txn wrapper scoped to the
// transaction; it must not be retained past fn's return.
func (e *Engine) Update(fn func(txn *Txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Update(func(btxn *badger.Txn) error {
		return fn(&Txn{btxn: btxn})
	})
}

// View runs fn inside a read-only transaction. Readers never take mu;
// Badger's snapshot isolation is what makes that safe.
func (e *Engine) View(fn func(txn *Txn) error) error {
	return e.db.View(func(btxn *badger.Txn) error {
		return fn(&Txn{btxn: btxn})
	})
}

// Txn wraps one Badger transaction - read-write if obtained from
// Update, read-only if obtained from View. It must not outlive the
// callback it was handed to.
type Txn struct {
	btxn *badger.Txn
}
