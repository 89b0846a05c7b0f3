// Package blockhashdb is a content-addressed block-hash database: it
// maps fixed-size block hashes to the set of (file, offset) locations
// they were observed at, with capped source-reference growth and
// set-algebra operations for combining databases.
package blockhashdb

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/i5heu/blockhashdb/internal/hashdata"
	"github.com/i5heu/blockhashdb/internal/hashindex"
	"github.com/i5heu/blockhashdb/internal/importer"
	"github.com/i5heu/blockhashdb/internal/kvengine"
	"github.com/i5heu/blockhashdb/internal/scanner"
	"github.com/i5heu/blockhashdb/internal/settings"
	"github.com/i5heu/blockhashdb/internal/sourcedata"
	"github.com/i5heu/blockhashdb/internal/sourceid"
	"github.com/i5heu/blockhashdb/internal/sourcename"
	"github.com/sirupsen/logrus"
)

// Config configures Open and Create.
type Config struct {
	Path                      string
	MinimumFreeGB             uint
	GarbageCollectionInterval time.Duration
	Logger                    *logrus.Logger
}

// CreateOptions configures Create, which also lays down a fresh
// settings file.
type CreateOptions struct {
	SectorSize           uint64
	BlockSize            uint64
	MaxSourceOffsetPairs uint64
	HashPrefixBits       int
	HashSuffixBytes      int
	HashLen              int
}

// DB is the top-level database handle, gluing every store together
// behind one Importer and one Scanner. Each store owns its own Badger
// environment in its own subdirectory, so their keyspaces can never
// collide with one another.
type DB struct {
	engs     []*kvengine.Engine
	settings settings.Settings
	importer *importer.Manager
	scanner  *scanner.Manager
	log      *logrus.Logger
	stop     chan struct{}
}

// Create initializes a brand-new database directory: writes the
// settings file, then opens it.
func Create(cfg Config, opts CreateOptions) (*DB, error) {
	s := settings.Default(opts.HashLen)
	if opts.SectorSize != 0 {
		s.SectorSize = opts.SectorSize
	}
	if opts.BlockSize != 0 {
		s.BlockSize = opts.BlockSize
	}
	s.MaxSourceOffsetPairs = opts.MaxSourceOffsetPairs
	if opts.HashPrefixBits != 0 {
		s.HashPrefixBits = opts.HashPrefixBits
	}
	if opts.HashSuffixBytes != 0 {
		s.HashSuffixBytes = opts.HashSuffixBytes
	}
	s.MinimumFreeGB = cfg.MinimumFreeGB

	if err := settings.Create(cfg.Path, s); err != nil {
		return nil, fmt.Errorf("blockhashdb: create: %w", err)
	}
	return Open(cfg)
}

// Open opens an already-created database directory.
func Open(cfg Config) (*DB, error) {
	s, err := settings.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("blockhashdb: open: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}

	hashDataEng, err := kvengine.Open(filepath.Join(cfg.Path, "lmdb_hash_data_store"), kvengine.Options{Logger: log})
	if err != nil {
		return nil, fmt.Errorf("blockhashdb: open hash-data engine: %w", err)
	}
	hashEng, err := kvengine.Open(filepath.Join(cfg.Path, "lmdb_hash_store"), kvengine.Options{Logger: log})
	if err != nil {
		hashDataEng.Close()
		return nil, fmt.Errorf("blockhashdb: open hash-prefix engine: %w", err)
	}
	sourceIDEng, err := kvengine.Open(filepath.Join(cfg.Path, "lmdb_source_id_store"), kvengine.Options{Logger: log})
	if err != nil {
		hashDataEng.Close()
		hashEng.Close()
		return nil, fmt.Errorf("blockhashdb: open source-id engine: %w", err)
	}
	sourceDataEng, err := kvengine.Open(filepath.Join(cfg.Path, "lmdb_source_data_store"), kvengine.Options{Logger: log})
	if err != nil {
		hashDataEng.Close()
		hashEng.Close()
		sourceIDEng.Close()
		return nil, fmt.Errorf("blockhashdb: open source-data engine: %w", err)
	}
	sourceNameEng, err := kvengine.Open(filepath.Join(cfg.Path, "lmdb_source_name_store"), kvengine.Options{Logger: log})
	if err != nil {
		hashDataEng.Close()
		hashEng.Close()
		sourceIDEng.Close()
		sourceDataEng.Close()
		return nil, fmt.Errorf("blockhashdb: open source-name engine: %w", err)
	}
	engs := []*kvengine.Engine{hashDataEng, hashEng, sourceIDEng, sourceDataEng, sourceNameEng}

	hashes := hashdata.Open(hashDataEng, s.MaxSourceOffsetPairs, s.SectorSize)
	idx := hashindex.Open(hashEng, s.HashPrefixBits, s.HashSuffixBytes)
	sids := sourceid.Open(sourceIDEng)
	data := sourcedata.Open(sourceDataEng)
	names := sourcename.Open(sourceNameEng)

	im, err := importer.NewManager(hashes, idx, sids, data, names, cfg.Path, "open", s.MinimumFreeGB, log)
	if err != nil {
		for _, e := range engs {
			e.Close()
		}
		return nil, fmt.Errorf("blockhashdb: open importer: %w", err)
	}

	db := &DB{
		engs:     engs,
		settings: s,
		importer: im,
		scanner:  scanner.NewManager(hashes, idx, sids, data, names),
		log:      log,
		stop:     make(chan struct{}),
	}

	if cfg.GarbageCollectionInterval > 0 {
		go db.runGarbageCollection(cfg.GarbageCollectionInterval)
	}

	return db, nil
}

// Close flushes the importer's tally and closes every store's engine.
func (db *DB) Close() error {
	close(db.stop)
	if err := db.importer.Close(); err != nil {
		return err
	}
	var firstErr error
	for _, e := range db.engs {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Importer returns the database's single write path.
func (db *DB) Importer() *importer.Manager { return db.importer }

// Scanner returns the database's read-only query path.
func (db *DB) Scanner() *scanner.Manager { return db.scanner }

// Settings returns the database's immutable settings record.
func (db *DB) Settings() settings.Settings { return db.settings }

func (db *DB) runGarbageCollection(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stop:
			return
		case <-ticker.C:
			for _, e := range db.engs {
				if err := e.Compact(); err != nil {
					db.log.WithError(err).Warn("garbage collection failed")
				}
			}
		}
	}
}
