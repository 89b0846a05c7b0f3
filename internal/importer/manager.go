// Package importer implements the import manager: the single write
// path into the hash-data, source-id, source-data and source-name
// stores, with a log header written on open and the running tally
// flushed on close.
package importer

import (
	"fmt"
	"os"
	"time"

	"github.com/i5heu/blockhashdb/internal/counters"
	"github.com/i5heu/blockhashdb/internal/diskspace"
	"github.com/i5heu/blockhashdb/internal/hashdata"
	"github.com/i5heu/blockhashdb/internal/hashindex"
	"github.com/i5heu/blockhashdb/internal/sourcedata"
	"github.com/i5heu/blockhashdb/internal/sourceid"
	"github.com/i5heu/blockhashdb/internal/sourcename"
	"github.com/sirupsen/logrus"
)

// Manager is the single write path into a database. One Manager spans
// one logical command (one CLI invocation, one import_tab call, one
// adder pass); its Tally accumulates across every call until Close
// flushes it. Manager holds no lock of its own: each store write is
// serialized only by that store's own engine mutex, so one InsertHash
// (source-id intern, hash-data upsert, prefix-index add) is not atomic
// across stores and calls on one Manager are not serialized against
// each other.
type Manager struct {
	hashes  *hashdata.Store
	index   *hashindex.Index
	sids    *sourceid.Store
	data    *sourcedata.Store
	names   *sourcename.Store
	log     *logrus.Logger
	logFile *os.File

	dir           string
	minimumFreeGB uint

	Tally counters.Tally
}

// NewManager opens a Manager over the given stores, writes a log
// header line (command + RFC3339 timestamp) into a *.log file inside
// dir, and returns the Manager ready for writes.
func NewManager(
	hashes *hashdata.Store,
	index *hashindex.Index,
	sids *sourceid.Store,
	data *sourcedata.Store,
	names *sourcename.Store,
	dir string,
	command string,
	minimumFreeGB uint,
	log *logrus.Logger,
) (*Manager, error) {
	if log == nil {
		log = logrus.New()
	}

	logPath := dir + string(os.PathSeparator) + "blockhashdb.log"
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("importer: open log %s: %w", logPath, err)
	}
	header := fmt.Sprintf("%s command=%q\n", time.Now().UTC().Format(time.RFC3339), command)
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("importer: write log header: %w", err)
	}

	return &Manager{
		hashes:        hashes,
		index:         index,
		sids:          sids,
		data:          data,
		names:         names,
		log:           log,
		logFile:       f,
		dir:           dir,
		minimumFreeGB: minimumFreeGB,
	}, nil
}

// Close writes the accumulated tally through the Manager's logrus
// logger (not into the *.log file) and closes the log file handle.
func (m *Manager) Close() error {
	m.Tally.Log(m.log)
	if m.logFile != nil {
		return m.logFile.Close()
	}
	return nil
}

// DiskSpaceOK gates writes on the configured free-space floor. A zero
// floor disables the check.
func (m *Manager) DiskSpaceOK() error {
	return diskspace.Check(m.dir, m.minimumFreeGB, m.log)
}

// InsertSourceName records one (repository, filename) pair against sid.
// Set semantics: calling it again with the same pair is a no-op.
func (m *Manager) InsertSourceName(sid uint64, repository, filename string) error {
	if err := m.DiskSpaceOK(); err != nil {
		return err
	}
	return m.names.Add(sid, repository, filename, &m.Tally)
}

// InsertSourceData records the (filesize, file_type, nonprobative_count)
// tuple for sid. When the stored tuple is already identical nothing is
// written and only source_data_same is tallied.
func (m *Manager) InsertSourceData(sid uint64, filesize uint64, fileType string, nonprobative uint64) error {
	if err := m.DiskSpaceOK(); err != nil {
		return err
	}
	return m.data.Put(sid, sourcedata.Tuple{
		Filesize:          filesize,
		FileType:          fileType,
		NonprobativeCount: nonprobative,
	}, &m.Tally)
}

// InternFileHash resolves fh to its SourceID, interning it if new.
// Exposed for callers (e.g. internal/importfmt) that need a fh's SID
// outside of an InsertHash call, such as to attach a source name.
func (m *Manager) InternFileHash(fh []byte) (uint64, error) {
	return m.sids.InternFileHash(fh, &m.Tally)
}

// InsertHash resolves fh to a SourceID (interning it if new) and
// upserts (h, sid, fo, entropy, label) into the hash-data store,
// additionally recording h into the hash-prefix negative-filter index.
// It returns the post-insert source count for h.
func (m *Manager) InsertHash(h []byte, fh []byte, fo uint64, entropy uint64, label []byte) (int, error) {
	if err := m.DiskSpaceOK(); err != nil {
		return 0, err
	}
	sid, err := m.sids.InternFileHash(fh, &m.Tally)
	if err != nil {
		return 0, fmt.Errorf("importer: intern file hash: %w", err)
	}
	count, err := m.hashes.Insert(h, sid, fo, entropy, label, &m.Tally)
	if err != nil {
		return 0, fmt.Errorf("importer: insert hash: %w", err)
	}
	if err := m.index.Add(h); err != nil {
		return 0, fmt.Errorf("importer: index hash: %w", err)
	}
	return count, nil
}
