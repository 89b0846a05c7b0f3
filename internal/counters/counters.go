// Package counters tallies insert-policy outcomes: inserts into the
// hash-data, source-id, source-data and source-name stores are recorded
// as named outcomes (a hash-data insert records one data outcome and
// one source outcome, or only an invalid-offset outcome), never as a
// fatal error. Tally is a plain struct rather than a map[string]uint64
// because the set of outcomes is fixed and known at compile time.
package counters

import "github.com/sirupsen/logrus"

// Tally accumulates change counters for one logical run (one CLI
// invocation, one import_tab call, one adder pass). It is not safe for
// concurrent use without external synchronization; internal/importer
// increments it from inside each store's own engine write mutex, and
// those are separate mutexes, one per store.
type Tally struct {
	// Hash-data store outcomes.
	DataInserted               uint64
	DataSame                   uint64
	DataChanged                uint64
	SourceInserted             uint64
	SourceAlreadyPresent       uint64
	SourceAtMax                uint64
	HashDataInvalidFileOffset  uint64

	// Source-id interning outcomes.
	SourceIDInterned     uint64
	SourceIDAlreadyKnown uint64

	// Source-data outcomes.
	SourceDataChanged uint64
	SourceDataSame    uint64

	// Source-name outcomes.
	SourceNameInserted     uint64
	SourceNameAlreadyKnown uint64
}

// Log emits one structured log line carrying every nonzero counter as a
// field (or a single "no changes" line), the Go analogue of the
// original hashdb_changes_t::report_changes dump.
func (t *Tally) Log(log *logrus.Logger) {
	fields := logrus.Fields{}
	add := func(name string, v uint64) {
		if v != 0 {
			fields[name] = v
		}
	}
	add("data_inserted", t.DataInserted)
	add("data_same", t.DataSame)
	add("data_changed", t.DataChanged)
	add("source_inserted", t.SourceInserted)
	add("source_already_present", t.SourceAlreadyPresent)
	add("source_at_max", t.SourceAtMax)
	add("hash_data_invalid_file_offset", t.HashDataInvalidFileOffset)
	add("source_id_interned", t.SourceIDInterned)
	add("source_id_already_known", t.SourceIDAlreadyKnown)
	add("source_data_changed", t.SourceDataChanged)
	add("source_data_same", t.SourceDataSame)
	add("source_name_inserted", t.SourceNameInserted)
	add("source_name_already_known", t.SourceNameAlreadyKnown)

	if len(fields) == 0 {
		log.Info("no changes")
		return
	}
	log.WithFields(fields).Info("changes")
}
