package openr

import "strings"

// AreaDb is the per-area in-memory map of key to versioned record. It
// applies the dominance rule from record.go on every write and never
// deletes an entry on its own -- per the Lifecycles note in the data
// model, entries are created on first accepted write and mutated only by
// further accepted writes.
//
// AreaDb is not safe for concurrent use by itself; the Store facade's run
// loop is the only writer and reader, per the concurrency model.
type AreaDb struct {
	records map[string]Record
}

// NewAreaDb returns an empty per-area database.
func NewAreaDb() *AreaDb {
	return &AreaDb{records: make(map[string]Record)}
}

// Set applies the dominance rule: incoming replaces the stored record
// (or is stored for the first time) iff it dominates whatever is
// currently there. Returns whether it was accepted.
func (db *AreaDb) Set(key string, incoming Record) bool {
	current, exists := db.records[key]

	if exists && !incoming.Dominates(current) {
		return false
	}

	db.records[key] = incoming

	return true
}

// Get returns the stored record for key, if any.
func (db *AreaDb) Get(key string) (Record, bool) {
	record, ok := db.records[key]

	return record, ok
}

// DumpFilter narrows Dump to a subset of the area (DumpHashes takes a
// key prefix only). A zero-value
// filter matches everything. Prefix and OriginatorID are independent
// constraints; both must match when both are set.
type DumpFilter struct {
	Prefix       string
	OriginatorID string
}

func (filter DumpFilter) matches(key string, record Record) bool {
	if filter.Prefix != "" && !strings.HasPrefix(key, filter.Prefix) {
		return false
	}

	if filter.OriginatorID != "" && record.OriginatorID != filter.OriginatorID {
		return false
	}

	return true
}

// Dump enumerates all records matching filter, full value included.
func (db *AreaDb) Dump(filter DumpFilter) map[string]Record {
	result := make(map[string]Record)

	for key, record := range db.records {
		if filter.matches(key, record) {
			result[key] = record
		}
	}

	return result
}

// DumpHashes is the same enumeration as Dump but with the value payload
// stripped -- this is what the responder side of 3-way sync sends back so
// the requester can diff without shipping bytes it might already have.
func (db *AreaDb) DumpHashes(prefix string) map[string]Record {
	result := make(map[string]Record)

	for key, record := range db.records {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}

		stripped := record
		stripped.Fingerprint = record.Hash()
		stripped.Value = nil

		result[key] = stripped
	}

	return result
}

// DumpSelfOriginated returns the subset of records this node itself
// produced.
func (db *AreaDb) DumpSelfOriginated(selfNodeID string) map[string]Record {
	return db.Dump(DumpFilter{OriginatorID: selfNodeID})
}

// Merge applies the dominance rule to every entry in delta and returns the
// subset that was accepted -- the set downstream flooding and publication
// need, since a rejected entry has no observable effect.
func (db *AreaDb) Merge(delta map[string]Record) map[string]Record {
	accepted := make(map[string]Record)

	for key, record := range delta {
		if db.Set(key, record) {
			accepted[key] = record
		}
	}

	return accepted
}

// Size returns the number of keys currently stored, for summaries and
// tests.
func (db *AreaDb) Size() int {
	return len(db.records)
}
