package openr

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
)

// Record is the unit of replication: one version of one key in one Area.
// It is the Go shape of the "Value record" from the data model -- version,
// originator, the opaque value payload, and the two liveness hints the
// core carries but never interprets.
type Record struct {
	Version      uint64 `json:"version"`
	OriginatorID string `json:"originatorId"`
	Value        []byte `json:"value,omitempty"`
	HasValue     bool   `json:"hasValue"`
	TTL          uint64 `json:"ttl,omitempty"`
	TTLVersion   uint64 `json:"ttlVersion,omitempty"`

	// Fingerprint carries the full record's Hash() when Value has been
	// stripped for a hash-only dump (AreaDb.DumpHashes). Zero when unset,
	// meaning the record's own Hash() (computed over the Value field as
	// populated) is authoritative.
	Fingerprint Hash `json:"fingerprint,omitempty"`
}

// NewRecord builds a Record carrying a value. A nil value is still a
// "has value" record with an empty byte string; use Tombstone for the
// absent case.
func NewRecord(version uint64, originatorID string, value []byte) Record {
	return Record{
		Version:      version,
		OriginatorID: originatorID,
		Value:        value,
		HasValue:     true,
	}
}

// Tombstone builds a Record with no value -- the core does not garbage
// collect these, it only ever compares and stores them like any other
// record.
func Tombstone(version uint64, originatorID string) Record {
	return Record{
		Version:      version,
		OriginatorID: originatorID,
		HasValue:     false,
	}
}

// Hash is the deterministic fingerprint over (version, originatorId,
// value) that 3-way sync exchanges in place of full records. Two records
// hash equal if and only if they are equal under Dominates (the rule
// itself, §4.1 point 4, guarantees this).
type Hash [md5.Size]byte

func (record Record) Hash() Hash {
	var buf bytes.Buffer
	var versionBytes [8]byte

	binary.BigEndian.PutUint64(versionBytes[:], record.Version)

	buf.Write(versionBytes[:])
	buf.WriteString(record.OriginatorID)

	if record.HasValue {
		buf.WriteByte(1)
		buf.Write(record.Value)
	} else {
		buf.WriteByte(0)
	}

	return md5.Sum(buf.Bytes())
}

// EffectiveHash returns Fingerprint if the record carries one (i.e. it
// came from a hash-only dump with its Value already stripped), otherwise
// it computes Hash() fresh. Sync diffing always compares EffectiveHash so
// it doesn't matter whether either side is holding a full or a
// hash-only record.
func (record Record) EffectiveHash() Hash {
	var zero Hash

	if record.Fingerprint != zero {
		return record.Fingerprint
	}

	return record.Hash()
}

// compareValue implements rule 3 of the dominance order: lexicographic
// comparison over bytes, with an absent value treated as smaller than any
// present value (including the empty byte string).
func compareValue(a, b Record) int {
	if a.HasValue != b.HasValue {
		if !a.HasValue {
			return -1
		}

		return 1
	}

	if !a.HasValue {
		return 0
	}

	return bytes.Compare(a.Value, b.Value)
}

// Dominates reports whether `record` dominates `other` under the total
// order from §4.1: larger version wins; ties broken by originator id
// (lexicographically larger wins); remaining ties broken by value. Exact
// equality on all three dominates nothing -- see Equal.
func (record Record) Dominates(other Record) bool {
	if record.Version != other.Version {
		return record.Version > other.Version
	}

	if record.OriginatorID != other.OriginatorID {
		return record.OriginatorID > other.OriginatorID
	}

	return compareValue(record, other) > 0
}

// Equal reports whether two records are indistinguishable under the
// dominance order -- neither dominates the other.
func (record Record) Equal(other Record) bool {
	return record.Version == other.Version &&
		record.OriginatorID == other.OriginatorID &&
		compareValue(record, other) == 0
}
