package openr

// SyncDiff is the result of comparing a local hash-only dump against a
// peer's hash-only dump for the same area -- §4.3 step 2's three sets,
// minus `tied` (which is implicit: anything not in either set).
type SyncDiff struct {
	// NeedFromPeer is the set of keys where the peer's record dominates,
	// or the key is absent locally. The requester should fetch these.
	NeedFromPeer []string

	// GiveToPeer is the set of keys where the local record dominates.
	// The requester should push these to the peer.
	GiveToPeer []string
}

// computeSyncDiff compares localHashes (this node's hash-only dump)
// against peerHashes (the peer's hash-only dump) and partitions the
// union of their keys per §4.3 step 2.
//
// Ambiguous tie: if both sides have an entry for a key with the same
// (version, originator_id) but different value hash -- which the data
// model does not expect under a well-behaved originator, since version
// is meant to be assigned monotonically by a single writer, but which
// is not otherwise excluded -- the key is placed in both sets. This
// ships slightly more than the theoretical minimum for that key, but
// guarantees both sides exchange full records and let AreaDb.Set's real
// Dominates comparison (which has the actual bytes) pick the winner,
// rather than this diff silently dropping one side's record on a
// mis-detected tie.
func computeSyncDiff(localHashes, peerHashes map[string]Record) SyncDiff {
	var diff SyncDiff

	for key, local := range localHashes {
		peer, ok := peerHashes[key]

		if !ok {
			diff.GiveToPeer = append(diff.GiveToPeer, key)
			continue
		}

		if local.EffectiveHash() == peer.EffectiveHash() {
			continue
		}

		switch {
		case local.Version == peer.Version && local.OriginatorID == peer.OriginatorID:
			diff.NeedFromPeer = append(diff.NeedFromPeer, key)
			diff.GiveToPeer = append(diff.GiveToPeer, key)
		case local.Dominates(peer):
			diff.GiveToPeer = append(diff.GiveToPeer, key)
		default:
			diff.NeedFromPeer = append(diff.NeedFromPeer, key)
		}
	}

	for key := range peerHashes {
		if _, ok := localHashes[key]; !ok {
			diff.NeedFromPeer = append(diff.NeedFromPeer, key)
		}
	}

	return diff
}

// SyncKeyVals implements the Store façade's sync_key_vals operation --
// the responder side of a single-round-trip bulk reconciliation. Given
// the caller's hash-only dump of an area, it returns the full records
// from db that the caller should take: everything this side's diff
// against theirHashes would place in GiveToPeer, expressed as full
// records rather than hashes.
//
// This collapses what §4.3 describes as two logical round trips (dump
// hashes, then diff-and-fetch) into one: the same deterministic diff
// function computes each side's pull set independently and consistently,
// since dominance is a total order both sides evaluate the same way
// over the same (hash-identical) inputs.
func SyncKeyVals(db *AreaDb, prefix string, theirHashes map[string]Record) map[string]Record {
	ourHashes := db.DumpHashes(prefix)
	diff := computeSyncDiff(ourHashes, theirHashes)

	result := make(map[string]Record, len(diff.GiveToPeer))

	for _, key := range diff.GiveToPeer {
		if record, ok := db.Get(key); ok {
			result[key] = record
		}
	}

	return result
}

// syncOutcome is what runFullSync reports back to its caller so the
// Store façade can drive counters and the peer's state transition.
type syncOutcome struct {
	peerName string
	success  bool
	accepted map[string]Record
}

// runFullSync drives one complete 3-way reconciliation against the peer
// reached through capability, merging whatever the peer sends into db
// and pushing whatever db has that the peer lacks. It takes no PeerTable
// -- the caller (Store's run loop) applies OnSyncResponse/OnTransportError
// and flooding once this returns, and the Store passes a private snapshot
// as db, keeping all live PeerTable/AreaDb mutation on the single
// run-loop goroutine per the concurrency model.
//
// Sequence (requester R = this node, responder P = the peer):
//  1. R calls P.DumpHashes(area) -> peerHashes.
//  2. R computes diff := computeSyncDiff(db.DumpHashes(area), peerHashes).
//  3. R calls P.SyncKeyVals(area, db.DumpHashes(area)) -> recordsFromPeer,
//     which by construction is P's view of diff.NeedFromPeer (P computes
//     the same diff from its side and returns what R should take).
//  4. R merges recordsFromPeer into db locally.
//  5. R sends db's GiveToPeer records to P via P.SetKeyVals, tagged with
//     R's own node id as sender so P does not re-flood them back to R.
//
// Any RPC failure at any step aborts the session and reports success =
// false; records already merged in step 4 stay merged (monotone, so
// safe per §4.3's completion note) even though the session as a whole
// is reported failed.
func runFullSync(db *AreaDb, area string, selfID string, capability syncCapability, prefix string) syncOutcome {
	peerHashes, err := capability.DumpHashes(area, prefix)

	if err != nil {
		log.Warningf("full sync in area %s: dump hashes failed: %v", area, err)
		return syncOutcome{success: false}
	}

	localHashes := db.DumpHashes(prefix)
	diff := computeSyncDiff(localHashes, peerHashes)

	recordsFromPeer, err := capability.SyncKeyVals(area, localHashes)

	if err != nil {
		log.Warningf("full sync in area %s: sync key vals failed: %v", area, err)
		return syncOutcome{success: false}
	}

	accepted := db.Merge(recordsFromPeer)

	giveToPeer := make(map[string]Record, len(diff.GiveToPeer))

	for _, key := range diff.GiveToPeer {
		if record, ok := db.Get(key); ok {
			giveToPeer[key] = record
		}
	}

	if len(giveToPeer) > 0 {
		if err := capability.SetKeyVals(area, giveToPeer, selfID); err != nil {
			log.Warningf("full sync in area %s: push to peer failed: %v", area, err)
			return syncOutcome{success: false, accepted: accepted}
		}
	}

	return syncOutcome{success: true, accepted: accepted}
}

// syncCapability is the minimal subset of client.Capability runFullSync
// needs. Declared locally (instead of importing the client package) to
// keep this file free of a dependency cycle: client imports openr for
// Record/Publication, so openr cannot import client back.
type syncCapability interface {
	DumpHashes(area string, prefix string) (map[string]Record, error)
	SyncKeyVals(area string, selfHashes map[string]Record) (map[string]Record, error)
	SetKeyVals(area string, keyVals map[string]Record, senderID string) error
}
