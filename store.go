package openr

import (
	"sync"
)

// AreaSummary is one area's row in get_summary's response -- key count
// and configured peer count, plus each peer's state, so an operator or
// test can assert on convergence without dumping full contents.
type AreaSummary struct {
	Area      string
	NumKeys   int
	PeerCount int
	Peers     map[string]PeerState
}

// Dialer constructs a PeerCapability for a peer spec. The Store package
// declares it with the same shape as client.Dialer rather than
// importing the client package, for the same reason sync.go declares
// syncCapability locally: client imports openr, so openr cannot import
// client back without a cycle. Embedders convert a client.Dialer to
// this type (openr.Dialer(client.NewHTTPDialer(...))); the two share an
// underlying type.
type Dialer func(spec PeerSpec) (PeerCapability, error)

// PeerCapability is the full capability surface a Store needs from a
// dialed peer connection -- syncCapability's three methods plus DumpKeys,
// outbound publication delivery and Close, matching client.Capability's shape exactly so a
// *client.httpCapability or *client.localCapability satisfies this
// without an adapter.
type PeerCapability interface {
	SetKeyVals(area string, keyVals map[string]Record, senderID string) error
	DumpHashes(area string, prefix string) (map[string]Record, error)
	DumpKeys(area string, keys []string) (map[string]Record, error)
	SyncKeyVals(area string, selfHashes map[string]Record) (map[string]Record, error)
	SendPublication(publication Publication) error
	Close() error
}

// areaState is everything the run loop owns for one configured area.
type areaState struct {
	db          *AreaDb
	peers       *PeerTable
	flooder     *Flooder
	conns       map[string]PeerCapability
	pendingInit bool // not set or read; initial-sync tracking uses settledOnce and Store.initialized
	settledOnce map[string]bool
}

// job is a closure the run loop executes with exclusive access to all
// area state -- the single suspension-point primitive called for by
// §5's concurrency model. Callers submit a job and block on done until
// the loop has run it; this is the "future-like handle" the spec's
// Design Notes call out, reduced to its simplest legal Go shape: a done
// channel the loop closes once run has returned.
type job struct {
	run  func()
	done chan struct{}
}

// dispatch submits fn to the run loop and blocks until it has executed,
// returning only after fn's effects are visible -- every suspension
// point in §4.6's operation table (set_key, get_key, dump_*, add_peer,
// del_peer, ...) is implemented by wrapping its body in a call to this.
func (store *Store) dispatch(fn func()) {
	j := job{run: fn, done: make(chan struct{})}

	select {
	case store.jobs <- j:
	case <-store.stopped:
		return
	}

	select {
	case <-j.done:
	case <-store.stopped:
	}
}

// Store is the single entry point composing AreaDb, PeerTable, Flooder
// and PubQueue per area, per §2's component table. All mutation of area
// state happens on one goroutine (runLoop); every other method submits
// a job and waits for it, per §5.
type Store struct {
	selfID  string
	dialer  Dialer
	counters Counters
	pubQueue *PubQueue

	jobs    chan job
	stopped chan struct{}
	stopOnce sync.Once
	wg      sync.WaitGroup

	// areas and initialized are owned exclusively by the run loop
	// goroutine; every access happens inside a dispatch callback.
	areas       map[string]*areaState
	initialized bool
}

// NewStore constructs a Store identified by selfID (used to select the
// records dump_self_originated returns and as the node id appended to
// node_ids_path on outbound floods; SetKey stores a record's own
// OriginatorID unchanged). dialer is used to reach peers for
// sync and flooding; counters may be nil, in which case increments are
// silently discarded.
func NewStore(selfID string, dialer Dialer, counters Counters) *Store {
	if counters == nil {
		counters = noopCounters{}
	}

	return &Store{
		selfID:   selfID,
		dialer:   dialer,
		counters: counters,
		pubQueue: NewPubQueue(256),
		jobs:     make(chan job),
		stopped:  make(chan struct{}),
		areas:    make(map[string]*areaState),
	}
}

// Run starts the run loop goroutine. It returns immediately; the loop
// runs until Stop is called. Per §4.6, run() "returns once running" --
// here that is trivially true since starting the goroutine cannot fail.
func (store *Store) Run() {
	store.wg.Add(1)

	go func() {
		defer store.wg.Done()
		store.runLoop()
	}()

	// A Store configured with zero peers (in every area configured so
	// far) must still emit KVSTORE_SYNCED immediately, per §4.3's
	// initial-sync signal.
	store.dispatch(func() {
		store.maybeSignalInitialized()
	})
}

func (store *Store) runLoop() {
	for {
		select {
		case j := <-store.jobs:
			j.run()
			close(j.done)
		case <-store.stopped:
			return
		}
	}
}

// Stop closes the PubQueue, stops accepting new jobs, and joins the run
// loop. Idempotent -- a second call is a no-op, matching §4.6's
// contract for stop().
func (store *Store) Stop() {
	store.stopOnce.Do(func() {
		close(store.stopped)
		store.pubQueue.Close()
	})

	store.wg.Wait()
}

// configureArea returns the areaState for area, creating it (with an
// empty AreaDb/PeerTable/Flooder) on first use. Must only be called from
// the run loop.
func (store *Store) configureArea(area string) *areaState {
	state, ok := store.areas[area]

	if ok {
		return state
	}

	state = &areaState{
		db:          NewAreaDb(),
		peers:       NewPeerTable(),
		conns:       make(map[string]PeerCapability),
		settledOnce: make(map[string]bool),
	}

	sink := &storeFloodSink{store: store, area: area}
	state.flooder = NewFlooder(store.selfID, sink)

	store.areas[area] = state

	return state
}

// storeFloodSink adapts a Store's dialed peer connections to flood.go's
// PeerSink interface.
type storeFloodSink struct {
	store *Store
	area  string
}

func (sink *storeFloodSink) SendPublication(peerName string, publication Publication) error {
	state := sink.store.areas[sink.area]

	capability, err := sink.store.connFor(state, peerName)

	if err != nil {
		return err
	}

	return capability.SendPublication(publication)
}

// connFor returns a cached or freshly-dialed capability for peerName in
// state's area. Must only be called from the run loop.
func (store *Store) connFor(state *areaState, peerName string) (PeerCapability, error) {
	if capability, ok := state.conns[peerName]; ok {
		return capability, nil
	}

	spec, ok := state.peers.Spec(peerName)

	if !ok {
		return nil, EUnknownArea
	}

	capability, err := store.dialer(spec)

	if err != nil {
		return nil, err
	}

	state.conns[peerName] = capability

	return capability, nil
}

// SetKey implements set_key. Returns whether the write was accepted
// (i.e. dominated whatever was previously stored).
func (store *Store) SetKey(area, key string, record Record) bool {
	var accepted bool

	store.dispatch(func() {
		state := store.configureArea(area)

		if !state.db.Set(key, record) {
			accepted = false
			return
		}

		accepted = true
		delta := map[string]Record{key: record}
		store.publishAndFlood(state, area, delta, "", nil)
	})

	return accepted
}

// SetKeys implements set_keys -- a batch of set_key, reported as a
// single bool per §4.6 ("all accepted").
func (store *Store) SetKeys(area string, keyVals map[string]Record) bool {
	allAccepted := true

	store.dispatch(func() {
		state := store.configureArea(area)
		accepted := state.db.Merge(keyVals)

		if len(accepted) != len(keyVals) {
			allAccepted = false
		}

		store.publishAndFlood(state, area, accepted, "", nil)
	})

	return allAccepted
}

// GetKey implements get_key.
func (store *Store) GetKey(area, key string) (Record, bool) {
	var record Record
	var found bool

	store.dispatch(func() {
		state := store.configureArea(area)
		record, found = state.db.Get(key)
	})

	return record, found
}

// DumpAll implements dump_all.
func (store *Store) DumpAll(area string, filter DumpFilter) map[string]Record {
	var result map[string]Record

	store.dispatch(func() {
		state := store.configureArea(area)
		result = state.db.Dump(filter)
	})

	return result
}

// DumpHashes implements dump_hashes.
func (store *Store) DumpHashes(area, prefix string) map[string]Record {
	var result map[string]Record

	store.dispatch(func() {
		state := store.configureArea(area)
		result = state.db.DumpHashes(prefix)
	})

	return result
}

// DumpSelfOriginated implements dump_self_originated.
func (store *Store) DumpSelfOriginated(area string) map[string]Record {
	var result map[string]Record

	store.dispatch(func() {
		state := store.configureArea(area)
		result = state.db.DumpSelfOriginated(store.selfID)
	})

	return result
}

// SyncKeyVals implements sync_key_vals -- the responder side of a
// peer's bulk-reconciliation pull.
func (store *Store) SyncKeyVals(area string, theirHashes map[string]Record) map[string]Record {
	var result map[string]Record

	store.dispatch(func() {
		state := store.configureArea(area)
		result = SyncKeyVals(state.db, "", theirHashes)
	})

	return result
}

// AddPeer implements add_peer. Per the peer-replace open question
// (§9), any addPeer to a known name restarts that peer's session
// unconditionally. The full sync itself runs asynchronously off the run
// loop via a separate goroutine that reports back through dispatch, so
// AddPeer itself returns quickly without blocking on network I/O.
func (store *Store) AddPeer(area, name string, spec PeerSpec) bool {
	store.dispatch(func() {
		state := store.configureArea(area)

		if existing, ok := state.conns[name]; ok {
			existing.Close()
			delete(state.conns, name)
		}

		state.peers.Add(name, spec)
		store.counters.IncFullSync()
		store.startSync(state, area, name)
	})

	return true
}

// AddPeers implements add_peers as a batch of AddPeer.
func (store *Store) AddPeers(area string, specs map[string]PeerSpec) bool {
	for name, spec := range specs {
		if !store.AddPeer(area, name, spec) {
			return false
		}
	}

	return true
}

// startSync launches one full-sync attempt against name off the run
// loop goroutine (network I/O must never block the loop) and dispatches
// the result back onto the loop to apply state transitions, counters,
// and flooding -- all area-state mutation happens back on-loop. The sync
// itself runs against a private snapshot of the area's AreaDb; what it
// merged is merged into the live AreaDb once back on the loop. A result
// that arrives after the peer was deleted is discarded. Must only be
// called from the run loop.
func (store *Store) startSync(state *areaState, area, name string) {
	capability, err := store.connFor(state, name)

	if err != nil {
		store.onSyncFailure(state, area, name)
		return
	}

	snapshot := &AreaDb{records: state.db.Dump(DumpFilter{})}

	go func() {
		outcome := runFullSync(snapshot, area, store.selfID, capability, "")

		store.dispatch(func() {
			if !state.peers.Has(name) {
				return
			}

			accepted := state.db.Merge(outcome.accepted)

			if !outcome.success {
				store.onSyncFailure(state, area, name)
				return
			}

			store.onSyncSuccess(state, area, name, accepted)
		})
	}()
}

// onSyncSuccess applies SYNC_RESP_RCVD, floods whatever the sync merged
// in, bumps counters, and checks whether this was the peer that
// completes the initial-sync signal. Must only be called from the run
// loop.
func (store *Store) onSyncSuccess(state *areaState, area, name string, accepted map[string]Record) {
	state.peers.OnSyncResponse(name)
	store.counters.IncFullSyncSuccess()
	store.counters.IncFinalizedSync()
	store.counters.IncFinalizedSyncSuccess()

	store.publishAndFlood(state, area, accepted, name, nil)
	store.markSettled(state, area, name)
}

// onSyncFailure applies THRIFT_API_ERROR and bumps the failure
// counters. Must only be called from the run loop.
func (store *Store) onSyncFailure(state *areaState, area, name string) {
	state.peers.OnTransportError(name)
	store.counters.IncFullSyncFailure()
	store.counters.IncFinalizedSync()
	store.counters.IncFinalizedSyncFailure()

	store.markSettled(state, area, name)
}

// markSettled records that name has settled (reached INITIALIZED or
// errored out) at least once, and emits KVSTORE_SYNCED the first time
// every currently-configured peer across every area has settled. Must
// only be called from the run loop.
func (store *Store) markSettled(state *areaState, area, name string) {
	state.settledOnce[name] = true
	store.maybeSignalInitialized()
}

// maybeSignalInitialized checks invariant 4 / §4.3's initial-sync
// signal across all areas and emits KVSTORE_SYNCED exactly once, the
// first time every configured peer in every area has settled. Must only
// be called from the run loop.
func (store *Store) maybeSignalInitialized() {
	if store.initialized {
		return
	}

	for _, state := range store.areas {
		for _, name := range state.peers.Names() {
			if !state.settledOnce[name] {
				return
			}
		}
	}

	store.initialized = true
	store.pubQueue.PushInitialized()
}

// DelPeer implements del_peer.
func (store *Store) DelPeer(area, name string) bool {
	var removed bool

	store.dispatch(func() {
		state := store.configureArea(area)

		if capability, ok := state.conns[name]; ok {
			capability.Close()
			delete(state.conns, name)
		}

		removed = state.peers.Remove(name)
		delete(state.settledOnce, name)
	})

	return removed
}

// GetPeerState implements get_peer_state.
func (store *Store) GetPeerState(area, name string) (PeerState, bool) {
	var state PeerState
	var found bool

	store.dispatch(func() {
		areaSt := store.configureArea(area)
		state, found = areaSt.peers.State(name)
	})

	return state, found
}

// GetPeers implements get_peers.
func (store *Store) GetPeers(area string) map[string]struct {
	Spec  PeerSpec
	State PeerState
} {
	var result map[string]struct {
		Spec  PeerSpec
		State PeerState
	}

	store.dispatch(func() {
		state := store.configureArea(area)
		result = state.peers.All()
	})

	return result
}

// GetSummary implements get_summary.
func (store *Store) GetSummary(areas []string) []AreaSummary {
	var result []AreaSummary

	store.dispatch(func() {
		for _, area := range areas {
			state := store.configureArea(area)

			peerStates := make(map[string]PeerState)
			for name, entry := range state.peers.All() {
				peerStates[name] = entry.State
			}

			result = append(result, AreaSummary{
				Area:      area,
				NumKeys:   state.db.Size(),
				PeerCount: len(peerStates),
				Peers:     peerStates,
			})
		}
	})

	return result
}

// RecvPublication implements recv_publication.
func (store *Store) RecvPublication() (*Publication, error) {
	return store.pubQueue.RecvPublication()
}

// RecvKVStoreSyncedSignal implements recv_kvstore_synced_signal.
func (store *Store) RecvKVStoreSyncedSignal() error {
	return store.pubQueue.RecvInitializedSignal()
}

// PushToUpdatesQueue implements push_to_updates_queue, the test/injection
// hook that applies a delta exactly like a peer-received publication
// would, without any RPC involved.
func (store *Store) PushToUpdatesQueue(area string, keyVals map[string]Record) {
	store.dispatch(func() {
		state := store.configureArea(area)
		accepted := state.db.Merge(keyVals)
		store.publishAndFlood(state, area, accepted, "", nil)
	})
}

// RecvPeerPublication applies an inbound flood Publication from
// senderName, honoring invariant 2's requirement that flooding is only
// accepted from a known peer. This is the flood-delivery path only --
// the server's /publications route, PeerHub's websocket read loop, and
// the local dialer's outbound flood delivery -- not the sync-push step
// below, which a peer's 3-way sync legitimately runs before either side
// may have registered the other as a peer yet (spec.md §8 scenario S3).
func (store *Store) RecvPeerPublication(area, senderName string, publication Publication) bool {
	var ok bool

	store.dispatch(func() {
		state := store.configureArea(area)

		if senderName != "" && !state.peers.Has(senderName) {
			ok = false
			return
		}

		accepted := state.db.Merge(publication.KeyVals)
		store.publishAndFlood(state, area, accepted, senderName, publication.NodeIDsPath)
		ok = true
	})

	return ok
}

// ApplySyncPush merges keyVals into area's AreaDb and floods the accepted
// subset, crediting senderID only for flood-loop avoidance (it is never
// checked against the peer table). This is the responder side of
// runFullSync's step 5 push -- setKvStoreKeyVals's sync-push case,
// distinct from RecvPeerPublication's flood-delivery case above. A
// one-way add_peer (spec.md §8 scenario S3: A adds B, B never adds A)
// must still let A's full sync push its dominant records into B and
// report success; gating this step behind invariant 2 would strand B
// permanently diverged from A and flip A's own sync outcome to failure.
func (store *Store) ApplySyncPush(area string, keyVals map[string]Record, senderID string) {
	store.dispatch(func() {
		state := store.configureArea(area)

		accepted := state.db.Merge(keyVals)
		store.publishAndFlood(state, area, accepted, senderID, nil)
	})
}

// publishAndFlood is the shared tail of every accepted-write path:
// push exactly one PubQueue publication (invariant 5), then flood to
// eligible peers. Must only be called from the run loop, and only after
// the corresponding AreaDb commit, per §5's ordering guarantee 3.
func (store *Store) publishAndFlood(state *areaState, area string, accepted map[string]Record, senderID string, incomingPath []string) {
	if len(accepted) == 0 {
		return
	}

	store.pubQueue.PushPublication(Publication{
		Area:        area,
		KeyVals:     accepted,
		SenderID:    senderID,
		NodeIDsPath: incomingPath,
	})

	state.flooder.Flood(state.peers, area, accepted, senderID, incomingPath, func(peerName string, err error) {
		state.peers.OnTransportError(peerName)
		store.counters.IncFinalizedSyncFailure()
	})
}
