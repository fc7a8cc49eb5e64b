package openr

// PeerState is one of the three states a configured peer can be in,
// scoped to a single Area. There is no terminal state: peers cycle
// between IDLE, SYNCING and INITIALIZED for as long as they are
// configured.
type PeerState int

const (
	PeerIdle PeerState = iota
	PeerSyncing
	PeerInitialized
)

func (state PeerState) String() string {
	switch state {
	case PeerIdle:
		return "IDLE"
	case PeerSyncing:
		return "SYNCING"
	case PeerInitialized:
		return "INITIALIZED"
	default:
		return "UNKNOWN"
	}
}

// PeerEvent drives the state machine transitions from §4.2.
type PeerEvent int

const (
	PeerAdd PeerEvent = iota
	SyncRespRcvd
	ThriftAPIError
)

// transition is the totally-defined state machine table from §4.2 /
// scenario S6. Every (state, event) pair maps to a next state; there is
// no "stuck" combination.
func transition(state PeerState, event PeerEvent) PeerState {
	switch event {
	case PeerAdd:
		return PeerSyncing
	case SyncRespRcvd:
		return PeerInitialized
	case ThriftAPIError:
		return PeerIdle
	default:
		return state
	}
}

// PeerSpec is the endpoint a peer is reachable at, plus whatever
// advertised metadata the embedder attaches to it (e.g. a build version,
// carried verbatim -- the core never interprets it).
type PeerSpec struct {
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (spec PeerSpec) equal(other PeerSpec) bool {
	if spec.Host != other.Host || spec.Port != other.Port {
		return false
	}

	if len(spec.Metadata) != len(other.Metadata) {
		return false
	}

	for key, value := range spec.Metadata {
		if other.Metadata[key] != value {
			return false
		}
	}

	return true
}

// peerEntry is one row of a PeerTable: a peer's endpoint plus its current
// state machine state.
type peerEntry struct {
	name  string
	spec  PeerSpec
	state PeerState
}

// PeerTable is the per-area set of peers known to this Store, along with
// each one's state machine state. It is owned exclusively by the Store's
// run loop, like AreaDb.
type PeerTable struct {
	peers map[string]*peerEntry
}

// NewPeerTable returns an empty peer table.
func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[string]*peerEntry)}
}

// Add inserts or replaces a peer by name. Per the observed peer-replace
// semantics (spec.md §9 open question), any addPeer to a known name
// restarts the state machine unconditionally -- same name, same or
// different spec, the old session is torn down and the entry reinserted
// at IDLE before PEER_ADD is applied.
func (table *PeerTable) Add(name string, spec PeerSpec) {
	table.peers[name] = &peerEntry{name: name, spec: spec, state: PeerIdle}
	table.apply(name, PeerAdd)
}

// Remove deletes a peer unconditionally. Any in-flight sync session
// referencing this peer is orphaned -- its eventual completion, if any,
// is discarded by the caller holding the stale reference.
func (table *PeerTable) Remove(name string) bool {
	if _, ok := table.peers[name]; !ok {
		return false
	}

	delete(table.peers, name)

	return true
}

// apply fires event against the named peer's state machine and records
// the resulting state. No-op if the peer is unknown.
func (table *PeerTable) apply(name string, event PeerEvent) (PeerState, bool) {
	entry, ok := table.peers[name]

	if !ok {
		return PeerIdle, false
	}

	entry.state = transition(entry.state, event)

	return entry.state, true
}

// OnSyncResponse fires SYNC_RESP_RCVD for a peer.
func (table *PeerTable) OnSyncResponse(name string) (PeerState, bool) {
	return table.apply(name, SyncRespRcvd)
}

// OnTransportError fires THRIFT_API_ERROR for a peer, collapsing it back
// to IDLE so the next sync attempt starts clean.
func (table *PeerTable) OnTransportError(name string) (PeerState, bool) {
	return table.apply(name, ThriftAPIError)
}

// State returns a peer's current state, if known.
func (table *PeerTable) State(name string) (PeerState, bool) {
	entry, ok := table.peers[name]

	if !ok {
		return PeerIdle, false
	}

	return entry.state, true
}

// Spec returns a peer's endpoint spec, if known.
func (table *PeerTable) Spec(name string) (PeerSpec, bool) {
	entry, ok := table.peers[name]

	if !ok {
		return PeerSpec{}, false
	}

	return entry.spec, true
}

// Names returns every configured peer name, in no particular order.
func (table *PeerTable) Names() []string {
	names := make([]string, 0, len(table.peers))

	for name := range table.peers {
		names = append(names, name)
	}

	return names
}

// InitializedPeers returns the names of every peer currently eligible for
// flooding -- i.e. in the INITIALIZED state. This is invariant 2 from the
// data model made concrete: a peer in IDLE or SYNCING never receives a
// flood.
func (table *PeerTable) InitializedPeers() []string {
	names := make([]string, 0, len(table.peers))

	for name, entry := range table.peers {
		if entry.state == PeerInitialized {
			names = append(names, name)
		}
	}

	return names
}

// Has reports whether name is a known peer in this area -- used to reject
// flooding from peers the area hasn't configured, per invariant 2's
// second half.
func (table *PeerTable) Has(name string) bool {
	_, ok := table.peers[name]

	return ok
}

// All returns a name -> (spec, state) snapshot of the table.
func (table *PeerTable) All() map[string]struct {
	Spec  PeerSpec
	State PeerState
} {
	result := make(map[string]struct {
		Spec  PeerSpec
		State PeerState
	}, len(table.peers))

	for name, entry := range table.peers {
		result[name] = struct {
			Spec  PeerSpec
			State PeerState
		}{entry.spec, entry.state}
	}

	return result
}
