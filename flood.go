package openr

// PeerSink is how the Flooder delivers an outbound Publication to a
// specific peer. The Store facade supplies an implementation backed by
// whatever ClientCapability (see the client package) it dialed for that
// peer; Flooder itself only knows about names and publications.
type PeerSink interface {
	SendPublication(peerName string, publication Publication) error
}

// Flooder propagates locally-accepted deltas to peers other than whoever
// sent them, without looping -- §4.4.
type Flooder struct {
	selfID string
	sink   PeerSink
}

// NewFlooder builds a Flooder that identifies outbound floods as coming
// from selfID and delivers them through sink.
func NewFlooder(selfID string, sink PeerSink) *Flooder {
	return &Flooder{selfID: selfID, sink: sink}
}

// containsNodeID reports whether path already contains id.
func containsNodeID(path []string, id string) bool {
	for _, existing := range path {
		if existing == id {
			return true
		}
	}

	return false
}

// appendNodeID returns path with self appended, without introducing a
// duplicate -- this is what keeps invariant 3 (no duplicate in
// node_ids_path) true across an arbitrary number of flood hops.
func appendNodeID(path []string, self string) []string {
	if containsNodeID(path, self) {
		return path
	}

	next := make([]string, len(path), len(path)+1)
	copy(next, path)

	return append(next, self)
}

// Flood builds the outbound Publication for an accepted delta and sends
// it to every eligible peer in table: INITIALIZED, not already in the
// path, and not the sender of the incoming delta. senderID is empty for
// a locally-originated write (§2's "excludeSenders={self}" case reduces
// to "don't re-flood to whoever isn't a peer at all", which is already
// covered by the self-exclusion below since self is never in the peer
// table under its own name).
//
// A send failure on a given peer is reported to onError (normally wired
// to PeerTable.OnTransportError) but does not stop the fan-out to the
// remaining peers.
func (flooder *Flooder) Flood(table *PeerTable, area string, accepted map[string]Record, senderID string, incomingPath []string, onError func(peerName string, err error)) {
	if len(accepted) == 0 {
		return
	}

	outPath := appendNodeID(incomingPath, flooder.selfID)

	publication := Publication{
		Area:        area,
		KeyVals:     accepted,
		SenderID:    flooder.selfID,
		NodeIDsPath: outPath,
	}

	for _, peerName := range table.InitializedPeers() {
		if peerName == senderID {
			continue
		}

		if containsNodeID(outPath, peerName) {
			continue
		}

		if err := flooder.sink.SendPublication(peerName, publication); err != nil {
			log.Warningf("Flood to peer %s in area %s failed: %v", peerName, area, err)

			if onError != nil {
				onError(peerName, err)
			}
		}
	}
}
