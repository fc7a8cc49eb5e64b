package client

import (
	openr "github.com/robertprast/openr"
)

// localCapability is the in-process Capability flavor from Design Notes
// §9's "templating over RPC client flavor": it calls straight into a
// peer Store's façade methods rather than going over a socket, for
// same-process multi-node tests and embedders that colocate peers.
type localCapability struct {
	peerName string
	target   *openr.Store
}

// NewLocalDialer returns a Dialer that reaches targets already known to
// the caller by name, looking each one up in peers. This is how the
// scenario tests in spec.md §8 (S1-S6) wire up several in-process Stores
// as each other's peers without a network hop.
func NewLocalDialer(peers map[string]*openr.Store) Dialer {
	return func(spec openr.PeerSpec) (Capability, error) {
		target, ok := peers[spec.Host]

		if !ok {
			return nil, openr.EUnknownArea
		}

		return &localCapability{peerName: spec.Host, target: target}, nil
	}
}

// SetKeyVals is the sync-push RPC, not a flood delivery -- it must
// succeed even when the target hasn't (yet, or ever) registered
// capability.peerName as a peer of its own (spec.md §8 scenario S3), so
// it calls ApplySyncPush directly rather than RecvPeerPublication.
func (capability *localCapability) SetKeyVals(area string, keyVals map[string]openr.Record, senderID string) error {
	capability.target.ApplySyncPush(area, keyVals, senderID)

	return nil
}

func (capability *localCapability) DumpHashes(area string, prefix string) (map[string]openr.Record, error) {
	return capability.target.DumpHashes(area, prefix), nil
}

func (capability *localCapability) DumpKeys(area string, keys []string) (map[string]openr.Record, error) {
	result := make(map[string]openr.Record, len(keys))

	for _, key := range keys {
		if record, ok := capability.target.GetKey(area, key); ok {
			result[key] = record
		}
	}

	return result, nil
}

func (capability *localCapability) SyncKeyVals(area string, selfHashes map[string]openr.Record) (map[string]openr.Record, error) {
	return capability.target.SyncKeyVals(area, selfHashes), nil
}

func (capability *localCapability) SendPublication(publication openr.Publication) error {
	return capability.deliver(publication)
}

func (capability *localCapability) deliver(publication openr.Publication) error {
	ok := capability.target.RecvPeerPublication(publication.Area, publication.SenderID, publication)

	if !ok {
		return openr.EUnknownArea
	}

	return nil
}

func (capability *localCapability) Close() error {
	return nil
}
