// Package client defines the ClientCapability a Store dials to reach a
// peer's RPC surface, plus two concrete implementations -- grounded on
// devicedb's client/api_client.go and the Design Notes §9 observation that
// the source compiles against two concrete RPC client flavors behind one
// polymorphic interface. Here the two flavors are an HTTP-over-JSON
// client (for real peers) and an in-process client (for same-process
// multi-node tests and embedders that want to avoid the network
// entirely).
package client

import (
	openr "github.com/robertprast/openr"
)

// Capability is the set of calls the SyncEngine and Flooder need to reach
// a specific peer. It mirrors the relevant subset of the RPC surface in
// spec.md §6: setKvStoreKeyVals, getKvStoreKeyVals (via DumpKeys),
// dumpKvStoreHashes and the bulk-reconciliation SyncKeyVals operation.
//
// Capability is an alias for openr.PeerCapability (rather than a second
// independent interface with the same methods) so a Dialer built here
// plugs directly into openr.NewStore without an adapter shim -- a Store
// is polymorphic over the interface, never over this package.
type Capability = openr.PeerCapability

// Dialer constructs a Capability for a given peer spec. The Store calls
// this the first time it needs a connection to a peer and caches the
// result until that peer is re-added or deleted.
type Dialer func(spec openr.PeerSpec) (Capability, error)
