// Package routes defines the wire-level request/response shapes for the
// HTTP RPC surface in spec.md §6, shared by the server package (which
// decodes them) and the client package (which encodes them) so the two
// sides can never drift apart. Grounded on devicedb's routes/models.go
// APIEntry/InternalEntry pattern of separating wire DTOs from the
// domain types they carry.
package routes

import openr "github.com/robertprast/openr"

// SetKeyValsRequest is the body of setKvStoreKeyVals.
type SetKeyValsRequest struct {
	KeyVals  map[string]openr.Record `json:"keyVals"`
	SenderID string                  `json:"senderId"`
}

// DumpHashesRequest is the body of dumpKvStoreHashes.
type DumpHashesRequest struct {
	Prefix string `json:"prefix"`
}

// DumpKeysRequest is the body of dumpKvStoreKeys when restricted to an
// explicit key list (as opposed to a prefix/originator filter).
type DumpKeysRequest struct {
	Keys []string `json:"keys"`
}

// SyncKeyValsRequest is the body of the bulk-reconciliation pull;
// SelfHashes is the caller's hash-only dump.
type SyncKeyValsRequest struct {
	SelfHashes map[string]openr.Record `json:"selfHashes"`
}

// AddPeersRequest is the body of addUpdateKvStorePeers.
type AddPeersRequest struct {
	Peers map[string]openr.PeerSpec `json:"peers"`
}

// DeletePeersRequest is the body of deleteKvStorePeers.
type DeletePeersRequest struct {
	Names []string `json:"names"`
}

// PeerEntry is one row of getKvStorePeers' response.
type PeerEntry struct {
	Spec  openr.PeerSpec `json:"spec"`
	State string         `json:"state"`
}

// AreaSummaryResponse is one element of getKvStoreAreaSummaryInternal's
// response list.
type AreaSummaryResponse struct {
	Area      string            `json:"area"`
	NumKeys   int               `json:"numKeys"`
	PeerCount int               `json:"peerCount"`
	Peers     map[string]string `json:"peers"`
}

// ErrorResponse is the body written alongside a non-200 status for any
// handler in the server package.
type ErrorResponse struct {
	Error string `json:"error"`
}
