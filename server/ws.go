package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	openr "github.com/robertprast/openr"
)

// PeerHub is a supplemental, lower-latency transport for flooding:
// persistent websocket connections between peers instead of one HTTP
// POST per Publication, grounded on devicedb's original peer.go (which
// keeps a long-lived connection per peer rather than dialing fresh for
// every message). The HTTP RPC surface in handlers.go remains the
// source of truth for every other operation; PeerHub only carries
// publications and only once a peer has opted in by connecting to
// /areas/{area}/peer-stream.
type PeerHub struct {
	store    *openr.Store
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*websocket.Conn // peerName -> connection, one area's worth
	area  string
}

// NewPeerHub returns a hub serving one area's peer-stream endpoint.
func NewPeerHub(store *openr.Store, area string) *PeerHub {
	return &PeerHub{
		store: store,
		area:  area,
		conns: make(map[string]*websocket.Conn),
	}
}

// RegisterRoute mounts the hub's websocket endpoint on router.
func (hub *PeerHub) RegisterRoute(mount func(path string, handler http.HandlerFunc)) {
	mount("/areas/"+hub.area+"/peer-stream", hub.serve)
}

func (hub *PeerHub) serve(w http.ResponseWriter, r *http.Request) {
	peerName := r.URL.Query().Get("peer")

	if peerName == "" {
		http.Error(w, "missing peer query parameter", http.StatusBadRequest)
		return
	}

	conn, err := hub.upgrader.Upgrade(w, r, nil)

	if err != nil {
		log.Warningf("peer-stream upgrade failed for %s: %v", peerName, err)
		return
	}

	hub.mu.Lock()
	hub.conns[peerName] = conn
	hub.mu.Unlock()

	defer func() {
		hub.mu.Lock()
		delete(hub.conns, peerName)
		hub.mu.Unlock()
		conn.Close()
	}()

	for {
		var publication openr.Publication

		if err := conn.ReadJSON(&publication); err != nil {
			log.Debugf("peer-stream connection to %s closed: %v", peerName, err)
			return
		}

		hub.store.RecvPeerPublication(hub.area, publication.SenderID, publication)
	}
}

// Send delivers publication to peerName over its open websocket
// connection, if any. Returns an error (triggering THRIFT_API_ERROR on
// the caller's side, same as an HTTP flood failure) when no connection
// is currently open -- callers should fall back to the HTTP transport
// in that case.
func (hub *PeerHub) Send(peerName string, publication openr.Publication) error {
	hub.mu.Lock()
	conn, ok := hub.conns[peerName]
	hub.mu.Unlock()

	if !ok {
		return openr.EClosed
	}

	body, err := json.Marshal(publication)

	if err != nil {
		return err
	}

	return conn.WriteMessage(websocket.TextMessage, body)
}
