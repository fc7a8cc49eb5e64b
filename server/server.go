// Package server exposes a Store's RPC surface (spec.md §6) over HTTP,
// grounded on devicedb's routes/sites.go gorilla/mux handler pattern:
// one *mux.Router, one handler per RPC, JSON bodies in and out.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	openr "github.com/robertprast/openr"
	"github.com/robertprast/openr/routes"
)

var log = openr.Logger("server")

// Server wraps a *http.Server bound to a *openr.Store's RPC surface for
// one process. Counters are exposed via /metrics through the handler
// passed to New (e.g. promhttp.HandlerFor over the registry a
// *openr.PrometheusCounters was registered with), or promhttp.Handler
// over the default registry when none is passed.
type Server struct {
	store      *openr.Store
	httpServer *http.Server
	router     *mux.Router
	hubs       map[string]*PeerHub
}

// New builds a Server bound to addr, routing the RPC surface in §6 to
// store and serving metricsHandler at /metrics. metricsHandler may be
// nil, in which case /metrics serves promhttp.Handler() (the default
// Prometheus registry).
func New(addr string, store *openr.Store, metricsHandler http.Handler) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/areas/{area}/keys", setKeyValsHandler(store)).Methods("POST")
	router.HandleFunc("/areas/{area}/keys/{key}", getKeyHandler(store)).Methods("GET")
	router.HandleFunc("/areas/{area}/keys/dump", dumpKeysHandler(store)).Methods("POST")
	router.HandleFunc("/areas/{area}/dump", dumpAllHandler(store)).Methods("GET")
	router.HandleFunc("/areas/{area}/hashes", dumpHashesHandler(store)).Methods("POST")
	router.HandleFunc("/areas/{area}/self-originated", dumpSelfOriginatedHandler(store)).Methods("GET")
	router.HandleFunc("/areas/{area}/sync", syncKeyValsHandler(store)).Methods("POST")
	router.HandleFunc("/areas/{area}/publications", recvPublicationHandler(store)).Methods("POST")
	router.HandleFunc("/areas/{area}/peers", addPeersHandler(store)).Methods("PUT")
	router.HandleFunc("/areas/{area}/peers", deletePeersHandler(store)).Methods("DELETE")
	router.HandleFunc("/areas/{area}/peers", getPeersHandler(store)).Methods("GET")
	router.HandleFunc("/areas/{area}/peers/{name}", getPeerStateHandler(store)).Methods("GET")
	router.HandleFunc("/summary", summaryHandler(store)).Methods("GET")

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	router.Handle("/metrics", metricsHandler).Methods("GET")

	return &Server{
		store:      store,
		httpServer: &http.Server{Addr: addr, Handler: router},
		router:     router,
		hubs:       make(map[string]*PeerHub),
	}
}

// EnablePeerStream mounts a websocket peer-stream endpoint for area and
// returns the PeerHub, so an embedder's flood sink can prefer it over
// the HTTP transport for that area. Idempotent per area.
func (server *Server) EnablePeerStream(area string) *PeerHub {
	if hub, ok := server.hubs[area]; ok {
		return hub
	}

	hub := NewPeerHub(server.store, area)
	hub.RegisterRoute(func(path string, handler http.HandlerFunc) {
		server.router.HandleFunc(path, handler)
	})

	server.hubs[area] = hub

	return hub
}

// ListenAndServe runs the HTTP server, blocking until it stops (usually
// via Close from another goroutine). Matches the Store façade's own
// run/stop split -- this is the "RPC acceptor thread" §5 describes as a
// collaborator outside the run loop.
func (server *Server) ListenAndServe() error {
	log.Infof("listening on %s", server.httpServer.Addr)

	return server.httpServer.ListenAndServe()
}

// Close shuts down the HTTP server.
func (server *Server) Close() error {
	return server.httpServer.Close()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, routes.ErrorResponse{Error: err.Error()})
}
