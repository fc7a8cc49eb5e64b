package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	openr "github.com/robertprast/openr"
	"github.com/robertprast/openr/routes"
)

func decodeBody(r *http.Request, dest interface{}) error {
	defer r.Body.Close()

	return json.NewDecoder(r.Body).Decode(dest)
}

// setKeyValsHandler implements setKvStoreKeyVals for both client writes
// (sender_id empty) and a peer's sync-push of its dominant records
// during runFullSync's step 5 (sender_id set to the pushing peer's
// name). This is not flood delivery -- invariant 2's known-peer gate
// does not apply here, since a sync push must succeed even one-way
// (spec.md §8 scenario S3: A adds B, B never adds A). Flood delivery
// itself arrives over the separate /publications route.
func setKeyValsHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		var request routes.SetKeyValsRequest

		if err := decodeBody(r, &request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if request.SenderID != "" {
			store.ApplySyncPush(area, request.KeyVals, request.SenderID)
			writeJSON(w, http.StatusOK, nil)
			return
		}

		accepted := store.SetKeys(area, request.KeyVals)

		writeJSON(w, http.StatusOK, accepted)
	}
}

func getKeyHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		record, ok := store.GetKey(vars["area"], vars["key"])

		if !ok {
			writeJSON(w, http.StatusNotFound, nil)
			return
		}

		writeJSON(w, http.StatusOK, record)
	}
}

func dumpKeysHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		var request routes.DumpKeysRequest

		if err := decodeBody(r, &request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		result := make(map[string]openr.Record, len(request.Keys))

		for _, key := range request.Keys {
			if record, ok := store.GetKey(area, key); ok {
				result[key] = record
			}
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func dumpAllHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]
		filter := openr.DumpFilter{
			Prefix:       r.URL.Query().Get("prefix"),
			OriginatorID: r.URL.Query().Get("originatorId"),
		}

		writeJSON(w, http.StatusOK, store.DumpAll(area, filter))
	}
}

func dumpHashesHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		var request routes.DumpHashesRequest

		if err := decodeBody(r, &request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusOK, store.DumpHashes(area, request.Prefix))
	}
}

func dumpSelfOriginatedHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		writeJSON(w, http.StatusOK, store.DumpSelfOriginated(area))
	}
}

func syncKeyValsHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		var request routes.SyncKeyValsRequest

		if err := decodeBody(r, &request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusOK, store.SyncKeyVals(area, request.SelfHashes))
	}
}

func recvPublicationHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		var publication openr.Publication

		if err := decodeBody(r, &publication); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if !store.RecvPeerPublication(area, publication.SenderID, publication) {
			writeError(w, http.StatusForbidden, openr.EUnknownArea)
			return
		}

		writeJSON(w, http.StatusOK, nil)
	}
}

func addPeersHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		var request routes.AddPeersRequest

		if err := decodeBody(r, &request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusOK, store.AddPeers(area, request.Peers))
	}
}

func deletePeersHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		var request routes.DeletePeersRequest

		if err := decodeBody(r, &request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		allRemoved := true

		for _, name := range request.Names {
			if !store.DelPeer(area, name) {
				allRemoved = false
			}
		}

		writeJSON(w, http.StatusOK, allRemoved)
	}
}

func getPeersHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		area := mux.Vars(r)["area"]

		peers := store.GetPeers(area)
		result := make(map[string]routes.PeerEntry, len(peers))

		for name, entry := range peers {
			result[name] = routes.PeerEntry{Spec: entry.Spec, State: entry.State.String()}
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func getPeerStateHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		state, ok := store.GetPeerState(vars["area"], vars["name"])

		if !ok {
			writeJSON(w, http.StatusNotFound, nil)
			return
		}

		writeJSON(w, http.StatusOK, state.String())
	}
}

func summaryHandler(store *openr.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		areas := r.URL.Query()["area"]

		summaries := store.GetSummary(areas)
		result := make([]routes.AreaSummaryResponse, 0, len(summaries))

		for _, summary := range summaries {
			peers := make(map[string]string, len(summary.Peers))

			for name, state := range summary.Peers {
				peers[name] = state.String()
			}

			result = append(result, routes.AreaSummaryResponse{
				Area:      summary.Area,
				NumKeys:   summary.NumKeys,
				PeerCount: summary.PeerCount,
				Peers:     peers,
			})
		}

		writeJSON(w, http.StatusOK, result)
	}
}
