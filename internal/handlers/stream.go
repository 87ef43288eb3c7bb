package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// progressStreamer is the minimal surface HandleProgressStream needs,
// satisfied by *websocket.ProgressStreamer. Handlers depends on this
// interface rather than the websocket package directly so internal/api is
// free to wire concrete types without an import cycle.
type progressStreamer interface {
	HandleConn(batchID string, w http.ResponseWriter, r *http.Request)
}

// HandleProgressStream upgrades GET /api/v1/batches/{batchID}/stream to a
// websocket connection carrying that batch's progress events.
func HandleProgressStream(streamer progressStreamer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := mux.Vars(r)["batchID"]
		streamer.HandleConn(batchID, w, r)
	}
}
