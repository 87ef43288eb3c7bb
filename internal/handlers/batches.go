// Package handlers implements the HTTP control surface's handler-factory
// functions: each HandleX(deps...) closes over its dependencies and returns
// a plain http.HandlerFunc, registered onto the router in internal/api.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/core"
	"github.com/ukcatalog/core/internal/orchestrator"
	"github.com/ukcatalog/core/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForErr maps a pipeline error kind onto an HTTP status; unrecognized
// errors are treated as internal.
func statusForErr(err error) int {
	kind, ok := core.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case core.EnvelopeInvalid, core.ConfigInvalid:
		return http.StatusBadRequest
	case core.BatchCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type processFileRequest struct {
	FilePath  string `json:"file_path"`
	StopAfter string `json:"stop_after_stage,omitempty"`
}

// HandleProcessFile implements process_file(path, {stop_after_stage?}).
func HandleProcessFile(orch *orchestrator.Orchestrator, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processFileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FilePath == "" {
			writeError(w, http.StatusBadRequest, "file_path is required")
			return
		}

		result, err := orch.Run(r.Context(), cfg, orchestrator.RunParams{
			FilePath:  req.FilePath,
			StopAfter: orchestrator.Stage(req.StopAfter),
		})
		if err != nil {
			writeError(w, statusForErr(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, result)
	}
}

// HandleRebuildFromRaw implements rebuild_from_raw().
func HandleRebuildFromRaw(orch *orchestrator.Orchestrator, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := orch.RebuildFromRaw(r.Context(), cfg)
		if err != nil {
			writeError(w, statusForErr(err), err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, result)
	}
}

// HandleGetProgress implements get_progress(batch_id).
func HandleGetProgress(orch *orchestrator.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := mux.Vars(r)["batchID"]
		p, ok := orch.Progress(batchID)
		if !ok {
			writeError(w, http.StatusNotFound, "no progress recorded for batch")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// HandleCancel implements cancel(batch_id): it sets the batch's status to
// cancelled. A run already in progress does not read this status back; it
// is not interrupted and continues through its remaining stages.
func HandleCancel(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := mux.Vars(r)["batchID"]
		batch, err := st.GetBatch(r.Context(), batchID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if batch == nil {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		if err := st.SetBatchStatus(r.Context(), batchID, store.BatchCancelled); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"batch_id": batchID, "status": string(store.BatchCancelled)})
	}
}

// HandleGetAudit implements get_audit(batch_id).
func HandleGetAudit(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := mux.Vars(r)["batchID"]
		report, err := st.GetAudit(r.Context(), batchID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if report.Batch == nil {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}
