package handlers

import (
	"net/http"

	"github.com/ukcatalog/core/internal/monitoring"
	"github.com/ukcatalog/core/internal/store"
)

// HandleQueryCatalog serves GET /api/v1/catalog, filtered by platform,
// account_type, and regulator_id query parameters (all optional).
func HandleQueryCatalog(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.CatalogFilter{
			Platform:    q.Get("platform"),
			AccountType: store.AccountType(q.Get("account_type")),
			RegulatorID: q.Get("regulator_id"),
		}
		products, err := st.QueryCatalog(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"products": products,
			"count":    len(products),
		})
	}
}

// HandleListResearchQueue serves GET /api/v1/research-queue, defaulting to
// open entries unless a status query parameter names another one.
func HandleListResearchQueue(st *store.Store, metrics *monitoring.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := store.ResearchOpen
		if raw := r.URL.Query().Get("status"); raw != "" {
			status = store.ResearchQueueStatus(raw)
		}
		entries, err := st.ListResearchQueue(r.Context(), status)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if metrics != nil && status == store.ResearchOpen {
			metrics.SetResearchQueueSize("all", len(entries))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"entries": entries,
			"count":   len(entries),
		})
	}
}
