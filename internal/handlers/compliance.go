package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ukcatalog/core/internal/compliance"
	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/fabric"
	"github.com/ukcatalog/core/internal/monitoring"
	"github.com/ukcatalog/core/internal/store"
)

// HandleComplianceReport serves GET /api/v1/compliance/report: every active
// institution's exposure, effective limit, and breach status. Any violation
// found is also raised on the alert bus, so an operator subscribed to
// compliance.breach.detected sees it without polling this endpoint.
func HandleComplianceReport(engine *compliance.Engine, cfg *config.Config, alerts fabric.EventBus, metrics *monitoring.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := engine.Report(r.Context(), cfg.Compliance)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var medium, high, critical int
		for _, ex := range report.Exposures {
			if ex.Status != compliance.StatusViolation {
				continue
			}
			switch ex.Severity {
			case compliance.SeverityMedium:
				medium++
			case compliance.SeverityHigh:
				high++
			case compliance.SeverityCritical:
				critical++
			}
			if alerts != nil {
				alerts.Publish(context.Background(), &fabric.Event{
					Type:   fabric.EventComplianceBreach,
					Source: "/api/v1/compliance/report",
					Payload: map[string]interface{}{
						"regulator_id":  ex.RegulatorID,
						"bank":          ex.Bank,
						"excess_amount": ex.ExcessAmount,
						"severity":      string(ex.Severity),
					},
					Timestamp: time.Now(),
				})
			}
		}
		if metrics != nil {
			metrics.SetBreachCounts(medium, high, critical)
		}

		writeJSON(w, http.StatusOK, report)
	}
}

type diversifyRequest struct {
	AccountType string `json:"account_type,omitempty"`
}

// HandleDiversify serves POST /api/v1/compliance/diversify: a diversification
// plan for every breaching institution, against the curated catalog
// optionally narrowed to one account type.
func HandleDiversify(engine *compliance.Engine, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req diversifyRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		plans, err := engine.Diversify(r.Context(), cfg.Compliance, compliance.DiversifyParams{
			AccountType: store.AccountType(req.AccountType),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"plans": plans,
			"count": len(plans),
		})
	}
}
