package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"ledger-stats-system/internal/scheduler"
	"ledger-stats-system/internal/service"
)

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// AggregationHandler exposes the manual invocation surface of the two
// aggregators. These are triggers, not a query API; readers consume the
// aggregate tables directly.
type AggregationHandler struct {
	sched *scheduler.AggregationScheduler
}

func NewAggregationHandler(sched *scheduler.AggregationScheduler) *AggregationHandler {
	return &AggregationHandler{sched: sched}
}

func (h *AggregationHandler) TriggerBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.sched.TriggerBalanceAggregation(r.Context()); err != nil {
		var running *scheduler.AlreadyRunningError
		if errors.As(err, &running) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "balance aggregation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *AggregationHandler) TriggerWalletStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	maxHours := 0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "hours must be a non-negative integer")
			return
		}
		maxHours = parsed
	}

	processed, err := h.sched.TriggerWalletStats(r.Context(), maxHours)
	if err != nil {
		var running *scheduler.AlreadyRunningError
		if errors.As(err, &running) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "wallet stats update failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "completed",
		"hours_processed": processed,
	})
}

func (h *AggregationHandler) TriggerBackfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := h.sched.TriggerBackfill(r.Context()); err != nil {
		var running *scheduler.AlreadyRunningError
		if errors.As(err, &running) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "backfill failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// ReclassifyHandler triggers the tier-table repair pass.
type ReclassifyHandler struct {
	reclassifySvc *service.ReclassifyService
}

func NewReclassifyHandler(reclassifySvc *service.ReclassifyService) *ReclassifyHandler {
	return &ReclassifyHandler{reclassifySvc: reclassifySvc}
}

func (h *ReclassifyHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	updated, err := h.reclassifySvc.Reclassify(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reclassification failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "completed",
		"rows_updated": updated,
	})
}
