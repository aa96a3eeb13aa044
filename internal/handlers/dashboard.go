package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/icard-hq/apiserver/internal/services"
)

// DashboardHandler serves the landing screen indicators.
type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// DashboardRouter registers dashboard routes on the given router.
func DashboardRouter(r chi.Router, dashboard *services.DashboardService) {
	handler := NewDashboardHandler(dashboard)

	r.Get("/", handler.Counts)
	r.Get("/employees", handler.EmployeesByIndicator)
}

func (h *DashboardHandler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.dashboard.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

var validIndicators = map[string]bool{
	"total":    true,
	"active":   true,
	"inactive": true,
	"printed":  true,
	"mailed":   true,
}

func (h *DashboardHandler) EmployeesByIndicator(w http.ResponseWriter, r *http.Request) {
	indicator := strings.TrimSpace(r.URL.Query().Get("indicator"))
	if indicator == "" {
		indicator = "total"
	}
	if !validIndicators[indicator] {
		writeError(w, http.StatusBadRequest, "unknown indicator")
		return
	}

	items, err := h.dashboard.EmployeesByIndicator(r.Context(), indicator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list employees")
		return
	}
	writeJSON(w, http.StatusOK, items)
}
