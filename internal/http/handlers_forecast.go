package http

import (
	"net/http"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/services"
)

func (h *handlers) listForecasts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	forecasts, err := h.deps.Forecasts.List(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(forecasts))
}

// submitForecast stores an externally computed forecast record.
func (h *handlers) submitForecast(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var f core.ForecastResult
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	f.ID = 0
	f.BusinessID = id
	if f.Granularity == "" {
		f.Granularity = core.GranularityMonthly
	}

	saved, err := h.deps.Forecasts.Submit(r.Context(), f)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// projectForecast projects declared recurring items and stores the result.
func (h *handlers) projectForecast(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpProject, err)
		return
	}
	var req services.ProjectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpProject, err)
		return
	}

	f, err := h.deps.Forecasts.CreateProjection(r.Context(), id, req)
	if err != nil {
		writeError(w, r, log.OpProject, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}
