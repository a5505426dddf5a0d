package http

import (
	"net/http"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

func (h *handlers) listAlerts(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	includeResolved, err := queryBool(r, "include_resolved")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	alerts, err := h.deps.Store.ListAlerts(r.Context(), b.ID, includeResolved)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(alerts))
}

// raiseAlert answers 201 with the stored alert, or 202 when it was handed to
// the broker for the alert worker to persist.
func (h *handlers) raiseAlert(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var a core.Alert
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	a.ID = 0
	a.BusinessID = b.ID
	a.Resolved = false
	a.ResolvedAt = nil
	if a.CreatedAt.IsZero() {
		a.CreatedAt = h.now().UTC()
	}

	stored, err := h.deps.Alerts.Raise(r.Context(), a)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if stored == nil {
		writeJSON(w, http.StatusAccepted, a)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *handlers) resolveAlert(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpResolve, err)
		return
	}
	alertID, err := pathID(r, "alertID")
	if err != nil {
		writeError(w, r, log.OpResolve, err)
		return
	}

	a, err := h.deps.Store.ResolveAlert(r.Context(), b.ID, alertID, h.now().UTC())
	if err != nil {
		writeError(w, r, log.OpResolve, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Alert resolved",
		log.FieldBusinessID, b.ID,
		"alert_id", a.ID,
		log.FieldAlertLevel, a.Level)
	writeJSON(w, http.StatusOK, a)
}
