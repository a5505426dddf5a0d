package http

import (
	"net/http"

	"cashflow/internal/log"
)

const (
	defaultRiskScoreLimit = 30
	maxRiskScoreLimit     = 500
)

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, log.OpAssemble, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, r, log.OpAssemble, err)
		return
	}

	snap, err := h.deps.Dashboard.Snapshot(r.Context(), id, from, to)
	if err != nil {
		writeError(w, r, log.OpAssemble, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) listRiskScores(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	limit, err := queryLimit(r, defaultRiskScoreLimit, maxRiskScoreLimit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	scores, err := h.deps.Store.ListRiskScores(r.Context(), b.ID, limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(scores))
}
