package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/log"
)

type handlers struct {
	deps Deps
	now  func() time.Time
}

// business resolves the {id} path parameter to an existing business.
func (h *handlers) business(r *http.Request) (core.Business, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return core.Business{}, err
	}
	return h.deps.Store.GetBusiness(r.Context(), id)
}

func (h *handlers) listBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.deps.Store.ListBusinesses(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(businesses))
}

func (h *handlers) createBusiness(w http.ResponseWriter, r *http.Request) {
	var b core.Business
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	b.ID = 0
	b.CreatedAt = time.Time{}
	if err := b.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	created, err := h.deps.Store.CreateBusiness(r.Context(), b)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Business created",
		log.FieldBusinessID, created.ID,
		"name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) getBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *handlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	txs, err := h.deps.Store.ListTransactions(r.Context(), b.ID, from, to)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(txs))
}

func (h *handlers) createTransaction(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	tx.ID = 0
	tx.BusinessID = b.ID
	if tx.Source == "" {
		tx.Source = "api"
	}
	if err := tx.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	created, err := h.deps.Store.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if h.deps.Dashboard != nil {
		h.deps.Dashboard.Invalidate(b.ID)
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.FieldBusinessID, b.ID,
		"transaction_id", created.ID,
		"direction", created.Direction)
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	cats, err := h.deps.Store.ListCategories(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cats))
}

// createCategory adds a category to the business. Names are unique per
// business ignoring case, and a parent must already belong to it.
func (h *handlers) createCategory(w http.ResponseWriter, r *http.Request) {
	b, err := h.business(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	var c core.Category
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	c.ID = 0
	c.BusinessID = b.ID
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	existing, err := h.deps.Store.ListCategories(r.Context(), b.ID)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if err := checkNewCategory(c, existing); err != nil {
		writeError(w, r, log.OpValidate, err)
		return
	}

	created, err := h.deps.Store.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if h.deps.Dashboard != nil {
		h.deps.Dashboard.Invalidate(b.ID)
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Category created",
		log.FieldBusinessID, b.ID,
		"category_id", created.ID,
		"name", created.Name)
	writeJSON(w, http.StatusCreated, created)
}

func checkNewCategory(c core.Category, existing []core.Category) error {
	parentFound := c.ParentID == nil
	for _, e := range existing {
		if strings.EqualFold(e.Name, c.Name) {
			return fmt.Errorf("%w: category %q already exists", core.ErrInvalidInput, c.Name)
		}
		if c.ParentID != nil && e.ID == *c.ParentID {
			parentFound = true
		}
	}
	if !parentFound {
		return fmt.Errorf("%w: parent category %d not found", core.ErrInvalidInput, *c.ParentID)
	}
	return nil
}
