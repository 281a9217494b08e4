package server

import (
	"encoding/json"
	"net/http"

	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/engine"
	"github.com/raggrid/rag-grid/internal/matrix"
	"github.com/raggrid/rag-grid/internal/order"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
	"github.com/raggrid/rag-grid/internal/pkg/logger"
)

// GridHandler handles grid-related HTTP requests.
type GridHandler struct {
	engine *engine.Engine
	log    *logger.Logger
}

// NewGridHandler creates a new grid handler.
func NewGridHandler(eng *engine.Engine, log *logger.Logger) *GridHandler {
	return &GridHandler{engine: eng, log: log}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	errors.WriteJSON(w, status, v)
}

// RegisterRoutes registers grid routes.
func (h *GridHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/grid", h.requireMethod(http.MethodGet, h.handleSnapshot))
	mux.HandleFunc("/v1/grid/columns", h.requireMethod(http.MethodGet, h.handleColumns))
	mux.HandleFunc("/v1/grid/aggregates", h.requireMethod(http.MethodGet, h.handleAggregates))
	mux.HandleFunc("/v1/grid/autofill", h.requireMethod(http.MethodPost, h.handleAutoFill))
	mux.HandleFunc("/v1/grid/toggle", h.requireMethod(http.MethodPost, h.handleToggle))
	mux.HandleFunc("/v1/grid/retry", h.requireMethod(http.MethodPost, h.handleRetry))
	mux.HandleFunc("/v1/grid/metric", h.requireMethod(http.MethodPut, h.handleSetMetric))
	mux.HandleFunc("/v1/grid/sort", h.requireMethod(http.MethodPut, h.handleSetSort))
	mux.HandleFunc("/v1/catalog", h.handleCatalog)
}

func (h *GridHandler) requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			errors.WriteErrorWithStatus(w, http.StatusMethodNotAllowed,
				errors.InvalidRequestError("method not allowed"))
			return
		}
		next(w, r)
	}
}

// handleSnapshot handles GET /v1/grid.
func (h *GridHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

// handleColumns handles GET /v1/grid/columns.
func (h *GridHandler) handleColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"columns": h.engine.Columns(),
		"order":   h.engine.Order(),
	})
}

// handleAggregates handles GET /v1/grid/aggregates.
func (h *GridHandler) handleAggregates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric":     h.engine.Metric(),
		"aggregates": h.engine.Aggregates(),
	})
}

// handleAutoFill handles POST /v1/grid/autofill.
func (h *GridHandler) handleAutoFill(w http.ResponseWriter, r *http.Request) {
	h.engine.AutoFill()
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"epoch": h.engine.Epoch(),
	})
}

// handleToggle handles POST /v1/grid/toggle. A request carrying an
// epoch is rejected with a conflict when the catalog has been replaced
// since the client's snapshot.
func (h *GridHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column     int    `json:"column"`
		Dimension  string `json:"dimension"`
		ValueIndex int    `json:"value_index"`
		Epoch      *int   `json:"epoch,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid request body"))
		return
	}

	var tr matrix.Transition
	var err error
	if req.Epoch != nil {
		tr, err = h.engine.ToggleAt(*req.Epoch, req.Column, req.Dimension, req.ValueIndex)
	} else {
		tr, err = h.engine.Toggle(req.Column, req.Dimension, req.ValueIndex)
	}
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transition": transitionName(tr),
		"column":     req.Column,
	})
}

func transitionName(tr matrix.Transition) string {
	switch tr {
	case matrix.Completed:
		return "completed"
	case matrix.Recompleted:
		return "recompleted"
	case matrix.Uncompleted:
		return "uncompleted"
	default:
		return "incomplete"
	}
}

// handleRetry handles POST /v1/grid/retry.
func (h *GridHandler) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Column int `json:"column"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid request body"))
		return
	}

	if err := h.engine.Retry(req.Column); err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"column": req.Column,
	})
}

// handleSetMetric handles PUT /v1/grid/metric.
func (h *GridHandler) handleSetMetric(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Metric string `json:"metric"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid request body"))
		return
	}

	if err := h.engine.SetMetric(req.Metric); err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metric": h.engine.Metric(),
	})
}

// handleSetSort handles PUT /v1/grid/sort.
func (h *GridHandler) handleSetSort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid request body"))
		return
	}

	mode, err := order.ParseMode(req.Mode)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	h.engine.SetSortMode(mode)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mode":  mode,
		"order": h.engine.Order(),
	})
}

// handleCatalog handles GET and PUT /v1/catalog. Replacing the catalog
// discards every selection and result; it is the reset switch.
func (h *GridHandler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.engine.Snapshot().Catalog)
	case http.MethodPut:
		var cat catalog.Catalog
		if err := json.NewDecoder(r.Body).Decode(&cat); err != nil {
			errors.WriteError(w, errors.InvalidRequestError("invalid catalog body"))
			return
		}
		if err := h.engine.SetCatalog(&cat); err != nil {
			errors.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"epoch": h.engine.Epoch(),
		})
	default:
		errors.WriteErrorWithStatus(w, http.StatusMethodNotAllowed,
			errors.InvalidRequestError("method not allowed"))
	}
}
