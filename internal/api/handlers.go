package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/opdedupe/internal/planservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *planservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *planservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListRows handles GET /api/report.
//
//	@Summary		List report rows
//	@Tags			report
//	@Produce		json
//	@Param			action	query		string	false	"Filter by action"	Enums(KEEP, DELETE, ARCHIVE, REVIEW)
//	@Success		200		{object}	ReportRowsResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/report [get]
func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Rows(r.Context(), r.URL.Query().Get("action"))
	if err != nil {
		writeError(w, "list rows", err)
		return
	}
	writeJSON(w, http.StatusOK, ReportRowsResponse{Rows: rows, Total: len(rows)})
}

// GetPlan handles GET /api/plan.
//
//	@Summary		Show the update, archive and delete phases of the current report
//	@Tags			report
//	@Produce		json
//	@Success		200	{object}	PlanView
//	@Failure		404	{object}	errResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plan [get]
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Plan(r.Context())
	if err != nil {
		writeError(w, "get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent analyse and apply runs
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum runs"
//	@Success		200		{object}	RunsResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get a run and its actions
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	RunDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
