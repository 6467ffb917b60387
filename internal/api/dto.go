package api

import (
	"github.com/starford/opdedupe/internal/journal"
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/planservice"
)

// PlanView is the partitioned plan (aliased from the domain layer).
type PlanView = planservice.PlanView

// RunDetail is a run with its actions (aliased from the domain layer).
type RunDetail = planservice.RunDetail

// ReportRowsResponse wraps report rows.
type ReportRowsResponse struct {
	Rows  []models.Change `json:"rows" validate:"required"`
	Total int             `json:"total" example:"12" validate:"required"`
}

// RunsResponse wraps journal runs.
type RunsResponse struct {
	Runs []journal.Run `json:"runs" validate:"required"`
}
