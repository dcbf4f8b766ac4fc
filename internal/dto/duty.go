package dto

import (
	"github.com/noah-isme/library-duty-api/internal/models"
)

// GenerateDutyScheduleRequest instructs the scheduler to build and persist a
// duty schedule for the term.
type GenerateDutyScheduleRequest struct {
	Term            models.Term `json:"term" validate:"required,oneof=FIRST_TERM SECOND_TERM"`
	ForceRegenerate bool        `json:"forceRegenerate"`
}

// DutyScheduleResponse returns the persisted schedule with its summary.
type DutyScheduleResponse struct {
	Assignments []models.Assignment  `json:"assignments"`
	Stats       models.ScheduleStats `json:"stats"`
	Score       float64              `json:"score"`
	Attempts    int                  `json:"attempts"`
}

// ScheduleStatsQuery selects the term whose stats are requested.
type ScheduleStatsQuery struct {
	Term models.Term `json:"term" validate:"required,oneof=FIRST_TERM SECOND_TERM"`
}
