// Package events defines the payloads published through the outbox.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeOccurrenceCompleted = "progress.occurrence_completed"
	TypeScheduleRegenerated = "schedule.regenerated"
)

// OccurrenceCompleted is emitted when a user records one occurrence of a scheduled activity.
type OccurrenceCompleted struct {
	UserID               int64     `json:"user_id"`
	ProgramID            int64     `json:"program_id"`
	DayPlanActivityID    int64     `json:"day_plan_activity_id"`
	OccurrenceNumber     int       `json:"occurrence_number"`
	CompletedOccurrences int       `json:"completed_occurrences"`
	PlannedOccurrences   int       `json:"planned_occurrences"`
	CompletedAt          time.Time `json:"completed_at"`
}

// ScheduleRegenerated summarises one reconciliation run for a program.
type ScheduleRegenerated struct {
	ProgramID  int64     `json:"program_id"`
	RunID      string    `json:"run_id"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Retired    int       `json:"retired"`
	Deleted    int       `json:"deleted"`
	OccurredAt time.Time `json:"occurred_at"`
}
