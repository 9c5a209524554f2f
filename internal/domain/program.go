package domain

import "time"

// EnrollmentStatus is the lifecycle state of a user's enrollment in a program.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusPaused    EnrollmentStatus = "PAUSED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// Program is the root of a fixed-length schedule.
type Program struct {
	ID          int64
	Name        string
	Description string
	TotalDays   int
}

// Enrollment grants a user access to a program's schedule and progress.
type Enrollment struct {
	UserID    int64
	ProgramID int64
	Status    EnrollmentStatus
	StartDate time.Time
}

// Frequency is the display tag describing how often an activity is performed.
type Frequency string

const (
	FrequencyMaximize Frequency = "MAXIMIZE"
	FrequencyDaily1x  Frequency = "DAILY_1X"
	FrequencyDaily2x  Frequency = "DAILY_2X"
	FrequencyDaily3x  Frequency = "DAILY_3X"
	FrequencyWeekly2x Frequency = "WEEKLY_2X"
	FrequencyWeekly3x Frequency = "WEEKLY_3X"
)

// TimeMode is the display tag describing how long one occurrence lasts.
type TimeMode string

const (
	TimeModeMax    TimeMode = "MAX"
	TimeModeSec30  TimeMode = "SEC_30"
	TimeModeSec60  TimeMode = "SEC_60"
	TimeModeSec90  TimeMode = "SEC_90"
	TimeModeSec120 TimeMode = "SEC_120"
)

// Activity is a program-level template. It does not vary by day.
type Activity struct {
	ID                   int64
	ProgramID            int64
	Title                string
	Category             string
	Frequency            Frequency
	TimeMode             TimeMode
	SuggestedDurationSec int
	DefaultOccurrences   int
	SortOrder            int
	// Rule is nil when the activity has no scheduling rule; such activities are never scheduled.
	Rule *SchedulingRule
}

// DayPlan is the (program, day) container for scheduled activities.
type DayPlan struct {
	ID         int64
	ProgramID  int64
	DayNumber  int
	Title      string
	Activities []ScheduledActivity
}

// ScheduledActivity is the materialised (day plan, activity) pairing.
type ScheduledActivity struct {
	ID                 int64
	DayPlanID          int64
	ActivityID         int64
	PlannedOccurrences int
	SortOrder          int
	IsActive           bool
	Activity           Activity
}

// ScheduledActivityRef is the minimal view the completion path needs.
type ScheduledActivityRef struct {
	ID                 int64
	ProgramID          int64
	PlannedOccurrences int
}

// Progress is one completed occurrence. Rows are append-only.
type Progress struct {
	UserID              int64
	ScheduledActivityID int64
	OccurrenceNumber    int
	CompletedAt         time.Time
}

// Completion is the result of recording one occurrence.
type Completion struct {
	Progress             Progress
	CompletedOccurrences int
	// PlannedOccurrences is the ceiling enforced while the scheduled activity was locked.
	PlannedOccurrences int
}
