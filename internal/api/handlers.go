// Package api exposes the HTTP handlers for day plans, weekly overviews and completions.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vishaldhankecha/prodigy-api/internal/domain"
)

// HandlerOption configures optional Handler behaviour.
type HandlerOption func(*Handler)

// WithLogger overrides the logger used for unexpected failures.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxDays sets the largest day number the day view accepts. Weeks are bounded accordingly.
func WithMaxDays(days int) HandlerOption {
	return func(h *Handler) {
		if days > 0 {
			h.maxDays = days
		}
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	validate *validator.Validate
	logger   *slog.Logger
	maxDays  int
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:  service,
		validate: newValidator(),
		logger:   slog.Default(),
		maxDays:  30,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /programs/{programId}/days/{day}", h.getDayPlan)
	mux.HandleFunc("GET /programs/{programId}/weeks/{weekNumber}", h.getWeeklyOverview)
	mux.HandleFunc("PATCH /activities/{id}/complete", h.completeActivity)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) getDayPlan(w http.ResponseWriter, r *http.Request) {
	req := DayPlanRequest{
		ProgramID: parseID(r.PathValue("programId")),
		Day:       parseInt(r.PathValue("day")),
		UserID:    parseID(r.URL.Query().Get("userId")),
	}
	// maxDays caps every program; the service then bounds day by the program's own length.
	if err := h.validateRequest(req, "day", req.Day, h.maxDays); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	view, err := h.service.GetDayPlan(r.Context(), domain.GetDayPlanInput{
		ProgramID: req.ProgramID,
		Day:       req.Day,
		UserID:    req.UserID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDayPlanResponse(view))
}

func (h *Handler) getWeeklyOverview(w http.ResponseWriter, r *http.Request) {
	req := WeeklyOverviewRequest{
		ProgramID:  parseID(r.PathValue("programId")),
		WeekNumber: parseInt(r.PathValue("weekNumber")),
		UserID:     parseID(r.URL.Query().Get("userId")),
	}
	if err := h.validateRequest(req, "weekNumber", req.WeekNumber, h.maxWeeks()); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	overview, err := h.service.GetWeeklyOverview(r.Context(), domain.WeeklyOverviewInput{
		ProgramID:  req.ProgramID,
		WeekNumber: req.WeekNumber,
		UserID:     req.UserID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toWeeklyOverviewResponse(overview))
}

func (h *Handler) completeActivity(w http.ResponseWriter, r *http.Request) {
	var req CompleteActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	req.ScheduledActivityID = parseID(r.PathValue("id"))
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", validationDetail(err))
		return
	}

	result, err := h.service.CompleteActivity(r.Context(), domain.CompleteActivityInput{
		ScheduledActivityID: req.ScheduledActivityID,
		UserID:              req.UserID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CompletionResponse{
		DayPlanActivityID:    result.ScheduledActivityID,
		UserID:               result.UserID,
		CompletedOccurrence:  result.CompletedOccurrence,
		CompletedOccurrences: result.CompletedOccurrences,
		PlannedOccurrences:   result.PlannedOccurrences,
		Completed:            result.Completed,
		CompletedAt:          result.CompletedAt,
	})
}

func (h *Handler) maxWeeks() int {
	return (h.maxDays + domain.DaysPerWeek - 1) / domain.DaysPerWeek
}

// writeDomainError translates domain errors into the status codes clients rely on.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrRetryable):
		h.logger.Warn("retryable storage conflict", "method", r.Method, "path", r.URL.Path, "error", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusInternalServerError, "retryable", "The request conflicted with a concurrent update; re-read and retry")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Internal Server Error")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parseID returns 0 for anything that is not a base-10 integer so validation reports it.
func parseID(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func parseInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// DayPlanResponse is the body of GET /programs/{programId}/days/{day}.
type DayPlanResponse struct {
	ProgramID            int64             `json:"programId"`
	Day                  int               `json:"day"`
	Title                string            `json:"title"`
	CompletionPercentage int               `json:"completionPercentage"`
	Activities           []DayActivityView `json:"activities"`
}

// DayActivityView is one scheduled activity with the user's progress.
type DayActivityView struct {
	ID                   int64  `json:"id"`
	ActivityID           int64  `json:"activityId"`
	Title                string `json:"title"`
	Category             string `json:"category"`
	Frequency            string `json:"frequency"`
	TimeMode             string `json:"timeMode"`
	SuggestedDurationSec int    `json:"suggestedDurationSec"`
	PlannedOccurrences   int    `json:"plannedOccurrences"`
	CompletedOccurrences int    `json:"completedOccurrences"`
	Completed            bool   `json:"completed"`
}

// WeeklyOverviewResponse is the body of GET /programs/{programId}/weeks/{weekNumber}.
type WeeklyOverviewResponse struct {
	ProgramID  int64            `json:"programId"`
	WeekNumber int              `json:"weekNumber"`
	Days       []DaySummaryView `json:"days"`
}

// DaySummaryView is one day of the weekly rollup.
type DaySummaryView struct {
	Day                  int `json:"day"`
	CompletionPercentage int `json:"completionPercentage"`
	ActivitiesPlanned    int `json:"activitiesPlanned"`
	PlannedOccurrences   int `json:"plannedOccurrences"`
	CompletedOccurrences int `json:"completedOccurrences"`
}

// CompletionResponse is the body of PATCH /activities/{id}/complete.
type CompletionResponse struct {
	DayPlanActivityID    int64     `json:"dayPlanActivityId"`
	UserID               int64     `json:"userId"`
	CompletedOccurrence  int       `json:"completedOccurrence"`
	CompletedOccurrences int       `json:"completedOccurrences"`
	PlannedOccurrences   int       `json:"plannedOccurrences"`
	Completed            bool      `json:"completed"`
	CompletedAt          time.Time `json:"completedAt"`
}

func toDayPlanResponse(view *domain.DayPlanView) DayPlanResponse {
	activities := make([]DayActivityView, 0, len(view.Activities))
	for _, a := range view.Activities {
		activities = append(activities, DayActivityView{
			ID:                   a.ScheduledActivity.ID,
			ActivityID:           a.ScheduledActivity.ActivityID,
			Title:                a.ScheduledActivity.Activity.Title,
			Category:             a.ScheduledActivity.Activity.Category,
			Frequency:            string(a.ScheduledActivity.Activity.Frequency),
			TimeMode:             string(a.ScheduledActivity.Activity.TimeMode),
			SuggestedDurationSec: a.ScheduledActivity.Activity.SuggestedDurationSec,
			PlannedOccurrences:   a.ScheduledActivity.PlannedOccurrences,
			CompletedOccurrences: a.CompletedOccurrences,
			Completed:            a.Completed(),
		})
	}
	return DayPlanResponse{
		ProgramID:            view.ProgramID,
		Day:                  view.Day,
		Title:                view.Title,
		CompletionPercentage: view.Summary.CompletionPercentage,
		Activities:           activities,
	}
}

func toWeeklyOverviewResponse(overview *domain.WeeklyOverview) WeeklyOverviewResponse {
	days := make([]DaySummaryView, 0, len(overview.Days))
	for _, d := range overview.Days {
		days = append(days, DaySummaryView{
			Day:                  d.DayNumber,
			CompletionPercentage: d.CompletionPercentage,
			ActivitiesPlanned:    d.ActivitiesPlanned,
			PlannedOccurrences:   d.PlannedOccurrences,
			CompletedOccurrences: d.CompletedOccurrences,
		})
	}
	return WeeklyOverviewResponse{
		ProgramID:  overview.ProgramID,
		WeekNumber: overview.WeekNumber,
		Days:       days,
	}
}
