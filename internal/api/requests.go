package api

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DayPlanRequest carries the path and query parameters of the day view.
type DayPlanRequest struct {
	ProgramID int64 `json:"programId" validate:"required,min=1"`
	Day       int   `json:"day" validate:"required,min=1"`
	UserID    int64 `json:"userId" validate:"required,min=1"`
}

// WeeklyOverviewRequest carries the path and query parameters of the week rollup.
type WeeklyOverviewRequest struct {
	ProgramID  int64 `json:"programId" validate:"required,min=1"`
	WeekNumber int   `json:"weekNumber" validate:"required,min=1"`
	UserID     int64 `json:"userId" validate:"required,min=1"`
}

// CompleteActivityRequest is the payload for PATCH /activities/{id}/complete.
type CompleteActivityRequest struct {
	ScheduledActivityID int64 `json:"id" validate:"required,min=1"`
	UserID              int64 `json:"userId" validate:"required,min=1"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validateRequest checks the struct tags, then bounds field by the configured upper limit.
func (h *Handler) validateRequest(req any, field string, value, upper int) error {
	if err := h.validate.Struct(req); err != nil {
		return errors.New(validationDetail(err))
	}
	if err := h.validate.Var(value, "max="+strconv.Itoa(upper)); err != nil {
		return errors.New(fieldMessage(field, "max", strconv.Itoa(upper)))
	}
	return nil
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid input"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe.Field(), fe.Tag(), fe.Param()))
	}
	return strings.Join(msgs, ", ")
}

func fieldMessage(field, tag, param string) string {
	switch tag {
	case "required", "min":
		return fmt.Sprintf("%s must be a positive integer", field)
	case "max":
		return fmt.Sprintf("%s must be between 1 and %s", field, param)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
