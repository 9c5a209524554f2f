package outbox

import "github.com/vishaldhankecha/prodigy-api/internal/events"

const occurrenceCompletedSchema = `{
  "type": "object",
  "title": "OccurrenceCompleted",
  "properties": {
    "user_id": {"type": "integer"},
    "program_id": {"type": "integer"},
    "day_plan_activity_id": {"type": "integer"},
    "occurrence_number": {"type": "integer", "minimum": 1},
    "completed_occurrences": {"type": "integer", "minimum": 1},
    "planned_occurrences": {"type": "integer", "minimum": 1},
    "completed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "program_id", "day_plan_activity_id", "occurrence_number", "completed_occurrences", "planned_occurrences", "completed_at"],
  "additionalProperties": false
}`

const scheduleRegeneratedSchema = `{
  "type": "object",
  "title": "ScheduleRegenerated",
  "properties": {
    "program_id": {"type": "integer"},
    "run_id": {"type": "string"},
    "created": {"type": "integer", "minimum": 0},
    "updated": {"type": "integer", "minimum": 0},
    "retired": {"type": "integer", "minimum": 0},
    "deleted": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["program_id", "run_id", "created", "updated", "retired", "deleted", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps an event type to its JSON schema.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeOccurrenceCompleted: {Schema: occurrenceCompletedSchema},
	events.TypeScheduleRegenerated: {Schema: scheduleRegeneratedSchema},
}
