package log

// Common structured field names used across the coordinator.
const (
	FieldService   = "service"
	FieldClientID  = "client_id"
	FieldUserID    = "user_id"
	FieldMeetingID = "meeting_id"
	FieldEvent     = "event"
)
