package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Job statuses. Jobs use their own in-progress vocabulary.
const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCancelled  = "cancelled"
	JobStatusCompleted  = "completed"
)

const (
	CustomerStatusActive   = "active"
	CustomerStatusInactive = "inactive"
)

const (
	NotifySuccess = "success"
	NotifyError   = "error"
)

const (
	DateLayout = "2006-01-02"

	// DefaultTechnicianName is shown on jobs without a resolvable technician.
	DefaultTechnicianName = "Unassigned"

	// DefaultPreviewTTL is the invoice preview session lifetime in minutes.
	DefaultPreviewTTL = 30

	// DefaultEditStateTTL is how long an edit state is kept, in seconds.
	DefaultEditStateTTL = 24 * 60 * 60 // 24h
)
