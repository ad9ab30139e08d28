package model

type WarningCode string

const (
	WarningDependencyDegraded WarningCode = "DEPENDENCY_DEGRADED"
	WarningNotificationFailed WarningCode = "NOTIFICATION_FAILED"
)

// Warning is a soft failure returned alongside a successful primary result.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	// Reference names the affected entity, e.g. an appointment id.
	Reference string `json:"reference,omitempty"`
}
