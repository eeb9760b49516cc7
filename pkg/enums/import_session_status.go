package enums

import "fmt"

// ImportSessionStatus is the lifecycle state of a staged import session.
type ImportSessionStatus string

const (
	ImportSessionPending   ImportSessionStatus = "pending"
	ImportSessionPreview   ImportSessionStatus = "preview"
	ImportSessionCompleted ImportSessionStatus = "completed"
	ImportSessionCancelled ImportSessionStatus = "cancelled"
)

var validImportSessionStatuses = []ImportSessionStatus{
	ImportSessionPending,
	ImportSessionPreview,
	ImportSessionCompleted,
	ImportSessionCancelled,
}

// String implements fmt.Stringer.
func (i ImportSessionStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known import session status.
func (i ImportSessionStatus) IsValid() bool {
	for _, candidate := range validImportSessionStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseImportSessionStatus converts raw input into ImportSessionStatus.
func ParseImportSessionStatus(value string) (ImportSessionStatus, error) {
	for _, candidate := range validImportSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid import session status %q", value)
}

// CanCancel reports whether a session in this state may still be cancelled.
func (i ImportSessionStatus) CanCancel() bool {
	return i == ImportSessionPending || i == ImportSessionPreview
}
