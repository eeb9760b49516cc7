package enums

import "fmt"

// ImportStatus tracks a direct import run from start to its single finalization.
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusPartial    ImportStatus = "partial"
	ImportStatusFailed     ImportStatus = "failed"
)

var validImportStatuses = []ImportStatus{
	ImportStatusPending,
	ImportStatusProcessing,
	ImportStatusCompleted,
	ImportStatusPartial,
	ImportStatusFailed,
}

// String implements fmt.Stringer.
func (i ImportStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known import status.
func (i ImportStatus) IsValid() bool {
	for _, candidate := range validImportStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseImportStatus converts raw input into ImportStatus.
func ParseImportStatus(value string) (ImportStatus, error) {
	for _, candidate := range validImportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid import status %q", value)
}

// IsTerminal reports whether the run has been finalized.
func (i ImportStatus) IsTerminal() bool {
	return i == ImportStatusCompleted || i == ImportStatusPartial || i == ImportStatusFailed
}
