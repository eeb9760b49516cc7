package enums

import "fmt"

// AvailabilityStatus classifies a requested line against free stock.
type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityPartial     AvailabilityStatus = "partial"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityNotFound    AvailabilityStatus = "not_found"
)

var validAvailabilityStatuses = []AvailabilityStatus{
	AvailabilityAvailable,
	AvailabilityPartial,
	AvailabilityUnavailable,
	AvailabilityNotFound,
}

// String implements fmt.Stringer.
func (a AvailabilityStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known availability status.
func (a AvailabilityStatus) IsValid() bool {
	for _, candidate := range validAvailabilityStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAvailabilityStatus converts raw input into AvailabilityStatus.
func ParseAvailabilityStatus(value string) (AvailabilityStatus, error) {
	for _, candidate := range validAvailabilityStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid availability status %q", value)
}
