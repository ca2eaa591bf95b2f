package enums

import "fmt"

// DuesStatus is the requested state of a member's dues period.
type DuesStatus string

const (
	DuesStatusPaid   DuesStatus = "paid"
	DuesStatusUnpaid DuesStatus = "unpaid"
)

var validDuesStatuses = []DuesStatus{
	DuesStatusPaid,
	DuesStatusUnpaid,
}

// IsValid reports whether the value matches a known dues status.
func (s DuesStatus) IsValid() bool {
	for _, candidate := range validDuesStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseDuesStatus converts raw input into DuesStatus.
func ParseDuesStatus(value string) (DuesStatus, error) {
	for _, candidate := range validDuesStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dues status %q", value)
}
