package enums

import "fmt"

// AsyncStatus is the lifecycle flag a slice exposes while remote operations run.
type AsyncStatus string

const (
	AsyncStatusIdle    AsyncStatus = "idle"
	AsyncStatusLoading AsyncStatus = "loading"
	AsyncStatusError   AsyncStatus = "error"
)

var validAsyncStatuses = []AsyncStatus{
	AsyncStatusIdle,
	AsyncStatusLoading,
	AsyncStatusError,
}

// String implements fmt.Stringer.
func (a AsyncStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AsyncStatus.
func (a AsyncStatus) IsValid() bool {
	for _, candidate := range validAsyncStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAsyncStatus converts raw input into an AsyncStatus.
func ParseAsyncStatus(value string) (AsyncStatus, error) {
	for _, candidate := range validAsyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid async status %q", value)
}
