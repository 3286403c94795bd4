package enums

import "fmt"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
}

func (p Priority) String() string {
	return string(p)
}

func (p Priority) IsValid() bool {
	for _, candidate := range validPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePriority converts raw input into a Priority, defaulting blanks to medium.
func ParsePriority(value string) (Priority, error) {
	if value == "" {
		return PriorityMedium, nil
	}
	for _, candidate := range validPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q", value)
}
