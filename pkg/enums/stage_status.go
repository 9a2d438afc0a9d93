package enums

import "fmt"

// StageStatus is the progress marker of one order creation stage.
type StageStatus string

const (
	StageStatusNotStarted StageStatus = "NOT_STARTED"
	StageStatusInProgress StageStatus = "IN_PROGRESS"
	StageStatusReady      StageStatus = "READY"
	StageStatusCompleted  StageStatus = "COMPLETED"
)

var validStageStatuss = []StageStatus{
	StageStatusNotStarted,
	StageStatusInProgress,
	StageStatusReady,
	StageStatusCompleted,
}

// String implements fmt.Stringer.
func (s StageStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StageStatus.
func (s StageStatus) IsValid() bool {
	for _, candidate := range validStageStatuss {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStageStatus converts raw input into a StageStatus.
func ParseStageStatus(value string) (StageStatus, error) {
	for _, candidate := range validStageStatuss {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stage status %q", value)
}
