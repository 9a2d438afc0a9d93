package enums

import "fmt"

// SessionState is the lifecycle position of an item session.
type SessionState string

const (
	SessionStateNotStarted     SessionState = "NOT_STARTED"
	SessionStateInitializing   SessionState = "INITIALIZING"
	SessionStateItemsManager   SessionState = "ITEMS_MANAGER_SCREEN"
	SessionStateWizardActive   SessionState = "ITEM_WIZARD_ACTIVE"
	SessionStateReadyToProceed SessionState = "READY_TO_PROCEED"
	SessionStateCompleted      SessionState = "COMPLETED"
	SessionStateError          SessionState = "ERROR"
)

var validSessionStates = []SessionState{
	SessionStateNotStarted,
	SessionStateInitializing,
	SessionStateItemsManager,
	SessionStateWizardActive,
	SessionStateReadyToProceed,
	SessionStateCompleted,
	SessionStateError,
}

// String implements fmt.Stringer.
func (s SessionState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SessionState.
func (s SessionState) IsValid() bool {
	for _, candidate := range validSessionStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionState converts raw input into a SessionState.
func ParseSessionState(value string) (SessionState, error) {
	for _, candidate := range validSessionStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session state %q", value)
}

// AcceptsMutations reports whether items and wizard state may still change.
func (s SessionState) AcceptsMutations() bool {
	switch s {
	case SessionStateItemsManager, SessionStateWizardActive, SessionStateReadyToProceed:
		return true
	}
	return false
}

// AcceptsReset reports whether the session may be emptied. A completed or
// failed session is reopened by a reset.
func (s SessionState) AcceptsReset() bool {
	return s.AcceptsMutations() || s == SessionStateCompleted || s == SessionStateError
}
