package enums

import "fmt"

// WizardMode tracks whether an item create/edit form is open within a session.
type WizardMode string

const (
	WizardModeInactive WizardMode = "inactive"
	WizardModeCreate   WizardMode = "create"
	WizardModeEdit     WizardMode = "edit"
)

var validWizardModes = []WizardMode{
	WizardModeInactive,
	WizardModeCreate,
	WizardModeEdit,
}

// String implements fmt.Stringer.
func (w WizardMode) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WizardMode.
func (w WizardMode) IsValid() bool {
	for _, candidate := range validWizardModes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWizardMode converts raw input into a WizardMode.
func ParseWizardMode(value string) (WizardMode, error) {
	for _, candidate := range validWizardModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wizard mode %q", value)
}

// IsActive reports whether an item form is currently open.
func (w WizardMode) IsActive() bool {
	return w == WizardModeCreate || w == WizardModeEdit
}
