// Package wizard is the item sub-wizard nested inside an item session: at
// most one item form (create or edit) is open at a time.
package wizard

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

var (
	// ErrWizardActive rejects opening a second form; requests are never queued.
	ErrWizardActive   = errors.New("item wizard already active")
	ErrWizardInactive = errors.New("item wizard is not active")
	ErrNotCreating    = errors.New("item wizard is not in create mode")
	ErrNotEditing     = errors.New("item wizard is not editing this item")
	ErrMissingItemID  = errors.New("item id is required to edit")
)

// State is the wizard sub-state of one session.
type State struct {
	Mode          enums.WizardMode
	EditingItemID *uuid.UUID
}

// Inactive returns the closed wizard state.
func Inactive() State {
	return State{Mode: enums.WizardModeInactive}
}

// FromSession rebuilds the wizard state from persisted fields, normalizing
// unknown or empty modes to inactive.
func FromSession(mode enums.WizardMode, editingItemID *uuid.UUID) State {
	switch mode {
	case enums.WizardModeCreate:
		return State{Mode: enums.WizardModeCreate}
	case enums.WizardModeEdit:
		if editingItemID == nil || *editingItemID == uuid.Nil {
			return Inactive()
		}
		id := *editingItemID
		return State{Mode: enums.WizardModeEdit, EditingItemID: &id}
	}
	return Inactive()
}

// Active reports whether a form is open.
func (s State) Active() bool {
	return s.Mode.IsActive()
}

// Matches reports whether the wizard is editing the provided item.
func (s State) Matches(itemID uuid.UUID) bool {
	return s.Mode == enums.WizardModeEdit && s.EditingItemID != nil && *s.EditingItemID == itemID
}

// StartNew opens the create form.
func (s State) StartNew() (State, error) {
	if s.Active() {
		return s, s.activeErr()
	}
	return State{Mode: enums.WizardModeCreate}, nil
}

// StartEdit opens the edit form for itemID.
func (s State) StartEdit(itemID uuid.UUID) (State, error) {
	if itemID == uuid.Nil {
		return s, ErrMissingItemID
	}
	if s.Active() {
		return s, s.activeErr()
	}
	id := itemID
	return State{Mode: enums.WizardModeEdit, EditingItemID: &id}, nil
}

// Close discards the open form. Closing an inactive wizard is a no-op.
func (s State) Close() State {
	return Inactive()
}

// CommitCreate closes the create form after the new item was persisted.
func (s State) CommitCreate() (State, error) {
	if s.Mode != enums.WizardModeCreate {
		return s, ErrNotCreating
	}
	return Inactive(), nil
}

// CommitEdit closes the edit form after itemID was persisted.
func (s State) CommitEdit(itemID uuid.UUID) (State, error) {
	if !s.Matches(itemID) {
		return s, ErrNotEditing
	}
	return Inactive(), nil
}

// SessionState maps the wizard mode onto the session screen it implies.
func (s State) SessionState() enums.SessionState {
	if s.Active() {
		return enums.SessionStateWizardActive
	}
	return enums.SessionStateItemsManager
}

func (s State) activeErr() error {
	if s.Mode == enums.WizardModeEdit && s.EditingItemID != nil {
		return fmt.Errorf("%w: editing item %s", ErrWizardActive, s.EditingItemID)
	}
	return fmt.Errorf("%w: %s", ErrWizardActive, s.Mode)
}
