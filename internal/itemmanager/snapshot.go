package itemmanager

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/itemsessions"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// Intent is the operation currently waiting on the remote store.
type Intent struct {
	Operation string    `json:"operation"`
	StartedAt time.Time `json:"started_at"`
}

// Snapshot is the read-only view of the manager published to subscribers.
// Retryable marks a failure the same call may recover from.
type Snapshot struct {
	SessionID     *uuid.UUID             `json:"session_id"`
	OrderID       *uuid.UUID             `json:"order_id"`
	State         enums.SessionState     `json:"state"`
	WizardMode    enums.WizardMode       `json:"wizard_mode"`
	EditingItemID *uuid.UUID             `json:"editing_item_id"`
	Items         []itemsessions.ItemDTO `json:"items"`
	TotalAmount   int64                  `json:"total_amount_cents"`
	ItemCount     int                    `json:"item_count"`
	CanProceed    bool                   `json:"can_proceed"`
	Currency      string                 `json:"currency"`
	Version       int64                  `json:"version"`
	Validation    *validation.Result     `json:"validation,omitempty"`
	Ready         bool                   `json:"ready"`
	Pending       *Intent                `json:"pending,omitempty"`
	Loading       bool                   `json:"loading"`
	Error         string                 `json:"error,omitempty"`
	ErrorCode     pkgerrors.Code         `json:"error_code,omitempty"`
	Retryable     bool                   `json:"retryable,omitempty"`
}

func initialSnapshot() Snapshot {
	return Snapshot{
		State:      enums.SessionStateNotStarted,
		WizardMode: enums.WizardModeInactive,
		Items:      []itemsessions.ItemDTO{},
	}
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.SessionID = cloneID(s.SessionID)
	out.OrderID = cloneID(s.OrderID)
	out.EditingItemID = cloneID(s.EditingItemID)
	out.Items = make([]itemsessions.ItemDTO, len(s.Items))
	copy(out.Items, s.Items)
	if s.Validation != nil {
		v := validation.Valid()
		v.Merge("", *s.Validation)
		out.Validation = &v
	}
	if s.Pending != nil {
		p := *s.Pending
		out.Pending = &p
	}
	return out
}

// adopt overwrites every server owned field from an authoritative response.
func (s *Snapshot) adopt(dto *itemsessions.SessionDTO) {
	id := dto.ID
	orderID := dto.OrderID
	s.SessionID = &id
	s.OrderID = &orderID
	s.State = dto.State
	s.WizardMode = dto.WizardMode
	s.EditingItemID = cloneID(dto.EditingItemID)
	s.Items = make([]itemsessions.ItemDTO, len(dto.Items))
	copy(s.Items, dto.Items)
	s.TotalAmount = dto.TotalAmount
	s.ItemCount = dto.ItemCount
	s.CanProceed = dto.CanProceed
	s.Currency = dto.Currency
	s.Version = dto.Version
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}
