package itemmanager

import (
	"context"

	"github.com/angelmondragon/orderflow-backend/internal/navigation"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// ItemStage is the navigation stage the manager gates.
const ItemStage = 2

var _ navigation.StageGate = (*Manager)(nil)

// Check runs the readiness check and returns its findings.
func (m *Manager) Check(ctx context.Context) validation.Result {
	ready := m.CheckReadiness(ctx)
	snap := m.Snapshot()
	if !ready && snap.Error != "" {
		res := validation.Valid()
		res.Add("session", snap.Error)
		return res
	}
	if snap.Validation == nil {
		return validation.Valid()
	}
	res := *snap.Validation
	if !ready && res.IsValid {
		res.Add("session", "items stage is not ready")
	}
	return res
}

// Complete finalizes the session after a passing Check.
func (m *Manager) Complete(ctx context.Context) error {
	if m.CompleteStage(ctx) {
		return nil
	}
	snap := m.Snapshot()
	code := snap.ErrorCode
	if code == "" {
		code = pkgerrors.CodeInternal
	}
	return pkgerrors.New(code, snap.Error)
}
