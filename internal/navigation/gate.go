package navigation

import (
	"context"

	"github.com/angelmondragon/orderflow-backend/internal/validation"
)

// StageGate decides whether a stage may be completed and performs any
// finalization the stage owns.
type StageGate interface {
	// Check validates the stage without side effects on navigation.
	Check(ctx context.Context) validation.Result
	// Complete finalizes the stage. It is only called after Check passed.
	Complete(ctx context.Context) error
}

// FormGate adapts a form snapshot provider to StageGate. Forms have nothing to
// finalize, so Complete is a no-op.
type FormGate[T any] struct {
	snapshot func() T
	validate func(T) validation.Result
}

// NewFormGate builds a gate that validates the snapshot returned by snapshot.
func NewFormGate[T any](snapshot func() T, validate func(T) validation.Result) *FormGate[T] {
	return &FormGate[T]{snapshot: snapshot, validate: validate}
}

func (g *FormGate[T]) Check(context.Context) validation.Result {
	if g == nil || g.snapshot == nil || g.validate == nil {
		return validation.Valid()
	}
	return g.validate(g.snapshot())
}

func (g *FormGate[T]) Complete(context.Context) error { return nil }

// ClientStageGate gates stage 1.
func ClientStageGate(snapshot func() validation.ClientStage) *FormGate[validation.ClientStage] {
	return NewFormGate(snapshot, validation.ValidateClientStage)
}

// OrderParamsGate gates stage 3.
func OrderParamsGate(snapshot func() validation.OrderParams) *FormGate[validation.OrderParams] {
	return NewFormGate(snapshot, validation.ValidateOrderParams)
}

// ConfirmationGate gates stage 4.
func ConfirmationGate(snapshot func() validation.Confirmation) *FormGate[validation.Confirmation] {
	return NewFormGate(snapshot, validation.ValidateConfirmation)
}
