// Package navigation gates movement between the four order creation stages.
// Navigation operations never fail: persistence problems are logged and
// counted while the in-memory state stays authoritative for the caller.
package navigation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/validation"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
)

// Navigator owns the navigation state of one order.
type Navigator struct {
	mu      sync.Mutex
	state   State
	ready   map[int]bool
	gates   map[int]StageGate
	store   StateStore
	metrics *metrics.NavigationMetrics
	logg    *logger.Logger
	subs    map[int]func(State)
	nextSub int
	now     func() time.Time
}

// Option customizes a Navigator.
type Option func(*Navigator)

// WithStore makes navigation durable.
func WithStore(store StateStore) Option {
	return func(n *Navigator) { n.store = store }
}

// WithGate registers the gate of one stage.
func WithGate(stage int, gate StageGate) Option {
	return func(n *Navigator) {
		if validStage(stage) && gate != nil {
			n.gates[stage] = gate
		}
	}
}

// WithMetrics records transitions and persistence failures.
func WithMetrics(m *metrics.NavigationMetrics) Option {
	return func(n *Navigator) { n.metrics = m }
}

// WithLogger logs persistence failures.
func WithLogger(logg *logger.Logger) Option {
	return func(n *Navigator) { n.logg = logg }
}

// New returns a navigator at stage 1 with nothing completed.
func New(orderID uuid.UUID, opts ...Option) *Navigator {
	n := &Navigator{
		state: InitialState(orderID),
		ready: map[int]bool{},
		gates: map[int]StageGate{},
		subs:  map[int]func(State){},
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Load replaces the in-memory state with the stored one, if any. It reports
// whether stored state was found.
func (n *Navigator) Load(ctx context.Context) bool {
	if n.store == nil {
		return false
	}
	orderID := n.OrderID()
	stored, err := n.store.Load(ctx, orderID)
	if err != nil {
		n.persistFailed(ctx, "load", err)
		return false
	}
	if stored == nil {
		return false
	}
	n.mu.Lock()
	n.state = stored.normalize()
	n.state.OrderID = orderID
	snapshot := n.state.clone()
	n.mu.Unlock()
	n.publish(snapshot)
	return true
}

// OrderID returns the order the navigator belongs to.
func (n *Navigator) OrderID() uuid.UUID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.OrderID
}

// State returns a copy of the current navigation state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.clone()
}

// CurrentStage returns the active stage.
func (n *Navigator) CurrentStage() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.CurrentStage
}

// SetCurrentStage moves to stage unconditionally. Out of range values are
// clamped to the first or last stage.
func (n *Navigator) SetCurrentStage(ctx context.Context, stage int) {
	n.apply(ctx, "set_current", func(s *State) {
		s.CurrentStage = clampStage(stage)
	})
}

// MarkStageCompleted records stage as completed. Repeated calls are no-ops.
func (n *Navigator) MarkStageCompleted(ctx context.Context, stage int) {
	if !validStage(stage) {
		return
	}
	n.apply(ctx, "mark_completed", func(s *State) {
		if !s.Completed(stage) {
			s.CompletedStages = append(s.CompletedStages, stage)
		}
	})
}

// CanNavigateToStage reports whether stage is at or behind the current stage
// or was completed.
func (n *Navigator) CanNavigateToStage(stage int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return canNavigate(n.state, stage)
}

func canNavigate(s State, stage int) bool {
	if !validStage(stage) {
		return false
	}
	return stage <= s.CurrentStage || s.Completed(stage)
}

// NavigateToStage moves to stage when allowed and silently ignores the call
// otherwise. It reports whether the move happened.
func (n *Navigator) NavigateToStage(ctx context.Context, stage int) bool {
	moved := false
	n.apply(ctx, "navigate", func(s *State) {
		if canNavigate(*s, stage) {
			s.CurrentStage = stage
			moved = true
		}
	})
	return moved
}

// GoToNextStage advances one stage when the next one is reachable.
func (n *Navigator) GoToNextStage(ctx context.Context) bool {
	return n.NavigateToStage(ctx, n.CurrentStage()+1)
}

// GoToPreviousStage steps back one stage, stopping at the first.
func (n *Navigator) GoToPreviousStage(ctx context.Context) {
	n.apply(ctx, "previous", func(s *State) {
		s.CurrentStage = clampStage(s.CurrentStage - 1)
	})
}

// ResetNavigation returns to stage 1 with nothing completed.
func (n *Navigator) ResetNavigation(ctx context.Context) {
	n.mu.Lock()
	n.ready = map[int]bool{}
	n.mu.Unlock()
	n.apply(ctx, "reset", func(s *State) {
		*s = InitialState(s.OrderID)
	})
}

// StageStatus derives the progress marker of stage.
func (n *Navigator) StageStatus(stage int) enums.StageStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case !validStage(stage):
		return enums.StageStatusNotStarted
	case n.state.Completed(stage):
		return enums.StageStatusCompleted
	case n.ready[stage] && stage <= n.state.CurrentStage:
		return enums.StageStatusReady
	case stage <= n.state.CurrentStage:
		return enums.StageStatusInProgress
	default:
		return enums.StageStatusNotStarted
	}
}

// CanProceed runs the current stage's gate. Stages without a gate may always
// proceed.
func (n *Navigator) CanProceed(ctx context.Context) (bool, validation.Result) {
	stage := n.CurrentStage()
	res := n.check(ctx, stage)
	return res.IsValid, res
}

// CompleteStage validates stage through its gate, lets the gate finalize it,
// marks it completed and advances when it is the current stage. The returned
// result carries the gate's findings or the finalization error.
func (n *Navigator) CompleteStage(ctx context.Context, stage int) (bool, validation.Result) {
	if !validStage(stage) {
		res := validation.Valid()
		res.Add("stage", fmt.Sprintf("must be between %d and %d", FirstStage, StageCount))
		return false, res
	}
	res := n.check(ctx, stage)
	if !res.IsValid {
		return false, res
	}
	if gate := n.gate(stage); gate != nil {
		if err := gate.Complete(ctx); err != nil {
			n.setReady(stage, false)
			res.Add("stage", err.Error())
			return false, res
		}
	}
	n.apply(ctx, "complete", func(s *State) {
		if !s.Completed(stage) {
			s.CompletedStages = append(s.CompletedStages, stage)
		}
		if s.CurrentStage == stage && stage < StageCount {
			s.CurrentStage = stage + 1
		}
	})
	return true, res
}

// Subscribe registers fn for every state change and returns its cancel func.
func (n *Navigator) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Navigator) check(ctx context.Context, stage int) validation.Result {
	gate := n.gate(stage)
	if gate == nil {
		n.setReady(stage, true)
		return validation.Valid()
	}
	res := gate.Check(ctx)
	n.setReady(stage, res.IsValid)
	return res
}

func (n *Navigator) gate(stage int) StageGate {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gates[stage]
}

func (n *Navigator) setReady(stage int, ready bool) {
	n.mu.Lock()
	n.ready[stage] = ready
	n.mu.Unlock()
}

// apply mutates the state under the lock, then persists and notifies outside
// of it. Unchanged states are neither saved nor published.
func (n *Navigator) apply(ctx context.Context, action string, fn func(*State)) {
	n.mu.Lock()
	before := n.state.clone()
	next := n.state.clone()
	fn(&next)
	next = next.normalize()
	changed := next.CurrentStage != before.CurrentStage || !sameStages(next.CompletedStages, before.CompletedStages)
	if changed {
		next.UpdatedAt = n.now()
		n.state = next
	}
	snapshot := n.state.clone()
	n.mu.Unlock()

	if !changed {
		return
	}
	n.metrics.IncTransition(action)
	n.persist(ctx, snapshot)
	n.publish(snapshot)
}

func (n *Navigator) persist(ctx context.Context, state State) {
	if n.store == nil {
		return
	}
	if err := n.store.Save(ctx, state); err != nil {
		n.persistFailed(ctx, "save", err)
	}
}

func (n *Navigator) persistFailed(ctx context.Context, op string, err error) {
	n.metrics.IncPersistFailure(op)
	if n.logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"order_id": n.OrderID().String(),
		"op":       op,
	})
	n.logg.Warn(logCtx, fmt.Sprintf("navigation state %s failed: %v", op, err))
}

func (n *Navigator) publish(state State) {
	n.mu.Lock()
	subs := make([]func(State), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()
	for _, fn := range subs {
		fn(state.clone())
	}
}

func sameStages(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
