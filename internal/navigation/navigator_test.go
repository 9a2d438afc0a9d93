package navigation

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angelmondragon/orderflow-backend/internal/validation"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
)

type stubGate struct {
	result      validation.Result
	completeErr error
	checks      int
	completes   int
}

func (g *stubGate) Check(context.Context) validation.Result {
	g.checks++
	return g.result
}

func (g *stubGate) Complete(context.Context) error {
	g.completes++
	return g.completeErr
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context, uuid.UUID) (*State, error) { return nil, f.err }
func (f failingStore) Save(context.Context, State) error               { return f.err }
func (f failingStore) Delete(context.Context, uuid.UUID) error         { return f.err }

func invalid(field, msg string) validation.Result {
	res := validation.Valid()
	res.Add(field, msg)
	return res
}

func TestCanNavigateToStageProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()
	for i := 0; i < 2000; i++ {
		nav := New(uuid.New())
		current := 1 + rng.Intn(StageCount)
		completed := map[int]bool{}
		for stage := FirstStage; stage <= StageCount; stage++ {
			if rng.Intn(2) == 0 {
				completed[stage] = true
				nav.MarkStageCompleted(ctx, stage)
			}
		}
		nav.SetCurrentStage(ctx, current)
		target := 1 + rng.Intn(StageCount)

		want := target <= current || completed[target]
		if got := nav.CanNavigateToStage(target); got != want {
			t.Fatalf("current=%d completed=%v target=%d: expected %v got %v", current, completed, target, want, got)
		}

		moved := nav.NavigateToStage(ctx, target)
		if moved != want {
			t.Fatalf("navigate result mismatch for target %d", target)
		}
		if want && nav.CurrentStage() != target {
			t.Fatalf("expected stage %d after navigate, got %d", target, nav.CurrentStage())
		}
		if !want && nav.CurrentStage() != current {
			t.Fatalf("disallowed navigate changed stage to %d", nav.CurrentStage())
		}
	}
}

func TestOutOfRangeStagesAreRejected(t *testing.T) {
	nav := New(uuid.New())
	for _, stage := range []int{-1, 0, StageCount + 1} {
		if nav.CanNavigateToStage(stage) {
			t.Fatalf("stage %d should not be navigable", stage)
		}
	}
	nav.MarkStageCompleted(context.Background(), 9)
	if len(nav.State().CompletedStages) != 0 {
		t.Fatalf("unknown stage should not be recorded")
	}
	nav.SetCurrentStage(context.Background(), 12)
	if nav.CurrentStage() != StageCount {
		t.Fatalf("expected clamp to last stage, got %d", nav.CurrentStage())
	}
}

func TestPreviousIsClampedAndNextRequiresReach(t *testing.T) {
	ctx := context.Background()
	nav := New(uuid.New())

	nav.GoToPreviousStage(ctx)
	if nav.CurrentStage() != 1 {
		t.Fatalf("expected clamp at 1, got %d", nav.CurrentStage())
	}
	if nav.GoToNextStage(ctx) {
		t.Fatalf("stage 2 is not reachable before completing it")
	}

	nav.MarkStageCompleted(ctx, 2)
	nav.MarkStageCompleted(ctx, 2)
	if got := nav.State().CompletedStages; len(got) != 1 {
		t.Fatalf("mark completed must be idempotent, got %v", got)
	}
	if !nav.GoToNextStage(ctx) || nav.CurrentStage() != 2 {
		t.Fatalf("expected to reach completed stage 2")
	}
	nav.GoToPreviousStage(ctx)
	if nav.CurrentStage() != 1 {
		t.Fatalf("expected stage 1, got %d", nav.CurrentStage())
	}
}

func TestResetNavigation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orderID := uuid.New()
	nav := New(orderID, WithStore(store))
	nav.MarkStageCompleted(ctx, 1)
	nav.MarkStageCompleted(ctx, 2)
	nav.SetCurrentStage(ctx, 3)

	nav.ResetNavigation(ctx)
	state := nav.State()
	if state.CurrentStage != 1 || len(state.CompletedStages) != 0 {
		t.Fatalf("expected initial state, got %+v", state)
	}
	stored, _ := store.Load(ctx, orderID)
	if stored == nil || stored.CurrentStage != 1 || len(stored.CompletedStages) != 0 {
		t.Fatalf("expected reset to be persisted, got %+v", stored)
	}
}

func TestCompleteStageUsesGate(t *testing.T) {
	ctx := context.Background()
	gate := &stubGate{result: invalid("client_id", "is required")}
	nav := New(uuid.New(), WithGate(1, gate))

	ok, res := nav.CompleteStage(ctx, 1)
	if ok || res.IsValid {
		t.Fatalf("expected invalid gate to block completion")
	}
	if gate.completes != 0 {
		t.Fatalf("complete must not run after a failed check")
	}
	if nav.StageStatus(1) != enums.StageStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", nav.StageStatus(1))
	}

	gate.result = validation.Valid()
	if ready, _ := nav.CanProceed(ctx); !ready {
		t.Fatalf("expected proceed after gate turns valid")
	}
	if nav.StageStatus(1) != enums.StageStatusReady {
		t.Fatalf("expected READY, got %s", nav.StageStatus(1))
	}

	ok, _ = nav.CompleteStage(ctx, 1)
	if !ok {
		t.Fatalf("expected completion")
	}
	if nav.StageStatus(1) != enums.StageStatusCompleted || nav.CurrentStage() != 2 {
		t.Fatalf("expected stage 1 completed and stage 2 current, got %s / %d", nav.StageStatus(1), nav.CurrentStage())
	}
	if nav.StageStatus(3) != enums.StageStatusNotStarted {
		t.Fatalf("expected stage 3 NOT_STARTED")
	}
}

func TestCompleteStageSurfacesGateFinalizationError(t *testing.T) {
	ctx := context.Background()
	gate := &stubGate{result: validation.Valid(), completeErr: errors.New("remote store unavailable")}
	nav := New(uuid.New(), WithGate(2, gate))
	nav.MarkStageCompleted(ctx, 1)
	nav.SetCurrentStage(ctx, 2)

	ok, res := nav.CompleteStage(ctx, 2)
	if ok {
		t.Fatalf("expected failure")
	}
	if msgs := res.Errors["stage"]; len(msgs) != 1 || msgs[0] != "remote store unavailable" {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
	if nav.State().Completed(2) || nav.CurrentStage() != 2 {
		t.Fatalf("failed completion must not change navigation")
	}
}

func TestLastStageCompletionStaysOnLastStage(t *testing.T) {
	ctx := context.Background()
	nav := New(uuid.New())
	nav.SetCurrentStage(ctx, StageCount)
	ok, _ := nav.CompleteStage(ctx, StageCount)
	if !ok || nav.CurrentStage() != StageCount || !nav.State().Completed(StageCount) {
		t.Fatalf("expected last stage completed in place")
	}
}

func TestPersistenceFailuresAreSwallowedAndCounted(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.NewNavigationMetrics(reg)
	nav := New(uuid.New(), WithStore(failingStore{err: errors.New("redis down")}), WithMetrics(m))

	if nav.Load(ctx) {
		t.Fatalf("load should report no state on failure")
	}
	nav.MarkStageCompleted(ctx, 1)
	if !nav.GoToNextStage(ctx) {
		t.Fatalf("navigation must keep working when the store fails")
	}

	count, err := testutil.GatherAndCount(reg, "orderflow_navigation_persist_failures_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected load and save series, got %d", count)
	}
}

func TestLoadRestoresStoredState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orderID := uuid.New()
	_ = store.Save(ctx, State{OrderID: orderID, CurrentStage: 3, CompletedStages: []int{2, 1, 2, 7}})

	nav := New(orderID, WithStore(store))
	if !nav.Load(ctx) {
		t.Fatalf("expected stored state")
	}
	state := nav.State()
	if state.CurrentStage != 3 || len(state.CompletedStages) != 2 || state.CompletedStages[0] != 1 {
		t.Fatalf("expected normalized state, got %+v", state)
	}
	if New(uuid.New(), WithStore(store)).Load(ctx) {
		t.Fatalf("unknown order should have no state")
	}
}

func TestSubscribeReceivesChangesUntilCancelled(t *testing.T) {
	ctx := context.Background()
	nav := New(uuid.New())
	var seen []int
	cancel := nav.Subscribe(func(s State) { seen = append(seen, s.CurrentStage) })

	nav.SetCurrentStage(ctx, 2)
	nav.SetCurrentStage(ctx, 2)
	cancel()
	nav.SetCurrentStage(ctx, 3)

	if len(seen) != 1 || seen[0] != 2 {
		t.Fatalf("expected a single notification for stage 2, got %v", seen)
	}
}

func TestFormGates(t *testing.T) {
	ctx := context.Background()
	client := validation.ClientStage{}
	gate := ClientStageGate(func() validation.ClientStage { return client })
	if gate.Check(ctx).IsValid {
		t.Fatalf("empty client stage must be invalid")
	}
	if err := gate.Complete(ctx); err != nil {
		t.Fatalf("form gates have nothing to finalize: %v", err)
	}

	confirmation := validation.Confirmation{TermsAccepted: true, SignatureCaptured: true, ReceiptDelivery: "print"}
	if res := ConfirmationGate(func() validation.Confirmation { return confirmation }).Check(ctx); !res.IsValid {
		t.Fatalf("expected valid confirmation, got %v", res.Errors)
	}
}
