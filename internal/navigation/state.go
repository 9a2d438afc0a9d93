package navigation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	FirstStage = 1
	StageCount = 4
)

// State is the durable navigation record of one order.
type State struct {
	OrderID         uuid.UUID `json:"order_id"`
	CurrentStage    int       `json:"current_stage"`
	CompletedStages []int     `json:"completed_stages"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// InitialState is the state every order starts from and returns to on reset.
func InitialState(orderID uuid.UUID) State {
	return State{OrderID: orderID, CurrentStage: FirstStage, CompletedStages: []int{}}
}

// Completed reports whether stage n was marked completed.
func (s State) Completed(n int) bool {
	for _, stage := range s.CompletedStages {
		if stage == n {
			return true
		}
	}
	return false
}

func (s State) clone() State {
	out := s
	out.CompletedStages = append([]int{}, s.CompletedStages...)
	return out
}

// normalize clamps the current stage and drops unknown or duplicate entries.
func (s State) normalize() State {
	out := s.clone()
	out.CurrentStage = clampStage(out.CurrentStage)
	seen := map[int]struct{}{}
	stages := make([]int, 0, len(out.CompletedStages))
	for _, n := range out.CompletedStages {
		if !validStage(n) {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		stages = append(stages, n)
	}
	sort.Ints(stages)
	out.CompletedStages = stages
	return out
}

func validStage(n int) bool {
	return n >= FirstStage && n <= StageCount
}

func clampStage(n int) int {
	if n < FirstStage {
		return FirstStage
	}
	if n > StageCount {
		return StageCount
	}
	return n
}

// StateStore persists navigation state. Load returns nil, nil when the order
// has no stored state.
type StateStore interface {
	Load(ctx context.Context, orderID uuid.UUID) (*State, error)
	Save(ctx context.Context, state State) error
	Delete(ctx context.Context, orderID uuid.UUID) error
}

// MemoryStore keeps navigation state in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]State
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[uuid.UUID]State{}}
}

func (m *MemoryStore) Load(_ context.Context, orderID uuid.UUID) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[orderID]
	if !ok {
		return nil, nil
	}
	out := state.clone()
	return &out, nil
}

func (m *MemoryStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.OrderID] = state.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, orderID)
	return nil
}
