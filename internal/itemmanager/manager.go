// Package itemmanager drives the item collection stage of one order from the
// client side. Every operation reports success as a bool and records failures
// in the snapshot; nothing is returned as an error or panics to the caller.
package itemmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/internal/itemsessions"
	"github.com/angelmondragon/orderflow-backend/internal/pricing"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
	"github.com/angelmondragon/orderflow-backend/internal/wizard"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

var (
	// ErrSessionNotInitialized is recorded when an operation runs before Initialize.
	ErrSessionNotInitialized = pkgerrors.New(pkgerrors.CodeSessionNotInitialized, "session not initialized")
	// ErrNotReady is recorded when CompleteStage runs without a passing readiness check.
	ErrNotReady = pkgerrors.New(pkgerrors.CodeStateConflict, "readiness check has not passed")
)

// Manager owns the client side view of one item session. The mutex guards
// the snapshot only and is never held across a remote call.
type Manager struct {
	mu      sync.Mutex
	store   RemoteStore
	logg    *logger.Logger
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
	now     func() time.Time
}

// New builds a manager over store.
func New(store RemoteStore, logg *logger.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("remote store required")
	}
	return &Manager{
		store: store,
		logg:  logg,
		snap:  initialSnapshot(),
		subs:  map[int]func(Snapshot){},
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

// Subscribe registers fn for every snapshot change and returns its cancel func.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Initialize creates or fetches the order's session. A failure moves the
// manager to ERROR without retrying.
func (m *Manager) Initialize(ctx context.Context, orderID uuid.UUID) bool {
	m.update(func(s *Snapshot) {
		s.State = enums.SessionStateInitializing
		s.Pending = &Intent{Operation: "initialize", StartedAt: m.now()}
		s.Loading = true
		s.Error, s.ErrorCode, s.Retryable = "", "", false
	})

	dto, err := m.store.Initialize(ctx, orderID)
	if err == nil && dto == nil {
		err = emptyResponse("initialize")
	}
	if err != nil {
		m.update(func(s *Snapshot) {
			s.State = enums.SessionStateError
			s.Ready = false
			recordError(s, err)
			s.finish()
		})
		m.logFailure(ctx, "initialize", err)
		return false
	}
	m.update(func(s *Snapshot) {
		s.adopt(dto)
		s.Ready = false
		s.Validation = nil
		s.finish()
	})
	return true
}

// Refresh re-reads the authoritative session.
func (m *Manager) Refresh(ctx context.Context) bool {
	return m.read(ctx, "refresh", m.store.Get)
}

// Synchronize asks the store to reconcile aggregates, then adopts the result.
func (m *Manager) Synchronize(ctx context.Context) bool {
	return m.read(ctx, "synchronize", m.store.Synchronize)
}

// AddItem submits the item of the open create wizard.
func (m *Manager) AddItem(ctx context.Context, input itemsessions.ItemInput) bool {
	return m.mutate(ctx, "add_item", func(ctx context.Context, id uuid.UUID, version int64) (*itemsessions.SessionDTO, error) {
		return m.store.AddItem(ctx, id, version, input)
	})
}

// UpdateItem submits the item being edited.
func (m *Manager) UpdateItem(ctx context.Context, itemID uuid.UUID, input itemsessions.ItemInput) bool {
	return m.mutate(ctx, "update_item", func(ctx context.Context, id uuid.UUID, version int64) (*itemsessions.SessionDTO, error) {
		return m.store.UpdateItem(ctx, id, itemID, version, input)
	})
}

// DeleteItem removes an item.
func (m *Manager) DeleteItem(ctx context.Context, itemID uuid.UUID) bool {
	return m.mutate(ctx, "delete_item", func(ctx context.Context, id uuid.UUID, version int64) (*itemsessions.SessionDTO, error) {
		return m.store.DeleteItem(ctx, id, itemID, version)
	})
}

// StartNewItemWizard opens the create form. A second wizard is rejected
// locally without contacting the store.
func (m *Manager) StartNewItemWizard(ctx context.Context) bool {
	if !m.guardWizard(func(w wizard.State) error {
		_, err := w.StartNew()
		return err
	}) {
		return false
	}
	return m.mutate(ctx, "start_wizard", m.store.StartWizard)
}

// StartEditItemWizard opens the edit form for itemID.
func (m *Manager) StartEditItemWizard(ctx context.Context, itemID uuid.UUID) bool {
	if !m.guardWizard(func(w wizard.State) error {
		_, err := w.StartEdit(itemID)
		return err
	}) {
		return false
	}
	return m.mutate(ctx, "start_edit_wizard", func(ctx context.Context, id uuid.UUID, version int64) (*itemsessions.SessionDTO, error) {
		return m.store.StartEditWizard(ctx, id, itemID, version)
	})
}

// CloseWizard discards the open form.
func (m *Manager) CloseWizard(ctx context.Context) bool {
	return m.mutate(ctx, "close_wizard", m.store.CloseWizard)
}

// ValidateCurrentState fetches the store's validation of the session. On a
// failed call the result carries the failure under the "session" field.
func (m *Manager) ValidateCurrentState(ctx context.Context) validation.Result {
	id, _, ok := m.begin("validate")
	if !ok {
		return failedResult(ErrSessionNotInitialized)
	}
	res, err := m.store.Validate(ctx, id)
	if err == nil && res == nil {
		err = emptyResponse("validate")
	}
	if err != nil {
		m.fail(ctx, "validate", err)
		return failedResult(err)
	}
	out := validation.Valid()
	out.Merge("", *res)
	m.update(func(s *Snapshot) {
		v := out
		s.Validation = &v
		s.finish()
	})
	return out
}

// CheckReadiness asks the store whether the stage may complete. The answer
// gates the next CompleteStage.
func (m *Manager) CheckReadiness(ctx context.Context) bool {
	id, _, ok := m.begin("check_readiness")
	if !ok {
		return false
	}
	res, err := m.store.CheckReadiness(ctx, id)
	if err == nil && res == nil {
		err = emptyResponse("check_readiness")
	}
	if err != nil {
		m.update(func(s *Snapshot) { s.Ready = false })
		m.fail(ctx, "check_readiness", err)
		return false
	}
	m.update(func(s *Snapshot) {
		if res.Session != nil {
			s.adopt(res.Session)
		}
		v := validation.Valid()
		v.Merge("", res.Validation)
		s.Validation = &v
		s.Ready = res.Ready
		s.finish()
	})
	return res.Ready
}

// CompleteStage finalizes the session. It only contacts the store when the
// most recent readiness check passed.
func (m *Manager) CompleteStage(ctx context.Context) bool {
	m.mu.Lock()
	hasSession := m.snap.SessionID != nil
	ready := m.snap.Ready
	m.mu.Unlock()
	if hasSession && !ready {
		m.update(func(s *Snapshot) { recordError(s, ErrNotReady) })
		return false
	}
	ok := m.mutate(ctx, "complete_stage", m.store.CompleteStage)
	if !ok {
		m.update(func(s *Snapshot) { s.Ready = false })
	}
	return ok
}

// TerminateSession releases the session and returns every field to its
// initial default.
func (m *Manager) TerminateSession(ctx context.Context) bool {
	id, _, ok := m.begin("terminate")
	if !ok {
		return false
	}
	if err := m.store.Terminate(ctx, id); err != nil {
		m.fail(ctx, "terminate", err)
		return false
	}
	m.update(func(s *Snapshot) { *s = initialSnapshot() })
	return true
}

// ResetSession empties the session while keeping it alive.
func (m *Manager) ResetSession(ctx context.Context) bool {
	return m.mutate(ctx, "reset", m.store.Reset)
}

// PreviewOrderPrice applies order-level overlays to the current item totals
// and the modifier breakdown the store returned with each item. It needs no
// remote call.
func (m *Manager) PreviewOrderPrice(opts pricing.Options) pricing.OrderResult {
	snap := m.Snapshot()
	lines := make([]pricing.LineResult, 0, len(snap.Items))
	for idx, item := range snap.Items {
		lines = append(lines, item.PricedLine(idx))
	}
	return pricing.Summarize(lines, opts)
}

type remoteRead func(ctx context.Context, sessionID uuid.UUID) (*itemsessions.SessionDTO, error)

type remoteMutation func(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*itemsessions.SessionDTO, error)

func (m *Manager) read(ctx context.Context, op string, call remoteRead) bool {
	id, _, ok := m.begin(op)
	if !ok {
		return false
	}
	dto, err := call(ctx, id)
	if err == nil && dto == nil {
		err = emptyResponse(op)
	}
	if err != nil {
		m.fail(ctx, op, err)
		return false
	}
	m.update(func(s *Snapshot) {
		s.adopt(dto)
		s.finish()
	})
	return true
}

// mutate records the intent, performs the remote write with the last seen
// version, adopts the authoritative response and always refreshes afterwards.
// A failed write keeps the last good snapshot.
func (m *Manager) mutate(ctx context.Context, op string, call remoteMutation) bool {
	id, version, ok := m.begin(op)
	if !ok {
		return false
	}
	dto, err := call(ctx, id, version)
	if err == nil && dto == nil {
		err = emptyResponse(op)
	}
	if err == nil {
		m.update(func(s *Snapshot) {
			s.adopt(dto)
			if op != "complete_stage" {
				s.Ready = false
			}
		})
	}

	refreshed, refreshErr := m.store.Get(ctx, id)
	if refreshErr == nil && refreshed == nil {
		refreshErr = emptyResponse("refresh")
	}

	m.update(func(s *Snapshot) {
		if refreshErr == nil {
			s.adopt(refreshed)
		}
		switch {
		case err != nil:
			recordError(s, err)
		case refreshErr != nil:
			recordError(s, refreshErr)
		}
		s.finish()
	})
	if err != nil {
		m.logFailure(ctx, op, err)
		return false
	}
	if refreshErr != nil {
		m.logFailure(ctx, "refresh", refreshErr)
	}
	return true
}

// begin records a pending intent. Without a session it records
// SessionNotInitialized and reports false.
func (m *Manager) begin(op string) (uuid.UUID, int64, bool) {
	m.mu.Lock()
	if m.snap.SessionID == nil {
		recordError(&m.snap, ErrSessionNotInitialized)
		snapshot := m.snap.clone()
		m.mu.Unlock()
		m.publish(snapshot)
		return uuid.Nil, 0, false
	}
	id := *m.snap.SessionID
	version := m.snap.Version
	m.snap.Pending = &Intent{Operation: op, StartedAt: m.now()}
	m.snap.Loading = true
	m.snap.Error, m.snap.ErrorCode, m.snap.Retryable = "", "", false
	snapshot := m.snap.clone()
	m.mu.Unlock()
	m.publish(snapshot)
	return id, version, true
}

func (m *Manager) guardWizard(transition func(wizard.State) error) bool {
	m.mu.Lock()
	if m.snap.SessionID == nil {
		m.mu.Unlock()
		return true
	}
	state := wizard.FromSession(m.snap.WizardMode, m.snap.EditingItemID)
	m.mu.Unlock()

	err := transition(state)
	if err == nil {
		return true
	}
	if errors.Is(err, wizard.ErrWizardActive) {
		err = pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, err.Error())
	} else {
		err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	m.update(func(s *Snapshot) { recordError(s, err) })
	return false
}

func (m *Manager) fail(ctx context.Context, op string, err error) {
	m.update(func(s *Snapshot) {
		recordError(s, err)
		s.finish()
	})
	m.logFailure(ctx, op, err)
}

func (m *Manager) update(fn func(*Snapshot)) {
	m.mu.Lock()
	fn(&m.snap)
	snapshot := m.snap.clone()
	m.mu.Unlock()
	m.publish(snapshot)
}

func (m *Manager) publish(snapshot Snapshot) {
	m.mu.Lock()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(snapshot.clone())
	}
}

func (m *Manager) logFailure(ctx context.Context, op string, err error) {
	if m.logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	fields := map[string]any{"op": op, "code": pkgerrors.CodeOf(err)}
	if id := m.Snapshot().SessionID; id != nil {
		fields["session_id"] = id.String()
	}
	m.logg.Warn(m.logg.WithFields(ctx, fields), fmt.Sprintf("item session %s failed: %v", op, err))
}

func (s *Snapshot) finish() {
	s.Pending = nil
	s.Loading = false
}

func recordError(s *Snapshot, err error) {
	s.ErrorCode = pkgerrors.CodeOf(err)
	s.Retryable = pkgerrors.IsRetryable(err)
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		s.Error = typed.Message()
		return
	}
	s.Error = err.Error()
}

func failedResult(err error) validation.Result {
	res := validation.Valid()
	msg := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		msg = typed.Message()
	}
	res.Add("session", msg)
	return res
}

func emptyResponse(op string) error {
	return pkgerrors.Newf(pkgerrors.CodeTransport, "%s returned an empty response", op)
}
