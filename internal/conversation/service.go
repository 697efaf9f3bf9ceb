package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"coffee-fleet-backend/internal/access"
	"coffee-fleet-backend/internal/dialogue"
	"coffee-fleet-backend/internal/ledger"
	"coffee-fleet-backend/internal/metrics"
	"coffee-fleet-backend/internal/model"
	"coffee-fleet-backend/internal/parse"
	"coffee-fleet-backend/internal/store"
)

// Authorizer resolves operators to roles.
type Authorizer interface {
	Authorize(ctx context.Context, id access.Identity) (model.Role, error)
}

// InventoryApplier commits inventory changes.
type InventoryApplier interface {
	Apply(ctx context.Context, req ledger.Request) (ledger.Result, error)
}

// MaintenanceRecorder stamps maintenance dates.
type MaintenanceRecorder interface {
	MarkToday(ctx context.Context, machineID, actorID int64, field model.StatusField) error
}

// Reader reads machine state for display.
type Reader interface {
	ListMachines(ctx context.Context) ([]model.Machine, error)
	GetSnapshot(ctx context.Context, machineID int64) (*store.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]store.Snapshot, error)
}

// Service turns operator events into ledger operations.
type Service struct {
	gate     Authorizer
	engine   InventoryApplier
	recorder MaintenanceRecorder
	reader   Reader
	dialogue *dialogue.Manager
	metrics  *metrics.Metrics
}

// NewService wires the conversation with its collaborators.
func NewService(gate Authorizer, engine InventoryApplier, recorder MaintenanceRecorder, reader Reader, dm *dialogue.Manager, m *metrics.Metrics) *Service {
	return &Service{
		gate:     gate,
		engine:   engine,
		recorder: recorder,
		reader:   reader,
		dialogue: dm,
		metrics:  m,
	}
}

// Handle processes one event. Business outcomes come back as tagged results;
// an error means the request failed (store unavailable, unknown machine).
func (s *Service) Handle(ctx context.Context, ev Event) (Result, error) {
	role, err := s.gate.Authorize(ctx, access.Identity{ID: ev.ActorID, Username: ev.Username})
	if err != nil {
		if errors.Is(err, access.ErrDenied) {
			s.dialogue.Cancel(ev.ActorID)
			s.metrics.ObserveDenied()
			s.metrics.ObserveResult(string(TagDenied))
			return Result{Tag: TagDenied}, nil
		}
		return Result{}, fmt.Errorf("%w: %w", ledger.ErrStoreUnavailable, err)
	}

	res, err := s.dispatch(ctx, ev)
	if err != nil {
		return Result{}, err
	}
	res.Role = role
	s.metrics.ObserveResult(string(res.Tag))
	return res, nil
}

func (s *Service) dispatch(ctx context.Context, ev Event) (Result, error) {
	switch ev.Action {
	case ActionText:
		return s.captureQuantity(ctx, ev)
	case ActionAddItem:
		return s.pickItem(ctx, ev, model.ActionAdd)
	case ActionSubItem:
		return s.pickItem(ctx, ev, model.ActionSub)
	}

	if !ev.Action.navigation() {
		return Result{Tag: TagInvalidInput, Detail: fmt.Sprintf("unknown action %q", ev.Action)}, nil
	}

	if s.dialogue.Cancel(ev.ActorID) {
		log.Printf("Operator %d left a pending quantity prompt via %s", ev.ActorID, ev.Action)
	}

	switch ev.Action {
	case ActionChooseMachine:
		machines, err := s.reader.ListMachines(ctx)
		if err != nil {
			return Result{}, unavailable(err)
		}
		return Result{Tag: TagMachines, Machines: machines}, nil

	case ActionStatusAll:
		snapshots, err := s.reader.ListSnapshots(ctx)
		if err != nil {
			return Result{}, unavailable(err)
		}
		return Result{Tag: TagStatus, Snapshots: snapshots}, nil

	case ActionOpenMachine, ActionInventory:
		snapshot, err := s.reader.GetSnapshot(ctx, ev.MachineID)
		if err != nil {
			return Result{}, unavailable(err)
		}
		return Result{Tag: TagStatus, MachineID: ev.MachineID, Snapshot: snapshot}, nil

	case ActionInvAdd, ActionInvSub:
		mode := model.ActionAdd
		if ev.Action == ActionInvSub {
			mode = model.ActionSub
		}
		return Result{Tag: TagChooseItem, MachineID: ev.MachineID, Mode: mode, Items: model.Items}, nil

	case ActionTodayService, ActionTodayWater:
		field := model.FieldService
		if ev.Action == ActionTodayWater {
			field = model.FieldWater
		}
		if err := s.recorder.MarkToday(ctx, ev.MachineID, ev.ActorID, field); err != nil {
			return Result{}, err
		}
		return Result{Tag: TagCommitted, MachineID: ev.MachineID, Snapshot: s.freshSnapshot(ctx, ev.MachineID)}, nil
	}

	// start, back_main
	return Result{Tag: TagMenu}, nil
}

// pickItem moves the operator to awaiting a quantity for the chosen item.
func (s *Service) pickItem(ctx context.Context, ev Event, mode model.Action) (Result, error) {
	item, err := model.ParseItem(ev.Item)
	if err != nil {
		return Result{Tag: TagInvalidInput, MachineID: ev.MachineID, Detail: err.Error()}, nil
	}
	if _, err := s.reader.GetSnapshot(ctx, ev.MachineID); err != nil {
		return Result{}, unavailable(err)
	}

	st := dialogue.State{Mode: mode, MachineID: ev.MachineID, Item: item}
	s.dialogue.Begin(ev.ActorID, st)
	st, _ = s.dialogue.Pending(ev.ActorID)
	return Result{Tag: TagAwaitingQuantity, MachineID: ev.MachineID, Mode: mode, Pending: &st}, nil
}

// captureQuantity interprets text as the reply to a pending quantity prompt.
func (s *Service) captureQuantity(ctx context.Context, ev Event) (Result, error) {
	st, ok := s.dialogue.Pending(ev.ActorID)
	if !ok {
		return Result{Tag: TagIdle}, nil
	}

	qty, err := parse.ParseQuantity(ev.Text)
	if err != nil {
		return Result{Tag: TagInvalidQuantity, MachineID: st.MachineID, Pending: &st, Detail: err.Error()}, nil
	}

	// Only the reply that takes the prompt commits; a duplicate sees idle.
	st, ok = s.dialogue.Take(ev.ActorID)
	if !ok {
		return Result{Tag: TagIdle}, nil
	}

	res, err := s.engine.Apply(ctx, ledger.Request{
		MachineID: st.MachineID,
		ActorID:   ev.ActorID,
		Action:    st.Mode,
		Item:      st.Item,
		Quantity:  qty,
	})
	if err != nil {
		return Result{}, err
	}

	tag := TagCommitted
	if res.Outcome == ledger.OutcomeInsufficientStock {
		tag = TagInsufficientStock
	}
	return Result{Tag: tag, MachineID: st.MachineID, Mode: st.Mode, Snapshot: s.freshSnapshot(ctx, st.MachineID)}, nil
}

// freshSnapshot reads the state after a commit. A failed read does not undo
// the commit, so it is only logged.
func (s *Service) freshSnapshot(ctx context.Context, machineID int64) *store.Snapshot {
	snapshot, err := s.reader.GetSnapshot(ctx, machineID)
	if err != nil {
		log.Printf("Error reading machine %d after commit: %v", machineID, err)
		return nil
	}
	return snapshot
}

func unavailable(err error) error {
	if errors.Is(err, store.ErrMachineNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ledger.ErrStoreUnavailable, err)
}
