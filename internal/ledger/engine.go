package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"coffee-fleet-backend/internal/metrics"
	"coffee-fleet-backend/internal/model"
	"coffee-fleet-backend/internal/notification"
	"coffee-fleet-backend/internal/store"
)

// Outcome is the normal result of an inventory change attempt.
type Outcome string

const (
	OutcomeCommitted         Outcome = "committed"
	OutcomeInsufficientStock Outcome = "insufficient_stock"
)

// Request is a single inventory change asked for by an operator.
type Request struct {
	MachineID int64
	ActorID   int64
	Action    model.Action
	Item      model.Item
	Quantity  int
	Comment   *string
}

// Result carries the outcome and the item count seen under the row lock.
type Result struct {
	Outcome Outcome
	Before  int
	After   int
}

// Alerter receives low-stock alerts after a committed subtraction.
type Alerter interface {
	Dispatch(alert notification.LowStockAlert)
}

// Engine applies inventory changes through the store, which is the only writer
// of inventory rows.
type Engine struct {
	store      store.Store
	metrics    *metrics.Metrics
	alerts     Alerter
	thresholds map[model.Item]int
}

// EngineOption configures optional collaborators of the Engine.
type EngineOption func(*Engine)

// WithMetrics records every attempt on m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLowStockAlerts dispatches an alert to a when a subtraction takes an item
// from at or above its threshold to below it.
func WithLowStockAlerts(a Alerter, thresholds map[model.Item]int) EngineOption {
	return func(e *Engine) {
		e.alerts = a
		e.thresholds = thresholds
	}
}

// NewEngine creates a new inventory transaction engine.
func NewEngine(s store.Store, opts ...EngineOption) *Engine {
	e := &Engine{store: s}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks a request without touching the store.
func (r Request) Validate() error {
	if !r.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, r.Action)
	}
	if _, ok := r.Item.Column(); !ok {
		return fmt.Errorf("%w: unknown item %q", ErrInvalidInput, r.Item)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidInput, r.Quantity)
	}
	if r.Quantity > model.MaxQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d, got %d", ErrInvalidInput, model.MaxQuantity, r.Quantity)
	}
	return nil
}

// Apply performs one ADD or SUB. InsufficientStock is reported through the
// Outcome, not as an error.
func (e *Engine) Apply(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	res, err := e.store.ChangeInventory(ctx, store.InventoryChange{
		MachineID: req.MachineID,
		ActorID:   req.ActorID,
		Action:    req.Action,
		Item:      req.Item,
		Quantity:  req.Quantity,
		Comment:   req.Comment,
	})
	if err != nil {
		e.metrics.ObserveInventory(string(req.Action), string(req.Item), "error")
		if errors.Is(err, store.ErrMachineNotFound) {
			return Result{}, err
		}
		if errors.Is(err, store.ErrCountOverflow) {
			return Result{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if !res.Applied {
		log.Printf("Refused %s of %d %s on machine %d by %d: only %d in stock",
			req.Action, req.Quantity, req.Item, req.MachineID, req.ActorID, res.Before)
		e.metrics.ObserveInventory(string(req.Action), string(req.Item), string(OutcomeInsufficientStock))
		return Result{Outcome: OutcomeInsufficientStock, Before: res.Before, After: res.After}, nil
	}

	log.Printf("Committed %s of %d %s on machine %d by %d (%d -> %d)",
		req.Action, req.Quantity, req.Item, req.MachineID, req.ActorID, res.Before, res.After)
	e.metrics.ObserveInventory(string(req.Action), string(req.Item), string(OutcomeCommitted))
	e.checkLowStock(req, res)

	return Result{Outcome: OutcomeCommitted, Before: res.Before, After: res.After}, nil
}

func (e *Engine) checkLowStock(req Request, res store.InventoryResult) {
	if e.alerts == nil || req.Action != model.ActionSub {
		return
	}
	threshold, ok := e.thresholds[req.Item]
	if !ok || threshold <= 0 {
		return
	}
	if res.Before >= threshold && res.After < threshold {
		e.alerts.Dispatch(notification.LowStockAlert{
			MachineID: req.MachineID,
			Item:      req.Item,
			Count:     res.After,
			Threshold: threshold,
		})
	}
}

// Thresholds converts configured low-stock thresholds keyed by raw item code,
// skipping unknown items.
func Thresholds(raw map[string]int) map[model.Item]int {
	thresholds := make(map[model.Item]int, len(raw))
	for code, limit := range raw {
		item, err := model.ParseItem(code)
		if err != nil {
			log.Printf("Warning: ignoring low stock threshold for %v", err)
			continue
		}
		thresholds[item] = limit
	}
	return thresholds
}
