package store

import (
	"errors"
	"time"

	"coffee-fleet-backend/internal/model"
)

var (
	// ErrMachineNotFound is returned when a machine or one of its ledger rows does not exist.
	ErrMachineNotFound = errors.New("machine not found")

	// ErrUnknownItem is returned when an item has no inventory column.
	ErrUnknownItem = errors.New("unknown inventory item")

	// ErrUnknownField is returned when a status field has no machine_status column.
	ErrUnknownField = errors.New("unknown status field")

	// ErrCountOverflow is returned when an ADD would push a count past the column range.
	ErrCountOverflow = errors.New("inventory count overflow")

	// ErrUserNotFound is returned when an operator has never been provisioned.
	ErrUserNotFound = errors.New("user not found")
)

// InventoryChange describes a single ADD or SUB against one machine's inventory row.
type InventoryChange struct {
	MachineID int64
	ActorID   int64
	Action    model.Action
	Item      model.Item
	Quantity  int
	Comment   *string
}

// InventoryResult reports what ChangeInventory observed under the row lock.
// Applied is false when a SUB found less stock than requested; nothing was written then.
type InventoryResult struct {
	Applied bool
	Before  int
	After   int
}

// Snapshot is the current maintenance and inventory state of one machine.
type Snapshot struct {
	MachineID       int64           `json:"machine_id"`
	Name            string          `json:"name"`
	LastServiceDate *time.Time      `json:"last_service_date"`
	LastWaterDate   *time.Time      `json:"last_water_date"`
	Inventory       model.Inventory `json:"inventory"`
}
