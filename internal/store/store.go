package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coffee-fleet-backend/internal/model"
)

// Store defines the interface for all ledger database operations.
type Store interface {
	CreateMachine(ctx context.Context, name string) (*model.Machine, error)
	ListMachines(ctx context.Context) ([]model.Machine, error)
	GetSnapshot(ctx context.Context, machineID int64) (*Snapshot, error)
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
	ChangeInventory(ctx context.Context, change InventoryChange) (InventoryResult, error)
	SetStatusDate(ctx context.Context, machineID, actorID int64, field model.StatusField, day time.Time) error
	ListInventoryLog(ctx context.Context, machineID int64, limit int) ([]model.InventoryLogEntry, error)
	ListStatusLog(ctx context.Context, machineID int64, limit int) ([]model.StatusLogEntry, error)
	EnsureUser(ctx context.Context, user model.User, assignRole bool) (*model.User, error)
	UpdateUser(ctx context.Context, telegramID int64, role model.Role, active bool) (*model.User, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: time.Now}
}

// DB exposes the underlying connection for read-only collaborators.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// forUpdate takes an exclusive row lock on the selected rows. SQLite has no
// row locks; there the single connection configured by db.Open serializes writers.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ChangeInventory applies a signed delta to one item of a machine's inventory and
// appends the matching audit row, both in one transaction. A SUB that would drive
// the count below zero is refused without writing anything.
func (s *gormStore) ChangeInventory(ctx context.Context, change InventoryChange) (InventoryResult, error) {
	column, ok := change.Item.Column()
	if !ok {
		return InventoryResult{}, fmt.Errorf("%w: %q", ErrUnknownItem, change.Item)
	}
	delta := change.Action.Delta(change.Quantity)

	var result InventoryResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv model.Inventory
		if err := forUpdate(tx).Where("machine_id = ?", change.MachineID).Take(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMachineNotFound
			}
			return fmt.Errorf("failed to lock inventory for machine %d: %w", change.MachineID, err)
		}

		current := inv.Count(change.Item)
		result.Before = current
		result.After = current
		if change.Action == model.ActionSub && current < change.Quantity {
			return nil
		}
		if change.Action == model.ActionAdd && current > math.MaxInt-change.Quantity {
			return fmt.Errorf("%w: %s on machine %d is %d, cannot add %d", ErrCountOverflow, change.Item, change.MachineID, current, change.Quantity)
		}

		now := s.now().UTC()
		if err := tx.Model(&model.Inventory{}).
			Where("machine_id = ?", change.MachineID).
			Updates(map[string]any{
				column:       gorm.Expr("? + ?", clause.Column{Name: column}, delta),
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to update %s for machine %d: %w", column, change.MachineID, err)
		}

		entry := model.InventoryLogEntry{
			MachineID: change.MachineID,
			ChangedBy: change.ActorID,
			Action:    change.Action,
			Item:      change.Item,
			Qty:       change.Quantity,
			Comment:   change.Comment,
			Ts:        now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append inventory log for machine %d: %w", change.MachineID, err)
		}

		result.Applied = true
		result.After = current + delta
		return nil
	})
	if err != nil {
		return InventoryResult{}, err
	}
	return result, nil
}

// SetStatusDate stamps a maintenance date and appends the matching audit row atomically.
func (s *gormStore) SetStatusDate(ctx context.Context, machineID, actorID int64, field model.StatusField, day time.Time) error {
	column, ok := field.Column()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var status model.MachineStatus
		if err := forUpdate(tx).Where("machine_id = ?", machineID).Take(&status).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMachineNotFound
			}
			return fmt.Errorf("failed to lock status for machine %d: %w", machineID, err)
		}

		now := s.now().UTC()
		if err := tx.Model(&model.MachineStatus{}).
			Where("machine_id = ?", machineID).
			Updates(map[string]any{column: day, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to update %s for machine %d: %w", column, machineID, err)
		}

		entry := model.StatusLogEntry{
			MachineID: machineID,
			ChangedBy: actorID,
			Field:     field,
			NewDate:   day,
			Ts:        now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append status log for machine %d: %w", machineID, err)
		}
		return nil
	})
}

// CreateMachine registers a machine together with its empty status and inventory rows.
func (s *gormStore) CreateMachine(ctx context.Context, name string) (*model.Machine, error) {
	machine := model.Machine{Name: name}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&machine).Error; err != nil {
			return fmt.Errorf("failed to create machine %q: %w", name, err)
		}
		if err := tx.Omit(clause.Associations).Create(&model.MachineStatus{MachineID: machine.ID}).Error; err != nil {
			return fmt.Errorf("failed to create status row for machine %d: %w", machine.ID, err)
		}
		if err := tx.Omit(clause.Associations).Create(&model.Inventory{MachineID: machine.ID}).Error; err != nil {
			return fmt.Errorf("failed to create inventory row for machine %d: %w", machine.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &machine, nil
}

// ListMachines returns all machines ordered by id.
func (s *gormStore) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := s.db.WithContext(ctx).Order("id").Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

// GetSnapshot reads the current state of one machine straight from the database.
func (s *gormStore) GetSnapshot(ctx context.Context, machineID int64) (*Snapshot, error) {
	db := s.db.WithContext(ctx)

	var machine model.Machine
	if err := db.Take(&machine, machineID).Error; err != nil {
		return nil, notFound(err, machineID)
	}
	var status model.MachineStatus
	if err := db.Where("machine_id = ?", machineID).Take(&status).Error; err != nil {
		return nil, notFound(err, machineID)
	}
	var inv model.Inventory
	if err := db.Where("machine_id = ?", machineID).Take(&inv).Error; err != nil {
		return nil, notFound(err, machineID)
	}

	snapshot := buildSnapshot(machine, status, inv)
	return &snapshot, nil
}

// ListSnapshots reads the state of every machine with three queries.
func (s *gormStore) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	db := s.db.WithContext(ctx)

	machines, err := s.ListMachines(ctx)
	if err != nil {
		return nil, err
	}

	var statuses []model.MachineStatus
	if err := db.Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("failed to list machine status: %w", err)
	}
	var inventories []model.Inventory
	if err := db.Find(&inventories).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	statusMap := make(map[int64]model.MachineStatus, len(statuses))
	for _, st := range statuses {
		statusMap[st.MachineID] = st
	}
	inventoryMap := make(map[int64]model.Inventory, len(inventories))
	for _, inv := range inventories {
		inventoryMap[inv.MachineID] = inv
	}

	snapshots := make([]Snapshot, 0, len(machines))
	for _, m := range machines {
		st, okStatus := statusMap[m.ID]
		inv, okInv := inventoryMap[m.ID]
		if !okStatus || !okInv {
			log.Printf("Warning: machine %d is missing its status or inventory row; skipping", m.ID)
			continue
		}
		snapshots = append(snapshots, buildSnapshot(m, st, inv))
	}
	return snapshots, nil
}

// ListInventoryLog returns the newest inventory log rows of a machine.
func (s *gormStore) ListInventoryLog(ctx context.Context, machineID int64, limit int) ([]model.InventoryLogEntry, error) {
	var entries []model.InventoryLogEntry
	if err := s.db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list inventory log for machine %d: %w", machineID, err)
	}
	return entries, nil
}

// ListStatusLog returns the newest status log rows of a machine.
func (s *gormStore) ListStatusLog(ctx context.Context, machineID int64, limit int) ([]model.StatusLogEntry, error) {
	var entries []model.StatusLogEntry
	if err := s.db.WithContext(ctx).
		Where("machine_id = ?", machineID).
		Order("ts DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list status log for machine %d: %w", machineID, err)
	}
	return entries, nil
}

// EnsureUser upserts an operator on contact and returns the stored row. A
// non-empty username is always refreshed; role and active flag only when assignRole is set,
// otherwise the persisted values win over the ones in user.
func (s *gormStore) EnsureUser(ctx context.Context, user model.User, assignRole bool) (*model.User, error) {
	columns := []string{"updated_at"}
	if user.Username != "" {
		columns = append(columns, "username")
	}
	if assignRole {
		columns = append(columns, "role", "is_active")
	}

	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert user %d: %w", user.TelegramID, err)
	}

	var stored model.User
	if err := db.Take(&stored, "telegram_id = ?", user.TelegramID).Error; err != nil {
		return nil, fmt.Errorf("failed to read user %d after upsert: %w", user.TelegramID, err)
	}
	return &stored, nil
}

// UpdateUser sets the role and active flag of a provisioned operator.
func (s *gormStore) UpdateUser(ctx context.Context, telegramID int64, role model.Role, active bool) (*model.User, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{"role": role, "is_active": active, "updated_at": s.now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", telegramID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	var stored model.User
	if err := db.Take(&stored, "telegram_id = ?", telegramID).Error; err != nil {
		return nil, fmt.Errorf("failed to read user %d: %w", telegramID, err)
	}
	return &stored, nil
}

// --- Helper functions ---

func buildSnapshot(machine model.Machine, status model.MachineStatus, inv model.Inventory) Snapshot {
	return Snapshot{
		MachineID:       machine.ID,
		Name:            machine.Name,
		LastServiceDate: status.LastServiceDate,
		LastWaterDate:   status.LastWaterDate,
		Inventory:       inv,
	}
}

func notFound(err error, machineID int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMachineNotFound
	}
	return fmt.Errorf("failed to read machine %d: %w", machineID, err)
}
