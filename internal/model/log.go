package model

import (
	"fmt"
	"strings"
	"time"
)

// StatusField names a maintenance date of a machine.
type StatusField string

const (
	FieldService StatusField = "SERVICE"
	FieldWater   StatusField = "WATER"
)

// ParseStatusField validates a raw maintenance field name.
func ParseStatusField(raw string) (StatusField, error) {
	field := StatusField(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := field.Column(); !ok {
		return "", fmt.Errorf("unknown status field %q", raw)
	}
	return field, nil
}

// Column returns the machine_status column stamped for the field.
func (f StatusField) Column() (string, bool) {
	switch f {
	case FieldService:
		return "last_service_date", true
	case FieldWater:
		return "last_water_date", true
	}
	return "", false
}

// InventoryLogEntry is the audit row written with every committed inventory change.
// Rows are insert-only.
type InventoryLogEntry struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	MachineID int64     `gorm:"not null;index:idx_inventory_log_machine_ts,priority:1" json:"machine_id"`
	ChangedBy int64     `gorm:"not null" json:"changed_by"`
	Action    Action    `gorm:"size:8;not null" json:"action"`
	Item      Item      `gorm:"size:32;not null" json:"item"`
	Qty       int       `gorm:"not null;check:qty > 0" json:"qty"`
	Comment   *string   `json:"comment,omitempty"`
	Ts        time.Time `gorm:"not null;autoCreateTime;index:idx_inventory_log_machine_ts,priority:2" json:"ts"`
}

func (InventoryLogEntry) TableName() string { return "inventory_log" }

// StatusLogEntry is the audit row written with every maintenance stamp.
// Rows are insert-only.
type StatusLogEntry struct {
	ID        int64       `gorm:"primaryKey" json:"id"`
	MachineID int64       `gorm:"not null;index:idx_status_log_machine_ts,priority:1" json:"machine_id"`
	ChangedBy int64       `gorm:"not null" json:"changed_by"`
	Field     StatusField `gorm:"size:16;not null" json:"field"`
	NewDate   time.Time   `gorm:"type:date;not null" json:"new_date"`
	Ts        time.Time   `gorm:"not null;autoCreateTime;index:idx_status_log_machine_ts,priority:2" json:"ts"`
}

func (StatusLogEntry) TableName() string { return "status_log" }
