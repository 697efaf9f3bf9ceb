package model

import "time"

// Machine represents a coffee machine of the fleet. Rows are created once by
// provisioning and never modified afterwards.
type Machine struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Machine) TableName() string { return "machines" }

// MachineStatus holds the latest maintenance dates of a machine (hot row).
type MachineStatus struct {
	MachineID       int64      `gorm:"primaryKey;autoIncrement:false" json:"machine_id"`
	LastServiceDate *time.Time `gorm:"type:date" json:"last_service_date"`
	LastWaterDate   *time.Time `gorm:"type:date" json:"last_water_date"`
	UpdatedAt       time.Time  `gorm:"not null" json:"updated_at"`

	// Associations
	Machine Machine `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (MachineStatus) TableName() string { return "machine_status" }

// Date returns the stored date for the given field.
func (s MachineStatus) Date(field StatusField) *time.Time {
	switch field {
	case FieldService:
		return s.LastServiceDate
	case FieldWater:
		return s.LastWaterDate
	}
	return nil
}
