package model

import "time"

// PushSubscription is a browser endpoint receiving low-stock alerts for the
// linked machines. Rows are removed when the push service reports them gone.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"-"`
	Auth      string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Machines []*Machine `gorm:"many2many:subscription_machine_mapping;" json:"machines,omitempty"`
}

func (PushSubscription) TableName() string { return "push_subscriptions" }
