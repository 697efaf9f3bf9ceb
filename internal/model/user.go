package model

import "time"

// Role is the permission level of an operator.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// User is an operator identity as seen by the messenger, provisioned on first contact.
type User struct {
	TelegramID int64     `gorm:"column:telegram_id;primaryKey;autoIncrement:false" json:"telegram_id"`
	Username   string    `gorm:"size:64" json:"username"`
	Role       Role      `gorm:"size:16;not null;default:staff" json:"role"`
	IsActive   bool      `gorm:"not null;default:false" json:"is_active"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
