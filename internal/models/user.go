package models

import (
	"time"
)

type User struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Email              string    `gorm:"size:254;uniqueIndex;not null" json:"email"` // stored lower-cased
	Name               string    `gorm:"size:100;not null" json:"name"`
	Password           string    `gorm:"not null" json:"-"` // bcrypt hash
	IsActive           bool      `gorm:"default:true;not null" json:"is_active"`
	IsStaff            bool      `gorm:"default:false;not null" json:"is_staff"`
	IsSuperuser        bool      `gorm:"default:false;not null" json:"is_superuser"`
	MustChangePassword bool      `gorm:"default:false;not null" json:"must_change_password"`
	Profile            *Profile  `gorm:"foreignKey:UserID" json:"profile,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	// No DeletedAt for hard delete
}

// IsAdmin reports whether the account may use the admin surface.
func (u *User) IsAdmin() bool {
	return u.IsStaff || u.IsSuperuser
}

// Role is the claim carried in access tokens.
func (u *User) Role() string {
	switch {
	case u.IsSuperuser:
		return "superuser"
	case u.IsStaff:
		return "staff"
	default:
		return "user"
	}
}

// Profile holds the running totals of an account. Level is a cached label,
// rewritten on every ledger mutation.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Points    int       `gorm:"default:0;not null" json:"points"`
	CO2Saved  float64   `gorm:"column:co2_saved;default:0;not null" json:"co2_saved"`
	Level     string    `gorm:"size:50;not null" json:"level"`
	UpdatedAt time.Time `json:"updated_at"`
}
