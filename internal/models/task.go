package models

import (
	"time"
)

// Icon categories understood by the clients.
const (
	IconRecycle = "recycle"
	IconPlastic = "plastic"
	IconGlass   = "glass"
	IconCan     = "can"
	IconBox     = "box"
	IconShirt   = "shirt"
	IconBag     = "bag"
)

var IconTypes = []string{IconRecycle, IconPlastic, IconGlass, IconCan, IconBox, IconShirt, IconBag}

// ValidIcon reports whether icon is one of IconTypes.
func ValidIcon(icon string) bool {
	for _, i := range IconTypes {
		if i == icon {
			return true
		}
	}
	return false
}

const (
	DifficultyEasy   = "Fácil"
	DifficultyManual = "Manual"
)

type TaskDefinition struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"size:200;uniqueIndex;not null" json:"title"`
	Points     int       `gorm:"not null" json:"points"`
	Difficulty string    `gorm:"size:50;default:'Fácil';not null" json:"difficulty"`
	IconType   string    `gorm:"size:20;default:'recycle';not null" json:"icon_type"`
	Custom     bool      `gorm:"default:false;not null;index" json:"custom"` // synthetic material task
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
