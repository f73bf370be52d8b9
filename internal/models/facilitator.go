package models

import (
	"time"
)

// Facilitator teacher account. Runs sessions and records manual scores;
// students never authenticate, they join with the session code.
type Facilitator struct {
	BaseModel
	Email        string     `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	School       string     `gorm:"size:200" json:"school"`
	Status       string     `gorm:"size:20;default:'active'" json:"status"` // active, frozen
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}
