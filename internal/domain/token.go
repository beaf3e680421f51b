package domain

import "time"

type AuthToken struct {
	Token     string     `gorm:"primaryKey;size:64" json:"-"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (t AuthToken) ValidAt(now time.Time) bool {
	return t.ExpiresAt == nil || t.ExpiresAt.After(now)
}
