package domain

import (
	"strings"
	"time"
)

type ModelConfig struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	BaseURL     string    `gorm:"size:512;not null" json:"base_url"`
	APIKey      string    `gorm:"size:512" json:"-"`
	ModelName   string    `gorm:"size:128;not null" json:"model_name"`
	MaxTokens   int       `gorm:"not null" json:"max_tokens"`
	Temperature float32   `gorm:"not null" json:"temperature"`
	OwnerID     *uint     `gorm:"index" json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CompletionsURL returns the upstream endpoint for this configuration.
// A base URL that already names the completions path is used verbatim.
func (m ModelConfig) CompletionsURL() string {
	if strings.Contains(m.BaseURL, "chat/completions") {
		return m.BaseURL
	}
	return strings.TrimRight(m.BaseURL, "/") + "/chat/completions"
}

func (m ModelConfig) UsableBy(user User) bool {
	return m.OwnerID == nil || *m.OwnerID == user.ID || user.IsAdmin()
}

type RolePrompt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
}
