package models

import "gorm.io/gorm"

// Credential is the persisted sign-in state for one backend.
// There is at most one row per base URL.
type Credential struct {
	gorm.Model
	BaseURL string `gorm:"uniqueIndex;not null"`
	Token   string
	Cookies string // JSON-encoded []*http.Cookie
}
