package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"trading-terminal-go/internal/models"
)

// CredentialStore persists the bearer token and session cookies for one
// backend between terminal invocations.
type CredentialStore interface {
	Load() (token string, cookies []*http.Cookie, err error)
	Save(token string, cookies []*http.Cookie) error
	Clear() error
}

// GormCredentialStore keeps credentials in the local sqlite database.
type GormCredentialStore struct {
	db      *gorm.DB
	baseURL string
}

var _ CredentialStore = (*GormCredentialStore)(nil)

// NewCredentialStore returns a store scoped to baseURL.
func NewCredentialStore(db *gorm.DB, baseURL string) *GormCredentialStore {
	return &GormCredentialStore{db: db, baseURL: baseURL}
}

// Load returns the stored credentials, or empty values when none exist.
func (s *GormCredentialStore) Load() (string, []*http.Cookie, error) {
	var cred models.Credential
	err := s.db.Where("base_url = ?", s.baseURL).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	var cookies []*http.Cookie
	if cred.Cookies != "" {
		if err := json.Unmarshal([]byte(cred.Cookies), &cookies); err != nil {
			return "", nil, fmt.Errorf("failed to decode stored cookies: %w", err)
		}
	}
	return cred.Token, cookies, nil
}

// Save replaces the stored credentials.
func (s *GormCredentialStore) Save(token string, cookies []*http.Cookie) error {
	raw, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	cred := models.Credential{BaseURL: s.baseURL}
	if err := s.db.Where(models.Credential{BaseURL: s.baseURL}).FirstOrCreate(&cred).Error; err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	cred.Token = token
	cred.Cookies = string(raw)
	if err := s.db.Save(&cred).Error; err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Clear removes any stored credentials. Clearing twice is not an error.
func (s *GormCredentialStore) Clear() error {
	err := s.db.Unscoped().Where("base_url = ?", s.baseURL).Delete(&models.Credential{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// MemoryCredentialStore keeps credentials for the lifetime of the process.
type MemoryCredentialStore struct {
	Token   string
	Cookies []*http.Cookie
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

func (m *MemoryCredentialStore) Load() (string, []*http.Cookie, error) {
	return m.Token, m.Cookies, nil
}

func (m *MemoryCredentialStore) Save(token string, cookies []*http.Cookie) error {
	m.Token, m.Cookies = token, cookies
	return nil
}

func (m *MemoryCredentialStore) Clear() error {
	m.Token, m.Cookies = "", nil
	return nil
}
