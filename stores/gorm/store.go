// Package gorm provides a SQL-backed token snapshot store using GORM, for
// callers that persist session snapshots alongside their application data.
package gorm

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/panyam/apisession"
)

// TokenModel is the table shape: one snapshot row per endpoint.
type TokenModel struct {
	Endpoint         string `gorm:"primaryKey"`
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	UpdatedAt        time.Time
}

// TableName overrides the default table name.
func (TokenModel) TableName() string {
	return "apisession_tokens"
}

// AutoMigrate runs the database migration for the snapshot table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TokenModel{})
}

// Store implements a token snapshot store backed by GORM.
type Store struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed snapshot store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get retrieves the snapshot for an endpoint. Returns nil, nil if no
// snapshot exists.
func (s *Store) Get(endpoint string) (*apisession.TokenData, error) {
	var model TokenModel
	if err := s.db.First(&model, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &apisession.TokenData{
		AccessToken:      model.AccessToken,
		RefreshToken:     model.RefreshToken,
		ExpiresAt:        model.ExpiresAt,
		RefreshExpiresAt: model.RefreshExpiresAt,
	}, nil
}

// Set stores a snapshot for an endpoint, replacing any previous one.
func (s *Store) Set(endpoint string, data apisession.TokenData) error {
	model := &TokenModel{
		Endpoint:         endpoint,
		AccessToken:      data.AccessToken,
		RefreshToken:     data.RefreshToken,
		ExpiresAt:        data.ExpiresAt,
		RefreshExpiresAt: data.RefreshExpiresAt,
	}
	return s.db.Save(model).Error
}

// Remove deletes the snapshot for an endpoint.
func (s *Store) Remove(endpoint string) error {
	return s.db.Delete(&TokenModel{}, "endpoint = ?", endpoint).Error
}

// Endpoints returns all endpoint URLs with stored snapshots.
func (s *Store) Endpoints() ([]string, error) {
	var endpoints []string
	if err := s.db.Model(&TokenModel{}).Pluck("endpoint", &endpoints).Error; err != nil {
		return nil, err
	}
	return endpoints, nil
}
