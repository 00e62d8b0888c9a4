package mapping

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrMappingNotFound is a sentinel for matching MappingError with errors.Is.
var ErrMappingNotFound = errors.New("resource mapping not found")

// MappingError reports an unresolvable piece of a tenant's resource mapping.
// It is always raised before any backend call.
type MappingError struct {
	TenantID string
	Field    string
	Name     string
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no %s mapping named %q for tenant %s", e.Field, e.Name, e.TenantID)
	}

	return fmt.Sprintf("no %s mapping for tenant %s", e.Field, e.TenantID)
}

// Is enables errors.Is to match against the ErrMappingNotFound sentinel.
func (e *MappingError) Is(target error) bool {
	return target == ErrMappingNotFound
}

// TenantMapping is the stored translation table for one tenant. Networks maps
// logical network names onto backend bridge identifiers and is persisted as
// JSONB.
type TenantMapping struct {
	TenantID       string    `gorm:"type:uuid;primaryKey" json:"tenant_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	ComputeTarget  string    `gorm:"not null" json:"compute_target"`
	Datastore      string    `gorm:"not null" json:"datastore"`
	DefaultNetwork string    `json:"default_network"`
	Networks       []byte    `gorm:"type:jsonb" json:"networks"`
}

// NetworkTable decodes the stored network translation table.
func (m *TenantMapping) NetworkTable() (map[string]string, error) {
	table := make(map[string]string)
	if len(m.Networks) == 0 {
		return table, nil
	}

	if err := jsoniter.ConfigFastest.Unmarshal(m.Networks, &table); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to decode network mappings")
	}

	return table, nil
}

// SetNetworkTable encodes and stores the network translation table.
func (m *TenantMapping) SetNetworkTable(table map[string]string) error {
	encoded, err := jsoniter.ConfigFastest.Marshal(table)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode network mappings")
	}

	m.Networks = encoded

	return nil
}

// SetupModels migrates the mapping schema.
func SetupModels(db *gorm.DB) error {
	if err := db.AutoMigrate(&TenantMapping{}); err != nil {
		return pkgerrors.Wrap(err, "failed to migrate mapping models")
	}

	return nil
}

// Store persists tenant mappings.
type Store struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewStore creates a mapping store. Pass the same handle twice when no read
// replica is configured.
func NewStore(db *gorm.DB, readOnlyDB *gorm.DB) *Store {
	return &Store{db: db, readOnlyDB: readOnlyDB}
}

// GetByTenant loads one tenant's mapping. A missing row is a MappingError,
// not an infrastructure failure.
func (s *Store) GetByTenant(ctx context.Context, tenantID string) (*TenantMapping, error) {
	var m TenantMapping
	err := s.readOnlyDB.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &MappingError{TenantID: tenantID, Field: "tenant"}
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to get tenant mapping")
	}

	return &m, nil
}

// Upsert creates or replaces a tenant's mapping row.
func (s *Store) Upsert(ctx context.Context, m *TenantMapping) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(m).Error
	if err != nil {
		return pkgerrors.Wrap(err, "failed to upsert tenant mapping")
	}

	return nil
}
