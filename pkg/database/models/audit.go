package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// JSONMap stores loosely structured metadata as a JSON column.
type JSONMap map[string]interface{}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSONMap: %v", value)
	}

	return json.Unmarshal(bytes, m)
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Audit actions
const (
	AuditUserLogin       = "user.login"
	AuditUserLogout      = "user.logout"
	AuditDealCreated     = "deal.created"
	AuditDealUpdated     = "deal.updated"
	AuditInvitationSent  = "invitation.sent"
	AuditSettingsUpdated = "agency.settings_updated"
	AuditUserSuspended   = "user.suspended"
)

// Audit severities
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// AuditLog records who did what, when, from where.
type AuditLog struct {
	ID           uint  `gorm:"primaryKey;autoIncrement"`
	AgencyID     uint  `gorm:"index"`
	UserID       *uint `gorm:"index"`
	Action       string `gorm:"index;not null"`
	Severity     string `gorm:"not null;default:info"`
	ResourceType *string
	ResourceID   *string
	IPAddress    *string
	UserAgent    *string
	Description  *string
	Metadata     JSONMap    `gorm:"type:jsonb"`
	CreatedAt    *time.Time `gorm:"index;autoCreateTime"`
}

// Migrate creates or updates the schema for every entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Agency{},
		&User{},
		&Carrier{},
		&Product{},
		&Team{},
		&LeadSource{},
		&Deal{},
		&Beneficiary{},
		&CommissionSnapshot{},
		&AuditLog{},
	)
}
