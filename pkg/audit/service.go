package audit

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/database/models"
)

// Service handles audit logging
type Service struct {
	db *gorm.DB
}

// NewService creates a new audit service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// LogEntry represents an audit log entry
type LogEntry struct {
	AgencyID     uint
	UserID       *uint
	Action       string
	Severity     string
	ResourceType *string
	ResourceID   *string
	IPAddress    *string
	UserAgent    *string
	Metadata     map[string]interface{}
	Description  *string
}

// Log creates a new audit log entry
func (s *Service) Log(ctx context.Context, entry LogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	row := models.AuditLog{
		AgencyID:     entry.AgencyID,
		UserID:       entry.UserID,
		Action:       entry.Action,
		Severity:     entry.Severity,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		Description:  entry.Description,
		Metadata:     models.JSONMap(entry.Metadata),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// LogUserLogin logs a successful login
func (s *Service) LogUserLogin(ctx context.Context, agencyID, userID uint, ipAddress, userAgent string) error {
	desc := "User logged in successfully"
	return s.Log(ctx, LogEntry{
		AgencyID:    agencyID,
		UserID:      &userID,
		Action:      models.AuditUserLogin,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
		Description: &desc,
	})
}

// LogUserLogout logs a logout
func (s *Service) LogUserLogout(ctx context.Context, agencyID, userID uint, ipAddress, userAgent string) error {
	desc := "User logged out"
	return s.Log(ctx, LogEntry{
		AgencyID:    agencyID,
		UserID:      &userID,
		Action:      models.AuditUserLogout,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
		Description: &desc,
	})
}

// LogDealSubmitted logs a deal upsert with its outcome
func (s *Service) LogDealSubmitted(ctx context.Context, agencyID, userID, dealID uint, operation, ipAddress, userAgent string) error {
	action := models.AuditDealCreated
	desc := "Deal created"
	if operation == "updated" {
		action = models.AuditDealUpdated
		desc = "Deal updated by resubmission"
	}
	resourceType := "deal"
	resourceID := fmt.Sprintf("%d", dealID)
	return s.Log(ctx, LogEntry{
		AgencyID:     agencyID,
		UserID:       &userID,
		Action:       action,
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		Metadata:     map[string]interface{}{"operation": operation},
		Description:  &desc,
	})
}

// LogInvitationSent logs a client portal invitation
func (s *Service) LogInvitationSent(ctx context.Context, agencyID, userID, clientID uint, status string) error {
	desc := "Client portal invitation attempted"
	resourceType := "user"
	resourceID := fmt.Sprintf("%d", clientID)
	return s.Log(ctx, LogEntry{
		AgencyID:     agencyID,
		UserID:       &userID,
		Action:       models.AuditInvitationSent,
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		Metadata:     map[string]interface{}{"status": status},
		Description:  &desc,
	})
}

// LogSettingsUpdated logs an agency settings change by an admin
func (s *Service) LogSettingsUpdated(ctx context.Context, agencyID, adminID uint, changes map[string]interface{}, ipAddress, userAgent string) error {
	desc := "Admin updated agency settings"
	return s.Log(ctx, LogEntry{
		AgencyID:    agencyID,
		UserID:      &adminID,
		Action:      models.AuditSettingsUpdated,
		Severity:    models.SeverityWarning,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
		Metadata:    changes,
		Description: &desc,
	})
}

// LogUserSuspended logs a user suspension by an admin
func (s *Service) LogUserSuspended(ctx context.Context, agencyID, adminID, targetUserID uint, ipAddress, userAgent string) error {
	desc := "Admin suspended user account"
	resourceType := "user"
	resourceID := fmt.Sprintf("%d", targetUserID)
	return s.Log(ctx, LogEntry{
		AgencyID:     agencyID,
		UserID:       &adminID,
		Action:       models.AuditUserSuspended,
		Severity:     models.SeverityWarning,
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		Metadata:     map[string]interface{}{"admin_id": adminID, "target_user_id": targetUserID},
		Description:  &desc,
	})
}

// GetRecentLogs retrieves recent audit logs for an agency, newest first
func (s *Service) GetRecentLogs(ctx context.Context, agencyID uint, limit int) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("agency_id = ?", agencyID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetUserLogs retrieves audit logs for one user
func (s *Service) GetUserLogs(ctx context.Context, agencyID, userID uint, limit int) ([]models.AuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var logs []models.AuditLog
	err := s.db.WithContext(ctx).
		Where("agency_id = ? AND user_id = ?", agencyID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
