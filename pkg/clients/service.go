package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/auth"
	"github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/email"
	"github.com/nvalencia/agentbook/pkg/logger"
	"github.com/nvalencia/agentbook/pkg/metrics"
)

// inviteTimeout bounds the whole invitation step. The deal pipeline calls
// this with the request context; either way the step resolves within this
// window and never blocks the parent submission.
const inviteTimeout = 12 * time.Second

// Invitation status strings surfaced to the submitting agent
const (
	StatusNoEmail        = "no client email provided"
	StatusPreviouslySent = "invitation previously sent"
	StatusAlreadyActive  = "client already has portal access"
	StatusSent           = "invitation sent"
	StatusFailed         = "failed to send invitation, retry manually"
)

// ErrInvalidToken is returned when a setup token matches no invited user
var ErrInvalidToken = errors.New("invalid or expired invitation token")

// Service looks up or creates client portal accounts and dispatches
// invitation emails.
type Service struct {
	db      *gorm.DB
	email   *email.Service
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewService creates a new client invitation service
func NewService(db *gorm.DB, emailService *email.Service, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		email:   emailService,
		log:     log,
		metrics: m,
	}
}

// InviteResult reports the outcome of one invitation attempt
type InviteResult struct {
	ClientID      uint
	Status        string
	AlreadyExists bool
	Sent          bool
}

// InviteForDeal looks up an existing portal client by email, creating and
// inviting one when absent. It never returns an error: every failure mode
// folds into a human-readable status so the parent deal submission can
// proceed regardless.
func (s *Service) InviteForDeal(ctx context.Context, agencyID uint, clientEmail, firstName, lastName, phone string) InviteResult {
	if clientEmail == "" {
		s.record("skipped")
		return InviteResult{Status: StatusNoEmail}
	}

	ctx, cancel := context.WithTimeout(ctx, inviteTimeout)
	defer cancel()

	var existing models.User
	err := s.db.WithContext(ctx).
		Where("agency_id = ? AND email = ? AND role = ?", agencyID, clientEmail, models.RoleClient).
		First(&existing).Error

	switch {
	case err == nil:
		if existing.Status == models.StatusActive || existing.Status == models.StatusOnboarding {
			s.record("reused")
			return InviteResult{ClientID: existing.ID, Status: StatusAlreadyActive, AlreadyExists: true}
		}
		if existing.Status == models.StatusPreInvite {
			// The expiry job reset this client; issue a fresh invitation.
			return s.reinvite(ctx, &existing)
		}
		s.record("reused")
		return InviteResult{ClientID: existing.ID, Status: StatusPreviouslySent, AlreadyExists: true}

	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create

	default:
		s.log.Warn("client lookup failed", "email", clientEmail, "error", err)
		s.record("failed")
		return InviteResult{Status: StatusFailed}
	}

	token := uuid.NewString()
	now := time.Now()
	client := models.User{
		AgencyID:         agencyID,
		Email:            clientEmail,
		FirstName:        firstName,
		LastName:         lastName,
		Phone:            phone,
		Role:             models.RoleClient,
		Status:           models.StatusInvited,
		InvitationToken:  &token,
		InvitationSentAt: &now,
	}

	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		s.log.Warn("client creation failed", "email", clientEmail, "error", err)
		s.record("failed")
		return InviteResult{Status: StatusFailed}
	}

	// Email dispatch is asynchronous; a send failure downgrades the
	// status on the next attempt, not this submission.
	go func() {
		if err := s.email.SendClientInvitation(clientEmail, firstName+" "+lastName, token); err != nil {
			s.log.Warn("invitation email failed", "email", clientEmail, "error", err)
		}
	}()

	s.record("sent")
	return InviteResult{ClientID: client.ID, Status: StatusSent, Sent: true}
}

// reinvite issues a new token for a client whose earlier invitation
// expired
func (s *Service) reinvite(ctx context.Context, client *models.User) InviteResult {
	token := uuid.NewString()
	now := time.Now()

	updates := map[string]interface{}{
		"status":             models.StatusInvited,
		"invitation_token":   token,
		"invitation_sent_at": now,
	}
	if err := s.db.WithContext(ctx).Model(client).Updates(updates).Error; err != nil {
		s.log.Warn("client re-invitation failed", "email", client.Email, "error", err)
		s.record("failed")
		return InviteResult{ClientID: client.ID, Status: StatusFailed, AlreadyExists: true}
	}

	go func() {
		if err := s.email.SendClientInvitation(client.Email, client.FirstName+" "+client.LastName, token); err != nil {
			s.log.Warn("invitation email failed", "email", client.Email, "error", err)
		}
	}()

	s.record("sent")
	return InviteResult{ClientID: client.ID, Status: StatusSent, AlreadyExists: true, Sent: true}
}

// CompleteSetup finishes portal onboarding for an invited user: sets the
// password, clears the token and activates the account.
func (s *Service) CompleteSetup(ctx context.Context, token, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("invitation_token = ?", token).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up invitation token: %w", err)
	}

	if user.Status != models.StatusInvited && user.Status != models.StatusOnboarding {
		return nil, ErrInvalidToken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	updates := map[string]interface{}{
		"password_hash":    hash,
		"status":           models.StatusActive,
		"invitation_token": nil,
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}

	user.Status = models.StatusActive
	user.InvitationToken = nil

	return &user, nil
}

// ExpireStaleInvitations resets users whose invitation has been pending
// longer than maxAge back to pre_invite so they can be re-invited. Run by
// the nightly cron job.
func (s *Service) ExpireStaleInvitations(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)

	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("status = ? AND invitation_sent_at < ?", models.StatusInvited, cutoff).
		Updates(map[string]interface{}{
			"status":           models.StatusPreInvite,
			"invitation_token": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordInvitation(outcome)
	}
}
