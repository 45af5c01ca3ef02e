package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles
const (
	RoleAdmin  = "admin"
	RoleAgent  = "agent"
	RoleClient = "client"
)

// User lifecycle statuses, driven by invitation and setup-completion
// actions: pre_invite -> invited -> onboarding -> active | inactive.
const (
	StatusPreInvite  = "pre_invite"
	StatusInvited    = "invited"
	StatusOnboarding = "onboarding"
	StatusActive     = "active"
	StatusInactive   = "inactive"
)

// User is polymorphic over role. Agents carry an upline reference forming
// a tree per agency; clients are portal accounts attached to deals.
type User struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	// Email is unique per agency, not globally; the same person can hold
	// a portal account with two different agencies.
	AgencyID     uint   `gorm:"uniqueIndex:idx_users_agency_email;index;not null"`
	Email        string `gorm:"uniqueIndex:idx_users_agency_email;not null"`
	PasswordHash string
	FirstName    string `gorm:"not null"`
	LastName     string `gorm:"not null"`
	Phone        string
	Role         string `gorm:"index;not null;default:agent"`
	Status       string `gorm:"index;not null;default:pre_invite"`

	// Upline recruiter/supervisor; nil at the root of the agency tree.
	UplineID *uint `gorm:"index"`

	// Commission position held by an agent. Empty means unassigned,
	// which blocks deal posting.
	Position       string
	CommissionRate decimal.Decimal `gorm:"type:decimal(5,2)"`

	InvitationToken  *string `gorm:"index"`
	InvitationSentAt *time.Time
	LastLoginAt      *time.Time
	CreatedAt        *time.Time `gorm:"autoCreateTime"`
	UpdatedAt        *time.Time `gorm:"autoUpdateTime"`
}

// FullName returns the display name used in notifications and exports.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
