package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Billing cycles
const (
	BillingMonthly      = "monthly"
	BillingQuarterly    = "quarterly"
	BillingSemiAnnually = "semi-annually"
	BillingAnnually     = "annually"
)

// Deal statuses
const (
	DealStatusSubmitted = "submitted"
	DealStatusActive    = "active"
	DealStatusLapsed    = "lapsed"
	DealStatusCancelled = "cancelled"
)

// Deal is one submitted policy sale. The natural key for insert-or-update
// is (carrier_id, policy_number) or (carrier_id, application_number);
// at-most-one-row under concurrent submits is delegated to the unique
// indexes below.
type Deal struct {
	ID       uint `gorm:"primaryKey;autoIncrement"`
	AgencyID uint `gorm:"index;not null"`

	// Writing agent. Nil when the deal was imported without attribution;
	// the commission chain then falls back to the highest-earning
	// snapshot agent.
	AgentID      *uint `gorm:"index"`
	ClientUserID *uint `gorm:"index"`

	CarrierID    uint  `gorm:"not null;uniqueIndex:idx_deals_carrier_policy;uniqueIndex:idx_deals_carrier_application"`
	ProductID    uint  `gorm:"index;not null"`
	TeamID       *uint `gorm:"index"`
	LeadSourceID *uint `gorm:"index"`

	// Nullable so Postgres unique indexes ignore deals missing one of the
	// two numbers.
	PolicyNumber      *string `gorm:"uniqueIndex:idx_deals_carrier_policy"`
	ApplicationNumber *string `gorm:"uniqueIndex:idx_deals_carrier_application"`

	ClientFirstName string `gorm:"not null"`
	ClientLastName  string `gorm:"not null"`
	ClientEmail     string
	ClientPhone     string
	ClientAddress   string `gorm:"type:text"`
	ClientDOB       *time.Time

	MonthlyPremium decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Always monthly x 12, derived at write time, never client-supplied.
	AnnualPremium decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BillingCycle  string          `gorm:"not null;default:monthly"`

	// SSN-benefit billing-date pattern. Both null unless SSNBenefit is set.
	SSNBenefit         bool `gorm:"default:false"`
	BillingWeekOfMonth *int
	BillingWeekday     *string

	RateClass      string
	CoverageAmount decimal.Decimal `gorm:"type:decimal(14,2)"`
	Notes          string          `gorm:"type:text"`

	SubmittedAt   *time.Time
	EffectiveDate *time.Time
	Status        string `gorm:"index;not null;default:submitted"`

	Beneficiaries []Beneficiary `gorm:"foreignKey:DealID"`

	CreatedAt *time.Time `gorm:"index;autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

// Beneficiary is owned by exactly one deal.
type Beneficiary struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	DealID       uint   `gorm:"index;not null"`
	Name         string `gorm:"not null"`
	Relationship string `gorm:"not null"`
	CreatedAt    *time.Time `gorm:"autoCreateTime"`
}

// CommissionSnapshot captures an agent's position, rate and upline linkage
// at the time a deal was written. Rows are immutable; the per-deal chain
// (agent -> upline_agent) is reconstructed by repeated lookup, terminating
// at the root.
type CommissionSnapshot struct {
	ID            uint  `gorm:"primaryKey;autoIncrement"`
	DealID        uint  `gorm:"not null;uniqueIndex:idx_snapshots_deal_agent"`
	AgentID       uint  `gorm:"not null;uniqueIndex:idx_snapshots_deal_agent"`
	UplineAgentID *uint `gorm:"index"`

	Position     string          `gorm:"not null"`
	Rate         decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	EarnedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	CreatedAt *time.Time `gorm:"autoCreateTime"`
}
