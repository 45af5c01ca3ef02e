package models

import "time"

// Agency is the tenant boundary. Every user, deal and catalog row belongs
// to exactly one agency.
type Agency struct {
	ID   uint   `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"not null"`

	// Nil when the agency has no white-label domain configured, so the
	// unique index only applies to agencies that set one.
	WhiteLabelDomain      *string `gorm:"uniqueIndex"`
	TeamsEnabled          bool    `gorm:"default:false"`
	BeneficiariesRequired bool    `gorm:"default:false"`
	PostingEnabled        bool    `gorm:"default:true"`
	DiscordWebhookURL     string
	DealMessageTemplate   string     `gorm:"type:text"`
	CreatedAt             *time.Time `gorm:"autoCreateTime"`
	UpdatedAt             *time.Time `gorm:"autoUpdateTime"`
}

// Carrier is an insurance carrier offered by an agency.
type Carrier struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AgencyID  uint   `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Active    bool   `gorm:"default:true"`
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`

	Products []Product `gorm:"foreignKey:CarrierID"`
}

// Product is a policy product sold under a carrier.
type Product struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AgencyID  uint   `gorm:"index;not null"`
	CarrierID uint   `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Active    bool   `gorm:"default:true"`
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

// Team groups agents inside an agency. Only meaningful when the agency has
// teams enabled.
type Team struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AgencyID  uint   `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

// LeadSource is an agency-configured origin for a deal (referral, web,
// purchased list, ...).
type LeadSource struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AgencyID  uint   `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Active    bool   `gorm:"default:true"`
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}
