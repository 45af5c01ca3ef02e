package agency

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/cache"
	"github.com/nvalencia/agentbook/pkg/database/models"
)

const settingsCacheTTL = 5 * time.Minute

// Settings is the tenant configuration resolved once per request and
// consumed as typed input by the deal pipeline. Feature-flag presence
// checks never happen anywhere else.
type Settings struct {
	AgencyID              uint   `json:"agency_id"`
	Name                  string `json:"name"`
	WhiteLabelDomain      string `json:"white_label_domain"`
	TeamsEnabled          bool   `json:"teams_enabled"`
	BeneficiariesRequired bool   `json:"beneficiaries_required"`
	PostingEnabled        bool   `json:"posting_enabled"`
	DiscordWebhookURL     string `json:"discord_webhook_url"`
	DealMessageTemplate   string `json:"deal_message_template"`
}

// Service resolves and mutates agency configuration
type Service struct {
	db    *gorm.DB
	cache *cache.Client
}

// NewService creates a new agency service
func NewService(db *gorm.DB, cache *cache.Client) *Service {
	return &Service{
		db:    db,
		cache: cache,
	}
}

func settingsCacheKey(agencyID uint) string {
	return fmt.Sprintf("agency:settings:%d", agencyID)
}

// Resolve loads the settings for an agency, Redis-cached for five minutes
func (s *Service) Resolve(ctx context.Context, agencyID uint) (*Settings, error) {
	key := settingsCacheKey(agencyID)

	var cached Settings
	if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	var ag models.Agency
	if err := s.db.WithContext(ctx).First(&ag, agencyID).Error; err != nil {
		return nil, fmt.Errorf("failed to load agency %d: %w", agencyID, err)
	}

	settings := fromEntity(&ag)

	// Cache is best effort; a write failure only costs the next lookup.
	_ = s.cache.SetJSON(ctx, key, settings, settingsCacheTTL)

	return settings, nil
}

// Get returns the raw agency row
func (s *Service) Get(ctx context.Context, agencyID uint) (*models.Agency, error) {
	var ag models.Agency
	if err := s.db.WithContext(ctx).First(&ag, agencyID).Error; err != nil {
		return nil, fmt.Errorf("failed to load agency %d: %w", agencyID, err)
	}
	return &ag, nil
}

// UpdateInput carries the mutable settings fields; nil means unchanged
type UpdateInput struct {
	Name                  *string
	WhiteLabelDomain      *string
	TeamsEnabled          *bool
	BeneficiariesRequired *bool
	PostingEnabled        *bool
	DiscordWebhookURL     *string
	DealMessageTemplate   *string
}

// Update applies the non-nil fields and invalidates the settings cache
func (s *Service) Update(ctx context.Context, agencyID uint, in UpdateInput) (*Settings, error) {
	var ag models.Agency
	if err := s.db.WithContext(ctx).First(&ag, agencyID).Error; err != nil {
		return nil, fmt.Errorf("failed to load agency %d: %w", agencyID, err)
	}

	if in.Name != nil {
		ag.Name = *in.Name
	}
	if in.WhiteLabelDomain != nil {
		if *in.WhiteLabelDomain == "" {
			ag.WhiteLabelDomain = nil
		} else {
			ag.WhiteLabelDomain = in.WhiteLabelDomain
		}
	}
	if in.TeamsEnabled != nil {
		ag.TeamsEnabled = *in.TeamsEnabled
	}
	if in.BeneficiariesRequired != nil {
		ag.BeneficiariesRequired = *in.BeneficiariesRequired
	}
	if in.PostingEnabled != nil {
		ag.PostingEnabled = *in.PostingEnabled
	}
	if in.DiscordWebhookURL != nil {
		ag.DiscordWebhookURL = *in.DiscordWebhookURL
	}
	if in.DealMessageTemplate != nil {
		ag.DealMessageTemplate = *in.DealMessageTemplate
	}

	if err := s.db.WithContext(ctx).Save(&ag).Error; err != nil {
		return nil, fmt.Errorf("failed to update agency %d: %w", agencyID, err)
	}

	_ = s.cache.Delete(ctx, settingsCacheKey(agencyID))

	return fromEntity(&ag), nil
}

func fromEntity(ag *models.Agency) *Settings {
	domain := ""
	if ag.WhiteLabelDomain != nil {
		domain = *ag.WhiteLabelDomain
	}
	return &Settings{
		AgencyID:              ag.ID,
		Name:                  ag.Name,
		WhiteLabelDomain:      domain,
		TeamsEnabled:          ag.TeamsEnabled,
		BeneficiariesRequired: ag.BeneficiariesRequired,
		PostingEnabled:        ag.PostingEnabled,
		DiscordWebhookURL:     ag.DiscordWebhookURL,
		DealMessageTemplate:   ag.DealMessageTemplate,
	}
}
