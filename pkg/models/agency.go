package models

// AgencySettingsResponse exposes the tenant configuration consumed by the
// deal wizard and portal
type AgencySettingsResponse struct {
	ID                    uint   `json:"id"`
	Name                  string `json:"name"`
	WhiteLabelDomain      string `json:"white_label_domain,omitempty"`
	TeamsEnabled          bool   `json:"teams_enabled"`
	BeneficiariesRequired bool   `json:"beneficiaries_required"`
	PostingEnabled        bool   `json:"posting_enabled"`
	DiscordWebhookSet     bool   `json:"discord_webhook_set"`
}

// UpdateAgencySettingsRequest updates tenant configuration (admin only)
type UpdateAgencySettingsRequest struct {
	Name                  *string `json:"name,omitempty"`
	WhiteLabelDomain      *string `json:"white_label_domain,omitempty"`
	TeamsEnabled          *bool   `json:"teams_enabled,omitempty"`
	BeneficiariesRequired *bool   `json:"beneficiaries_required,omitempty"`
	PostingEnabled        *bool   `json:"posting_enabled,omitempty"`
	DiscordWebhookURL     *string `json:"discord_webhook_url,omitempty" validate:"omitempty,url"`
	DealMessageTemplate   *string `json:"deal_message_template,omitempty"`
}

// InviteAgentRequest invites an agent into the agency (admin only)
type InviteAgentRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	UplineID  *uint  `json:"upline_id,omitempty"`
	Position  string `json:"position"`
	Rate      string `json:"rate"` // percentage, e.g. "70.00"
}

// AdminUpdateUserRequest mutates a user record (admin only)
type AdminUpdateUserRequest struct {
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=pre_invite invited onboarding active inactive"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=admin agent client"`
	UplineID *uint   `json:"upline_id,omitempty"`
	Position *string `json:"position,omitempty"`
	Rate     *string `json:"rate,omitempty"`
}

// UserListResponse is a paged admin user listing
type UserListResponse struct {
	Data  []UserInfo `json:"data"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}
