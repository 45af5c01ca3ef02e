package models

// BeneficiaryInput is one beneficiary row on a deal submission
type BeneficiaryInput struct {
	Name         string `json:"name" validate:"required"`
	Relationship string `json:"relationship" validate:"required"`
}

// DealSubmitRequest is the normalized payload posted by the deal wizard.
// Monetary amounts travel as strings and are parsed server-side; the
// annual premium is never accepted from the client.
type DealSubmitRequest struct {
	CarrierID    uint  `json:"carrier_id" validate:"required"`
	ProductID    uint  `json:"product_id" validate:"required"`
	TeamID       *uint `json:"team_id,omitempty"`
	LeadSourceID *uint `json:"lead_source_id,omitempty"`

	PolicyNumber      string `json:"policy_number"`
	ApplicationNumber string `json:"application_number"`

	ClientFirstName string `json:"client_first_name" validate:"required"`
	ClientLastName  string `json:"client_last_name" validate:"required"`
	ClientEmail     string `json:"client_email"`
	ClientPhone     string `json:"client_phone"`
	ClientAddress   string `json:"client_address"`
	ClientDOB       string `json:"client_dob"` // YYYY-MM-DD

	MonthlyPremium string `json:"monthly_premium" validate:"required"`
	BillingCycle   string `json:"billing_cycle" validate:"required,oneof=monthly quarterly semi-annually annually"`

	SSNBenefit         string  `json:"ssn_benefit" validate:"omitempty,oneof=yes no"`
	BillingWeekOfMonth *int    `json:"billing_week_of_month,omitempty"`
	BillingWeekday     *string `json:"billing_weekday,omitempty"`

	RateClass      string `json:"rate_class"`
	CoverageAmount string `json:"coverage_amount"`
	Notes          string `json:"notes"`

	EffectiveDate string `json:"effective_date"` // YYYY-MM-DD

	Beneficiaries []BeneficiaryInput `json:"beneficiaries"`
}

// DealSubmitResponse reports the upsert outcome plus the best-effort
// client-invitation status
type DealSubmitResponse struct {
	Operation        string       `json:"operation"` // created | updated
	ID               uint         `json:"id"`
	Deal             DealResponse `json:"deal"`
	ClientID         uint         `json:"client_id,omitempty"`
	InvitationStatus string       `json:"invitation_status,omitempty"`
}

// BeneficiaryResponse is one beneficiary row in responses
type BeneficiaryResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}

// DealResponse represents a deal in API responses
type DealResponse struct {
	ID                 uint                  `json:"id"`
	AgencyID           uint                  `json:"agency_id"`
	AgentID            uint                  `json:"agent_id,omitempty"`
	AgentName          string                `json:"agent_name,omitempty"`
	CarrierID          uint                  `json:"carrier_id"`
	CarrierName        string                `json:"carrier_name,omitempty"`
	ProductID          uint                  `json:"product_id"`
	ProductName        string                `json:"product_name,omitempty"`
	TeamID             uint                  `json:"team_id,omitempty"`
	LeadSourceID       uint                  `json:"lead_source_id,omitempty"`
	PolicyNumber       string                `json:"policy_number,omitempty"`
	ApplicationNumber  string                `json:"application_number,omitempty"`
	ClientFirstName    string                `json:"client_first_name"`
	ClientLastName     string                `json:"client_last_name"`
	ClientEmail        string                `json:"client_email,omitempty"`
	ClientPhone        string                `json:"client_phone,omitempty"`
	MonthlyPremium     string                `json:"monthly_premium"`
	AnnualPremium      string                `json:"annual_premium"`
	BillingCycle       string                `json:"billing_cycle"`
	SSNBenefit         bool                  `json:"ssn_benefit"`
	BillingWeekOfMonth *int                  `json:"billing_week_of_month,omitempty"`
	BillingWeekday     *string               `json:"billing_weekday,omitempty"`
	RateClass          string                `json:"rate_class,omitempty"`
	CoverageAmount     string                `json:"coverage_amount,omitempty"`
	Notes              string                `json:"notes,omitempty"`
	EffectiveDate      string                `json:"effective_date,omitempty"`
	Status             string                `json:"status"`
	Beneficiaries      []BeneficiaryResponse `json:"beneficiaries,omitempty"`
	CreatedAt          string                `json:"created_at"`
}

// BookOfBusinessRequest carries list filters plus the pagination cursor
type BookOfBusinessRequest struct {
	Status    string `query:"status" validate:"omitempty,oneof=submitted active lapsed cancelled"`
	CarrierID uint   `query:"carrier_id"`
	AgentID   uint   `query:"agent_id"`
	From      string `query:"from"` // YYYY-MM-DD
	To        string `query:"to"`
	Q         string `query:"q"` // client name substring
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Cursor    string `query:"cursor"`
}

// BookOfBusinessResponse is one page of deals plus the cursor for the next
type BookOfBusinessResponse struct {
	Data       []DealResponse `json:"data"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// FormDataResponse bundles the agency-scoped reference data the deal
// wizard needs
type FormDataResponse struct {
	Carriers      []OptionResponse `json:"carriers"`
	Products      []ProductOption  `json:"products"`
	LeadSources   []OptionResponse `json:"lead_sources"`
	Teams         []OptionResponse `json:"teams,omitempty"`
	BillingCycles []string         `json:"billing_cycles"`
	RateClasses   []string         `json:"rate_classes"`
}

// ProductOption is a product select entry, grouped by carrier client-side
type ProductOption struct {
	ID        uint   `json:"id"`
	CarrierID uint   `json:"carrier_id"`
	Name      string `json:"name"`
}
