package deals

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/agency"
	"github.com/nvalencia/agentbook/pkg/cache"
	"github.com/nvalencia/agentbook/pkg/clients"
	"github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/hierarchy"
	"github.com/nvalencia/agentbook/pkg/logger"
	"github.com/nvalencia/agentbook/pkg/metrics"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
	"github.com/nvalencia/agentbook/pkg/notify"
)

// Upsert outcomes
const (
	OperationCreated = "created"
	OperationUpdated = "updated"
)

// submitTimeout bounds the whole upsert transaction
const submitTimeout = 30 * time.Second

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigits    = regexp.MustCompile(`\D`)

	validWeekdays = map[string]bool{
		"monday": true, "tuesday": true, "wednesday": true,
		"thursday": true, "friday": true, "saturday": true, "sunday": true,
	}
)

// Service handles deal submission and retrieval
type Service struct {
	db        *gorm.DB
	cache     *cache.Client
	agencies  *agency.Service
	hierarchy *hierarchy.Service
	invites   *clients.Service
	notifier  *notify.Notifier
	log       logger.Logger
	metrics   *metrics.Metrics
}

// NewService creates a new deal service
func NewService(
	db *gorm.DB,
	cacheClient *cache.Client,
	agencies *agency.Service,
	hierarchySvc *hierarchy.Service,
	invites *clients.Service,
	notifier *notify.Notifier,
	log logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		db:        db,
		cache:     cacheClient,
		agencies:  agencies,
		hierarchy: hierarchySvc,
		invites:   invites,
		notifier:  notifier,
		log:       log,
		metrics:   m,
	}
}

// normalized is the validated, parsed form of a submission payload
type normalized struct {
	policyNumber      *string
	applicationNumber *string
	clientPhone       string
	clientDOB         *time.Time
	effectiveDate     *time.Time
	monthly           decimal.Decimal
	annual            decimal.Decimal
	coverage          decimal.Decimal
	ssnBenefit        bool
	weekOfMonth       *int
	weekday           *string
}

// Submit validates the payload, invites the client (best effort), then
// inserts or updates the deal by natural key. The returned operation is
// "created" or "updated".
func (s *Service) Submit(ctx context.Context, agencyID uint, agentID uint, req apimodels.DealSubmitRequest) (*apimodels.DealSubmitResponse, error) {
	settings, err := s.agencies.Resolve(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	if !settings.PostingEnabled {
		return nil, ErrPostingDisabled
	}

	positions, err := s.hierarchy.CheckPositions(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !positions.OK {
		return nil, ErrPositionMissing
	}

	norm, verr := s.validate(ctx, agencyID, settings, &req)
	if verr != nil {
		return nil, verr
	}

	// Invitation first: its failure must never block the deal.
	invite := s.invites.InviteForDeal(ctx, agencyID, req.ClientEmail, req.ClientFirstName, req.ClientLastName, norm.clientPhone)

	upsertCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()

	deal, operation, err := s.upsert(upsertCtx, agencyID, agentID, &req, norm, invite.ClientID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordDealSubmitted(operation)
	}

	// Cached book pages are stale after any write.
	if err := s.cache.DeletePattern(ctx, fmt.Sprintf("book:agency:%d:*", agencyID)); err != nil {
		s.log.Warn("book cache invalidation failed", "agency_id", agencyID, "error", err)
	}

	names := s.lookupNames(ctx, deal)

	s.notifier.DealPosted(ctx, settings.DiscordWebhookURL, settings.DealMessageTemplate, map[string]string{
		"agent_name":      names.agent,
		"carrier_name":    names.carrier,
		"product_name":    names.product,
		"client_name":     deal.ClientFirstName + " " + deal.ClientLastName,
		"monthly_premium": deal.MonthlyPremium.StringFixed(2),
		"annual_premium":  deal.AnnualPremium.StringFixed(2),
		"policy_number":   strPtrValue(deal.PolicyNumber),
		"effective_date":  formatDate(deal.EffectiveDate),
	})

	return &apimodels.DealSubmitResponse{
		Operation:        operation,
		ID:               deal.ID,
		Deal:             s.toResponse(deal, names),
		ClientID:         invite.ClientID,
		InvitationStatus: invite.Status,
	}, nil
}

// Get loads one deal with beneficiaries, agency-scoped
func (s *Service) Get(ctx context.Context, agencyID, dealID uint) (*apimodels.DealResponse, error) {
	var deal models.Deal
	err := s.db.WithContext(ctx).
		Preload("Beneficiaries").
		Where("agency_id = ?", agencyID).
		First(&deal, dealID).Error
	if err != nil {
		return nil, err
	}

	resp := s.toResponse(&deal, s.lookupNames(ctx, &deal))
	return &resp, nil
}

// validate checks every agency rule and parses the payload. Field problems
// accumulate so the agent sees all of them at once.
func (s *Service) validate(ctx context.Context, agencyID uint, settings *agency.Settings, req *apimodels.DealSubmitRequest) (*normalized, error) {
	verr := ValidationErrors{}
	norm := &normalized{}

	// Natural key: at most one of the two numbers may be empty.
	policy := strings.TrimSpace(req.PolicyNumber)
	application := strings.TrimSpace(req.ApplicationNumber)
	if policy == "" && application == "" {
		verr["policy_number"] = "either a policy number or an application number is required"
	}
	if policy != "" {
		norm.policyNumber = &policy
	}
	if application != "" {
		norm.applicationNumber = &application
	}

	// Monthly premium parses to a non-negative number; annual is always
	// derived, never entered.
	monthly, err := decimal.NewFromString(strings.TrimSpace(req.MonthlyPremium))
	if err != nil {
		verr["monthly_premium"] = "must be a number"
	} else if monthly.IsNegative() {
		verr["monthly_premium"] = "must not be negative"
	} else {
		norm.monthly = monthly
		norm.annual = monthly.Mul(decimal.NewFromInt(12))
	}

	if req.CoverageAmount != "" {
		coverage, err := decimal.NewFromString(strings.TrimSpace(req.CoverageAmount))
		if err != nil || coverage.IsNegative() {
			verr["coverage_amount"] = "must be a non-negative number"
		} else {
			norm.coverage = coverage
		}
	}

	if req.ClientEmail != "" && !emailPattern.MatchString(req.ClientEmail) {
		verr["client_email"] = "must be a valid email address"
	}

	if req.ClientPhone != "" {
		digits, err := normalizePhone(req.ClientPhone)
		if err != nil {
			verr["client_phone"] = "must be a 10-digit US phone number"
		} else {
			norm.clientPhone = digits
		}
	}

	if req.ClientDOB != "" {
		dob, err := time.Parse("2006-01-02", req.ClientDOB)
		if err != nil {
			verr["client_dob"] = "must be formatted YYYY-MM-DD"
		} else {
			norm.clientDOB = &dob
		}
	}

	if req.EffectiveDate != "" {
		eff, err := time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			verr["effective_date"] = "must be formatted YYYY-MM-DD"
		} else {
			norm.effectiveDate = &eff
		}
	}

	// SSN-benefit billing pattern: required when the flag is yes, forced
	// null otherwise regardless of what the form held.
	if req.SSNBenefit == "yes" {
		norm.ssnBenefit = true
		if req.BillingWeekOfMonth == nil || *req.BillingWeekOfMonth < 1 || *req.BillingWeekOfMonth > 4 {
			verr["billing_week_of_month"] = "required for SSN-benefit billing, 1 through 4"
		} else {
			norm.weekOfMonth = req.BillingWeekOfMonth
		}
		if req.BillingWeekday == nil || !validWeekdays[strings.ToLower(*req.BillingWeekday)] {
			verr["billing_weekday"] = "required for SSN-benefit billing"
		} else {
			weekday := strings.ToLower(*req.BillingWeekday)
			norm.weekday = &weekday
		}
	}

	// Agency-configuration-dependent requirements.
	if settings.TeamsEnabled && req.TeamID == nil {
		verr["team_id"] = "a team is required by your agency"
	}
	if settings.BeneficiariesRequired && len(req.Beneficiaries) == 0 {
		verr["beneficiaries"] = "at least one beneficiary is required by your agency"
	}
	for i, b := range req.Beneficiaries {
		if strings.TrimSpace(b.Name) == "" || strings.TrimSpace(b.Relationship) == "" {
			verr[fmt.Sprintf("beneficiaries[%d]", i)] = "name and relationship are required"
		}
	}

	// Catalog references must belong to the agency.
	var carrierCount int64
	s.db.WithContext(ctx).Model(&models.Carrier{}).
		Where("id = ? AND agency_id = ?", req.CarrierID, agencyID).
		Count(&carrierCount)
	if carrierCount == 0 {
		verr["carrier_id"] = "unknown carrier"
	}

	var productCount int64
	s.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND carrier_id = ? AND agency_id = ?", req.ProductID, req.CarrierID, agencyID).
		Count(&productCount)
	if productCount == 0 {
		verr["product_id"] = "unknown product for this carrier"
	}

	if req.TeamID != nil {
		var teamCount int64
		s.db.WithContext(ctx).Model(&models.Team{}).
			Where("id = ? AND agency_id = ?", *req.TeamID, agencyID).
			Count(&teamCount)
		if teamCount == 0 {
			verr["team_id"] = "unknown team"
		}
	}

	if req.LeadSourceID != nil {
		var sourceCount int64
		s.db.WithContext(ctx).Model(&models.LeadSource{}).
			Where("id = ? AND agency_id = ?", *req.LeadSourceID, agencyID).
			Count(&sourceCount)
		if sourceCount == 0 {
			verr["lead_source_id"] = "unknown lead source"
		}
	}

	if len(verr) > 0 {
		return nil, verr
	}
	return norm, nil
}

// upsert finds the deal by natural key and updates it, or inserts a new
// row. Concurrent duplicate submissions are decided by the unique index;
// the loser of the race retries once as an update.
func (s *Service) upsert(ctx context.Context, agencyID, agentID uint, req *apimodels.DealSubmitRequest, norm *normalized, clientID uint) (*models.Deal, string, error) {
	deal, operation, err := s.tryUpsert(ctx, agencyID, agentID, req, norm, clientID)
	if err != nil && isUniqueViolation(err) {
		s.log.Warn("deal insert lost a concurrent upsert race, retrying as update", "agency_id", agencyID)
		deal, operation, err = s.tryUpsert(ctx, agencyID, agentID, req, norm, clientID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("deal upsert failed: %w", err)
	}
	return deal, operation, nil
}

func (s *Service) tryUpsert(ctx context.Context, agencyID, agentID uint, req *apimodels.DealSubmitRequest, norm *normalized, clientID uint) (*models.Deal, string, error) {
	var deal *models.Deal
	operation := OperationCreated

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findByNaturalKey(tx, agencyID, req.CarrierID, norm)
		if err != nil {
			return err
		}

		if existing != nil {
			operation = OperationUpdated
			deal = existing
			applyMutableFields(deal, req, norm, clientID)
			if err := tx.Save(deal).Error; err != nil {
				return err
			}

			// Beneficiaries are replaced wholesale on update.
			if err := tx.Where("deal_id = ?", deal.ID).Delete(&models.Beneficiary{}).Error; err != nil {
				return err
			}
			return createBeneficiaries(tx, deal.ID, req.Beneficiaries)
		}

		now := time.Now()
		deal = &models.Deal{
			AgencyID:    agencyID,
			AgentID:     &agentID,
			CarrierID:   req.CarrierID,
			SubmittedAt: &now,
			Status:      models.DealStatusSubmitted,
		}
		applyMutableFields(deal, req, norm, clientID)
		deal.PolicyNumber = norm.policyNumber
		deal.ApplicationNumber = norm.applicationNumber

		if err := tx.Create(deal).Error; err != nil {
			return err
		}
		if err := createBeneficiaries(tx, deal.ID, req.Beneficiaries); err != nil {
			return err
		}

		// Snapshots are written exactly once, at create time.
		return s.hierarchy.WriteSnapshots(tx, deal)
	})
	if err != nil {
		return nil, "", err
	}

	return deal, operation, nil
}

// findByNaturalKey looks up the existing row for (carrier, policy_number)
// first, then (carrier, application_number).
func findByNaturalKey(tx *gorm.DB, agencyID, carrierID uint, norm *normalized) (*models.Deal, error) {
	lookup := func(column string, value *string) (*models.Deal, error) {
		if value == nil {
			return nil, nil
		}
		var deal models.Deal
		err := tx.Where("agency_id = ? AND carrier_id = ? AND "+column+" = ?", agencyID, carrierID, *value).
			First(&deal).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &deal, nil
	}

	if deal, err := lookup("policy_number", norm.policyNumber); deal != nil || err != nil {
		return deal, err
	}
	return lookup("application_number", norm.applicationNumber)
}

// applyMutableFields writes the fields a resubmission may change. The
// writing agent, natural key, submission time and snapshots stay as first
// written.
func applyMutableFields(deal *models.Deal, req *apimodels.DealSubmitRequest, norm *normalized, clientID uint) {
	deal.ProductID = req.ProductID
	deal.TeamID = req.TeamID
	deal.LeadSourceID = req.LeadSourceID
	deal.ClientFirstName = req.ClientFirstName
	deal.ClientLastName = req.ClientLastName
	deal.ClientEmail = req.ClientEmail
	deal.ClientPhone = norm.clientPhone
	deal.ClientAddress = req.ClientAddress
	deal.ClientDOB = norm.clientDOB
	deal.MonthlyPremium = norm.monthly
	deal.AnnualPremium = norm.annual
	deal.BillingCycle = req.BillingCycle
	deal.SSNBenefit = norm.ssnBenefit
	deal.BillingWeekOfMonth = norm.weekOfMonth
	deal.BillingWeekday = norm.weekday
	deal.RateClass = req.RateClass
	deal.CoverageAmount = norm.coverage
	deal.Notes = req.Notes
	deal.EffectiveDate = norm.effectiveDate

	if clientID != 0 && deal.ClientUserID == nil {
		id := clientID
		deal.ClientUserID = &id
	}
}

func createBeneficiaries(tx *gorm.DB, dealID uint, inputs []apimodels.BeneficiaryInput) error {
	for _, input := range inputs {
		b := models.Beneficiary{
			DealID:       dealID,
			Name:         strings.TrimSpace(input.Name),
			Relationship: strings.TrimSpace(input.Relationship),
		}
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
	}
	return nil
}

// normalizePhone reduces a phone input to exactly 10 national digits
func normalizePhone(raw string) (string, error) {
	if parsed, err := phonenumbers.Parse(raw, "US"); err == nil && phonenumbers.IsValidNumber(parsed) {
		national := phonenumbers.GetNationalSignificantNumber(parsed)
		if len(national) == 10 {
			return national, nil
		}
	}

	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", fmt.Errorf("phone %q does not normalize to 10 digits", raw)
	}
	return digits, nil
}

// isUniqueViolation matches the duplicate-key errors Postgres and SQLite
// raise on the natural-key indexes
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// dealNames carries display names for responses and notifications
type dealNames struct {
	agent   string
	carrier string
	product string
}

func (s *Service) lookupNames(ctx context.Context, deal *models.Deal) dealNames {
	names := dealNames{}

	if deal.AgentID != nil {
		var agent models.User
		if err := s.db.WithContext(ctx).First(&agent, *deal.AgentID).Error; err == nil {
			names.agent = agent.FullName()
		}
	}

	var carrier models.Carrier
	if err := s.db.WithContext(ctx).First(&carrier, deal.CarrierID).Error; err == nil {
		names.carrier = carrier.Name
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, deal.ProductID).Error; err == nil {
		names.product = product.Name
	}

	return names
}

func (s *Service) toResponse(deal *models.Deal, names dealNames) apimodels.DealResponse {
	resp := apimodels.DealResponse{
		ID:                 deal.ID,
		AgencyID:           deal.AgencyID,
		AgentName:          names.agent,
		CarrierID:          deal.CarrierID,
		CarrierName:        names.carrier,
		ProductID:          deal.ProductID,
		ProductName:        names.product,
		PolicyNumber:       strPtrValue(deal.PolicyNumber),
		ApplicationNumber:  strPtrValue(deal.ApplicationNumber),
		ClientFirstName:    deal.ClientFirstName,
		ClientLastName:     deal.ClientLastName,
		ClientEmail:        deal.ClientEmail,
		ClientPhone:        deal.ClientPhone,
		MonthlyPremium:     deal.MonthlyPremium.StringFixed(2),
		AnnualPremium:      deal.AnnualPremium.StringFixed(2),
		BillingCycle:       deal.BillingCycle,
		SSNBenefit:         deal.SSNBenefit,
		BillingWeekOfMonth: deal.BillingWeekOfMonth,
		BillingWeekday:     deal.BillingWeekday,
		RateClass:          deal.RateClass,
		Notes:              deal.Notes,
		EffectiveDate:      formatDate(deal.EffectiveDate),
		Status:             deal.Status,
	}

	if deal.AgentID != nil {
		resp.AgentID = *deal.AgentID
	}
	if deal.TeamID != nil {
		resp.TeamID = *deal.TeamID
	}
	if deal.LeadSourceID != nil {
		resp.LeadSourceID = *deal.LeadSourceID
	}
	if !deal.CoverageAmount.IsZero() {
		resp.CoverageAmount = deal.CoverageAmount.StringFixed(2)
	}
	if deal.CreatedAt != nil {
		resp.CreatedAt = deal.CreatedAt.Format(time.RFC3339)
	}

	for _, b := range deal.Beneficiaries {
		resp.Beneficiaries = append(resp.Beneficiaries, apimodels.BeneficiaryResponse{
			ID:           b.ID,
			Name:         b.Name,
			Relationship: b.Relationship,
		})
	}

	return resp
}

func strPtrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
