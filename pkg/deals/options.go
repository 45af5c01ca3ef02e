package deals

import (
	"context"
	"fmt"
	"time"

	"github.com/nvalencia/agentbook/pkg/database/models"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
)

const formDataCacheTTL = 10 * time.Minute

var rateClasses = []string{
	"preferred_plus", "preferred", "standard_plus", "standard",
	"table_rated", "graded", "guaranteed_issue",
}

// FormData returns the agency-scoped reference lists the deal wizard
// renders. Teams are included only when the agency has teams enabled.
func (s *Service) FormData(ctx context.Context, agencyID uint) (*apimodels.FormDataResponse, error) {
	cacheKey := fmt.Sprintf("deals:formdata:%d", agencyID)
	var cached apimodels.FormDataResponse
	if found, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
		return &cached, nil
	}

	settings, err := s.agencies.Resolve(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	resp := &apimodels.FormDataResponse{
		BillingCycles: []string{
			models.BillingMonthly, models.BillingQuarterly,
			models.BillingSemiAnnually, models.BillingAnnually,
		},
		RateClasses: rateClasses,
	}

	var carriers []models.Carrier
	if err := s.db.WithContext(ctx).
		Where("agency_id = ? AND active = ?", agencyID, true).
		Order("name ASC").
		Find(&carriers).Error; err != nil {
		return nil, fmt.Errorf("failed to load carriers: %w", err)
	}
	for _, c := range carriers {
		resp.Carriers = append(resp.Carriers, apimodels.OptionResponse{ID: c.ID, Name: c.Name})
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).
		Where("agency_id = ? AND active = ?", agencyID, true).
		Order("name ASC").
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		resp.Products = append(resp.Products, apimodels.ProductOption{
			ID:        p.ID,
			CarrierID: p.CarrierID,
			Name:      p.Name,
		})
	}

	var sources []models.LeadSource
	if err := s.db.WithContext(ctx).
		Where("agency_id = ?", agencyID).
		Order("name ASC").
		Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("failed to load lead sources: %w", err)
	}
	for _, src := range sources {
		resp.LeadSources = append(resp.LeadSources, apimodels.OptionResponse{ID: src.ID, Name: src.Name})
	}

	if settings.TeamsEnabled {
		var teams []models.Team
		if err := s.db.WithContext(ctx).
			Where("agency_id = ?", agencyID).
			Order("name ASC").
			Find(&teams).Error; err != nil {
			return nil, fmt.Errorf("failed to load teams: %w", err)
		}
		for _, t := range teams {
			resp.Teams = append(resp.Teams, apimodels.OptionResponse{ID: t.ID, Name: t.Name})
		}
	}

	if err := s.cache.SetJSON(ctx, cacheKey, resp, formDataCacheTTL); err != nil {
		s.log.Warn("form data cache write failed", "agency_id", agencyID, "error", err)
	}

	return resp, nil
}

// ProductsByCarrier narrows the product list for a carrier select change
func (s *Service) ProductsByCarrier(ctx context.Context, agencyID, carrierID uint) ([]apimodels.ProductOption, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).
		Where("agency_id = ? AND carrier_id = ? AND active = ?", agencyID, carrierID, true).
		Order("name ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	options := make([]apimodels.ProductOption, 0, len(products))
	for _, p := range products {
		options = append(options, apimodels.ProductOption{
			ID:        p.ID,
			CarrierID: p.CarrierID,
			Name:      p.Name,
		})
	}
	return options, nil
}
