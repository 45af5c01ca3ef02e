package deals

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nvalencia/agentbook/pkg/database/models"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
	bookCacheTTL    = 2 * time.Minute
)

// BookOfBusiness returns one page of the agency's deals, newest first.
// Pagination is keyset on (created_at, id) so pages stay stable while new
// deals arrive. Pages are cached briefly; any deal write invalidates the
// whole agency's book cache.
func (s *Service) BookOfBusiness(ctx context.Context, agencyID uint, req apimodels.BookOfBusinessRequest) (*apimodels.BookOfBusinessResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	cacheKey := bookCacheKey(agencyID, &req, limit)
	var cached apimodels.BookOfBusinessResponse
	if found, err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
		if s.metrics != nil {
			s.metrics.RecordCacheHit()
		}
		return &cached, nil
	}
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}

	query := s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("agency_id = ?", agencyID)

	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.CarrierID != 0 {
		query = query.Where("carrier_id = ?", req.CarrierID)
	}
	if req.AgentID != 0 {
		query = query.Where("agent_id = ?", req.AgentID)
	}
	if req.From != "" {
		if from, err := time.Parse("2006-01-02", req.From); err == nil {
			query = query.Where("created_at >= ?", from)
		}
	}
	if req.To != "" {
		if to, err := time.Parse("2006-01-02", req.To); err == nil {
			query = query.Where("created_at < ?", to.AddDate(0, 0, 1))
		}
	}
	if req.Q != "" {
		needle := "%" + strings.ToLower(strings.TrimSpace(req.Q)) + "%"
		query = query.Where(
			"LOWER(client_first_name) LIKE ? OR LOWER(client_last_name) LIKE ?",
			needle, needle,
		)
	}

	if req.Cursor != "" {
		after, afterID, err := decodeCursor(req.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			after, after, afterID,
		)
	}

	// Fetch one extra row to learn whether a next page exists.
	var page []models.Deal
	err := query.
		Preload("Beneficiaries").
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&page).Error
	if err != nil {
		return nil, fmt.Errorf("book of business query failed: %w", err)
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}

	names, err := s.agencyNameMaps(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	resp := &apimodels.BookOfBusinessResponse{
		Data:    make([]apimodels.DealResponse, 0, len(page)),
		HasMore: hasMore,
	}
	for i := range page {
		resp.Data = append(resp.Data, s.toResponse(&page[i], names.forDeal(&page[i])))
	}
	if hasMore {
		last := page[len(page)-1]
		resp.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}

	if err := s.cache.SetJSON(ctx, cacheKey, resp, bookCacheTTL); err != nil {
		s.log.Warn("book page cache write failed", "agency_id", agencyID, "error", err)
	}

	return resp, nil
}

// encodeCursor packs the keyset position as base64("nanotime|id")
func encodeCursor(createdAt *time.Time, id uint) string {
	ts := ""
	if createdAt != nil {
		ts = createdAt.UTC().Format(time.RFC3339Nano)
	}
	raw := fmt.Sprintf("%s|%d", ts, id)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, uint, error) {
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, 0, err
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, err
	}
	return ts, uint(id), nil
}

// bookCacheKey hashes the filter set so every distinct view caches
// independently under the agency's invalidation pattern
func bookCacheKey(agencyID uint, req *apimodels.BookOfBusinessRequest, limit int) string {
	raw := fmt.Sprintf("%s|%d|%d|%s|%s|%s|%d|%s",
		req.Status, req.CarrierID, req.AgentID, req.From, req.To, req.Q, limit, req.Cursor)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("book:agency:%d:%s", agencyID, hex.EncodeToString(sum[:8]))
}

// nameMaps resolves display names for a page of deals with three queries
// instead of three per row
type nameMaps struct {
	agents   map[uint]string
	carriers map[uint]string
	products map[uint]string
}

func (n *nameMaps) forDeal(deal *models.Deal) dealNames {
	names := dealNames{
		carrier: n.carriers[deal.CarrierID],
		product: n.products[deal.ProductID],
	}
	if deal.AgentID != nil {
		names.agent = n.agents[*deal.AgentID]
	}
	return names
}

func (s *Service) agencyNameMaps(ctx context.Context, agencyID uint) (*nameMaps, error) {
	maps := &nameMaps{
		agents:   make(map[uint]string),
		carriers: make(map[uint]string),
		products: make(map[uint]string),
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("agency_id = ?", agencyID).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		maps.agents[u.ID] = u.FullName()
	}

	var carriers []models.Carrier
	if err := s.db.WithContext(ctx).Where("agency_id = ?", agencyID).Find(&carriers).Error; err != nil {
		return nil, err
	}
	for _, c := range carriers {
		maps.carriers[c.ID] = c.Name
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Where("agency_id = ?", agencyID).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		maps.products[p.ID] = p.Name
	}

	return maps, nil
}
