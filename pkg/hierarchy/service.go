package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nvalencia/agentbook/pkg/database/models"
	"github.com/nvalencia/agentbook/pkg/logger"
	"github.com/nvalencia/agentbook/pkg/metrics"
	apimodels "github.com/nvalencia/agentbook/pkg/models"
)

// maxDepth bounds upline walks so a corrupted upline cycle cannot hang a
// request.
const maxDepth = 20

// ErrNoSnapshots is returned when a deal has no commission snapshots at all
var ErrNoSnapshots = errors.New("deal has no commission snapshots")

// Service reconstructs per-deal commission chains from immutable
// snapshots and checks live upline position assignments.
type Service struct {
	db      *gorm.DB
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewService creates a new hierarchy service
func NewService(db *gorm.DB, log logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		db:      db,
		log:     log,
		metrics: m,
	}
}

// WriteSnapshots captures the writing agent's live upline chain into
// immutable per-deal snapshot rows. Called once inside the deal-create
// transaction; deal updates never touch snapshots.
func (s *Service) WriteSnapshots(tx *gorm.DB, deal *models.Deal) error {
	if deal.AgentID == nil {
		return nil
	}

	visited := make(map[uint]bool)
	currentID := *deal.AgentID

	for depth := 0; depth < maxDepth; depth++ {
		if visited[currentID] {
			return fmt.Errorf("upline cycle detected at agent %d", currentID)
		}
		visited[currentID] = true

		var agent models.User
		if err := tx.First(&agent, currentID).Error; err != nil {
			return fmt.Errorf("failed to load agent %d: %w", currentID, err)
		}

		earned := deal.AnnualPremium.Mul(agent.CommissionRate).Div(decimal.NewFromInt(100))

		snapshot := models.CommissionSnapshot{
			DealID:        deal.ID,
			AgentID:       agent.ID,
			UplineAgentID: agent.UplineID,
			Position:      agent.Position,
			Rate:          agent.CommissionRate,
			EarnedAmount:  earned,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("failed to write commission snapshot: %w", err)
		}

		if agent.UplineID == nil {
			return nil
		}
		currentID = *agent.UplineID
	}

	return fmt.Errorf("upline chain exceeds max depth %d", maxDepth)
}

// Chain reconstructs the commission split for a deal by repeated snapshot
// lookups, following upline links until none remains. The result is
// ordered root-first; Level counts distance from the writing agent and
// decreases by one per entry.
func (s *Service) Chain(ctx context.Context, agencyID, dealID uint) (*apimodels.CommissionChainResponse, error) {
	var deal models.Deal
	if err := s.db.WithContext(ctx).
		Where("agency_id = ?", agencyID).
		First(&deal, dealID).Error; err != nil {
		return nil, fmt.Errorf("failed to load deal %d: %w", dealID, err)
	}

	writingAgentID, err := s.writingAgent(ctx, &deal)
	if err != nil {
		return nil, err
	}

	// Walk writing agent -> root by point lookups.
	var walk []models.CommissionSnapshot
	currentID := writingAgentID
	for depth := 0; depth < maxDepth; depth++ {
		var snap models.CommissionSnapshot
		err := s.db.WithContext(ctx).
			Where("deal_id = ? AND agent_id = ?", dealID, currentID).
			First(&snap).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// A missing snapshot truncates the walk rather than
				// erroring; the gap is observable via log and metric.
				if s.metrics != nil {
					s.metrics.ChainTruncations.Inc()
				}
				s.log.Warn("commission chain truncated: missing snapshot",
					"deal_id", dealID, "agent_id", currentID, "depth", depth)
				break
			}
			return nil, fmt.Errorf("failed to load snapshot: %w", err)
		}

		walk = append(walk, snap)
		if snap.UplineAgentID == nil {
			break
		}
		currentID = *snap.UplineAgentID
	}

	// Render top-of-hierarchy first.
	entries := make([]apimodels.CommissionEntry, 0, len(walk))
	for i := len(walk) - 1; i >= 0; i-- {
		snap := walk[i]

		var agent models.User
		name := fmt.Sprintf("agent #%d", snap.AgentID)
		if err := s.db.WithContext(ctx).First(&agent, snap.AgentID).Error; err == nil {
			name = agent.FullName()
		}

		entries = append(entries, apimodels.CommissionEntry{
			AgentID:      snap.AgentID,
			AgentName:    name,
			Position:     snap.Position,
			Rate:         snap.Rate.StringFixed(2),
			Level:        i,
			EarnedAmount: snap.EarnedAmount.StringFixed(2),
		})
	}

	return &apimodels.CommissionChainResponse{
		DealID:         dealID,
		WritingAgentID: writingAgentID,
		Entries:        entries,
	}, nil
}

// writingAgent resolves the agent credited with the deal, falling back to
// the highest-earning snapshot agent when the deal carries no reference.
func (s *Service) writingAgent(ctx context.Context, deal *models.Deal) (uint, error) {
	if deal.AgentID != nil {
		return *deal.AgentID, nil
	}

	var top models.CommissionSnapshot
	err := s.db.WithContext(ctx).
		Where("deal_id = ?", deal.ID).
		Order("earned_amount DESC").
		First(&top).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNoSnapshots
		}
		return 0, fmt.Errorf("failed to resolve writing agent: %w", err)
	}

	s.log.Warn("deal has no writing agent, using highest-earning snapshot agent",
		"deal_id", deal.ID, "agent_id", top.AgentID)

	return top.AgentID, nil
}

// CheckPositions verifies that the agent and every live upline have a
// commission position assigned. Names of agents missing a position are
// returned for the remediation message.
func (s *Service) CheckPositions(ctx context.Context, agentID uint) (*apimodels.CheckPositionsResponse, error) {
	visited := make(map[uint]bool)
	var missing []string

	currentID := agentID
	for depth := 0; depth < maxDepth; depth++ {
		if visited[currentID] {
			break
		}
		visited[currentID] = true

		var agent models.User
		if err := s.db.WithContext(ctx).First(&agent, currentID).Error; err != nil {
			return nil, fmt.Errorf("failed to load agent %d: %w", currentID, err)
		}

		if agent.Position == "" {
			missing = append(missing, agent.FullName())
		}

		if agent.UplineID == nil {
			break
		}
		currentID = *agent.UplineID
	}

	return &apimodels.CheckPositionsResponse{
		OK:      len(missing) == 0,
		Missing: missing,
	}, nil
}

// Downline lists the agents below the given agent, breadth-first, with
// depth and per-agent deal counts.
func (s *Service) Downline(ctx context.Context, agencyID, agentID uint) ([]apimodels.DownlineEntry, error) {
	var entries []apimodels.DownlineEntry

	type frontier struct {
		id    uint
		depth int
	}
	queue := []frontier{{id: agentID, depth: 0}}
	visited := map[uint]bool{agentID: true}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var children []models.User
		if err := s.db.WithContext(ctx).
			Where("agency_id = ? AND upline_id = ? AND role = ?", agencyID, current.id, models.RoleAgent).
			Order("id").
			Find(&children).Error; err != nil {
			return nil, fmt.Errorf("failed to load downline of agent %d: %w", current.id, err)
		}

		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true

			var dealCount int64
			if err := s.db.WithContext(ctx).
				Model(&models.Deal{}).
				Where("agent_id = ?", child.ID).
				Count(&dealCount).Error; err != nil {
				return nil, fmt.Errorf("failed to count deals for agent %d: %w", child.ID, err)
			}

			var uplineID uint
			if child.UplineID != nil {
				uplineID = *child.UplineID
			}

			entries = append(entries, apimodels.DownlineEntry{
				ID:        child.ID,
				Name:      child.FullName(),
				Email:     child.Email,
				Position:  child.Position,
				Status:    child.Status,
				Depth:     current.depth + 1,
				UplineID:  uplineID,
				DealCount: dealCount,
			})

			queue = append(queue, frontier{id: child.ID, depth: current.depth + 1})
		}
	}

	return entries, nil
}
