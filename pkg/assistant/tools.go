package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/nvalencia/agentbook/pkg/database/models"
)

const (
	// Every listing tool caps its result set; the model asks again with an
	// offset when it needs more.
	maxToolRows = 20
	// Long free-text notes would crowd the context window.
	maxNoteLen = 280
)

// toolDefinitions describes the queries the model may run. Every tool is
// executed scoped to the caller's agency; the model never picks the tenant.
func toolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "search_deals",
				Description: "Search the agency's deals. Returns at most 20 rows; pass offset to page.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"client_name": {"type": "string", "description": "substring match on client first or last name"},
						"status": {"type": "string", "enum": ["submitted", "active", "lapsed", "cancelled"]},
						"agent_id": {"type": "integer"},
						"carrier_id": {"type": "integer"},
						"offset": {"type": "integer"}
					}
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "deal_commission_chain",
				Description: "Return the commission chain for one deal, root agent first.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"deal_id": {"type": "integer"}
					},
					"required": ["deal_id"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "agent_downline",
				Description: "List the agents under a given agent, with depth and deal counts.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"agent_id": {"type": "integer"}
					},
					"required": ["agent_id"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "book_summary",
				Description: "Aggregate the agency's book: deal counts and premium totals by status.",
				Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
			},
		},
	}
}

type searchDealsArgs struct {
	ClientName string `json:"client_name"`
	Status     string `json:"status"`
	AgentID    uint   `json:"agent_id"`
	CarrierID  uint   `json:"carrier_id"`
	Offset     int    `json:"offset"`
}

type dealChainArgs struct {
	DealID uint `json:"deal_id"`
}

type downlineArgs struct {
	AgentID uint `json:"agent_id"`
}

// executeTool dispatches one model-requested tool call. Failures come back
// as an error payload for the model rather than aborting the conversation.
func (s *Service) executeTool(ctx context.Context, agencyID uint, name, arguments string) string {
	if s.metrics != nil {
		s.metrics.RecordAssistantTool(name)
	}

	var result any
	var err error

	switch name {
	case "search_deals":
		var args searchDealsArgs
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			result, err = s.searchDeals(ctx, agencyID, args)
		}
	case "deal_commission_chain":
		var args dealChainArgs
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			result, err = s.hierarchy.Chain(ctx, agencyID, args.DealID)
		}
	case "agent_downline":
		var args downlineArgs
		if err = json.Unmarshal([]byte(arguments), &args); err == nil {
			result, err = s.agentDownline(ctx, agencyID, args.AgentID)
		}
	case "book_summary":
		result, err = s.bookSummary(ctx, agencyID)
	default:
		err = fmt.Errorf("unknown tool %q", name)
	}

	if err != nil {
		s.log.Warn("assistant tool failed", "tool", name, "agency_id", agencyID, "error", err)
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(payload)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return `{"error": "failed to encode tool result"}`
	}
	return string(payload)
}

type dealRow struct {
	ID             uint   `json:"id"`
	ClientName     string `json:"client_name"`
	AgentID        uint   `json:"agent_id,omitempty"`
	CarrierID      uint   `json:"carrier_id"`
	PolicyNumber   string `json:"policy_number,omitempty"`
	MonthlyPremium string `json:"monthly_premium"`
	AnnualPremium  string `json:"annual_premium"`
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func (s *Service) searchDeals(ctx context.Context, agencyID uint, args searchDealsArgs) (any, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("agency_id = ?", agencyID)

	if args.ClientName != "" {
		needle := "%" + args.ClientName + "%"
		query = query.Where(
			"LOWER(client_first_name) LIKE LOWER(?) OR LOWER(client_last_name) LIKE LOWER(?)",
			needle, needle,
		)
	}
	if args.Status != "" {
		query = query.Where("status = ?", args.Status)
	}
	if args.AgentID != 0 {
		query = query.Where("agent_id = ?", args.AgentID)
	}
	if args.CarrierID != 0 {
		query = query.Where("carrier_id = ?", args.CarrierID)
	}

	var deals []models.Deal
	err := query.
		Order("created_at DESC, id DESC").
		Offset(args.Offset).
		Limit(maxToolRows).
		Find(&deals).Error
	if err != nil {
		return nil, err
	}

	rows := make([]dealRow, 0, len(deals))
	for _, d := range deals {
		row := dealRow{
			ID:             d.ID,
			ClientName:     d.ClientFirstName + " " + d.ClientLastName,
			CarrierID:      d.CarrierID,
			MonthlyPremium: d.MonthlyPremium.StringFixed(2),
			AnnualPremium:  d.AnnualPremium.StringFixed(2),
			Status:         d.Status,
			Notes:          truncateNote(d.Notes),
		}
		if d.AgentID != nil {
			row.AgentID = *d.AgentID
		}
		if d.PolicyNumber != nil {
			row.PolicyNumber = *d.PolicyNumber
		}
		if d.CreatedAt != nil {
			row.CreatedAt = d.CreatedAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	return map[string]any{"deals": rows, "count": len(rows), "offset": args.Offset}, nil
}

func (s *Service) agentDownline(ctx context.Context, agencyID, agentID uint) (any, error) {
	entries, err := s.hierarchy.Downline(ctx, agencyID, agentID)
	if err != nil {
		return nil, err
	}
	if len(entries) > maxToolRows {
		entries = entries[:maxToolRows]
	}
	return map[string]any{"downline": entries, "count": len(entries)}, nil
}

type statusSummary struct {
	Status        string `json:"status"`
	Deals         int64  `json:"deals"`
	AnnualPremium string `json:"annual_premium"`
}

func (s *Service) bookSummary(ctx context.Context, agencyID uint) (any, error) {
	var rows []struct {
		Status string
		Count  int64
		Total  decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Model(&models.Deal{}).
		Select("status, COUNT(*) as count, COALESCE(SUM(annual_premium), 0) as total").
		Where("agency_id = ?", agencyID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]statusSummary, 0, len(rows))
	totalDeals := int64(0)
	totalPremium := decimal.Zero
	for _, r := range rows {
		summaries = append(summaries, statusSummary{
			Status:        r.Status,
			Deals:         r.Count,
			AnnualPremium: r.Total.StringFixed(2),
		})
		totalDeals += r.Count
		totalPremium = totalPremium.Add(r.Total)
	}

	return map[string]any{
		"by_status":            summaries,
		"total_deals":          totalDeals,
		"total_annual_premium": totalPremium.StringFixed(2),
	}, nil
}

// truncateNote caps a note at maxNoteLen runes, never splitting a
// multi-byte character.
func truncateNote(note string) string {
	runes := []rune(note)
	if len(runes) <= maxNoteLen {
		return note
	}
	return string(runes[:maxNoteLen]) + "..."
}
