package models

// CommissionEntry is one level of a deal's commission split. Entries are
// rendered top-of-hierarchy first; Level counts the distance from the
// writing agent, so it decreases by one per entry down to 0.
type CommissionEntry struct {
	AgentID      uint   `json:"agent_id"`
	AgentName    string `json:"agent_name"`
	Position     string `json:"position"`
	Rate         string `json:"rate"`
	Level        int    `json:"level"`
	EarnedAmount string `json:"earned_amount"`
}

// CommissionChainResponse is the full split for one deal
type CommissionChainResponse struct {
	DealID         uint              `json:"deal_id"`
	WritingAgentID uint              `json:"writing_agent_id"`
	Entries        []CommissionEntry `json:"entries"`
}

// CheckPositionsResponse reports whether the agent and every upline have
// a commission position assigned
type CheckPositionsResponse struct {
	OK      bool     `json:"ok"`
	Missing []string `json:"missing,omitempty"` // agent names without a position
}

// DownlineEntry is one agent in a downline listing
type DownlineEntry struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Position  string `json:"position,omitempty"`
	Status    string `json:"status"`
	Depth     int    `json:"depth"`
	UplineID  uint   `json:"upline_id,omitempty"`
	DealCount int64  `json:"deal_count"`
}
