package deals

import (
	"sort"
	"strings"
)

// ValidationErrors maps field names to human-readable problems. The whole
// set is caught before any write and blocks the submission.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// BusinessRuleError is terminal for the current attempt: the payload was
// well formed but an agency rule rejects it. Remediation, when set, tells
// the agent how to unblock themselves.
type BusinessRuleError struct {
	Code        string
	Message     string
	Remediation string
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

// ErrPostingDisabled rejects submissions while the agency has posting
// turned off
var ErrPostingDisabled = &BusinessRuleError{
	Code:    "posting_disabled",
	Message: "Deal posting is currently disabled for your agency.",
}

// ErrPositionMissing rejects submissions from agents whose upline chain
// has unassigned commission positions
var ErrPositionMissing = &BusinessRuleError{
	Code:        "position_missing",
	Message:     "You or an agent in your upline has no commission position assigned.",
	Remediation: "Ask your agency admin to assign positions on the profile page, then resubmit.",
}
