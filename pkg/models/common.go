package models

// ErrorResponse is the standard error envelope for every endpoint
type ErrorResponse struct {
	Error       string            `json:"error"`
	Message     string            `json:"message,omitempty"`
	Remediation string            `json:"remediation,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// MessageResponse is a simple success envelope
type MessageResponse struct {
	Message string `json:"message"`
}

// OptionResponse is a reference-data entry used to populate form selects
type OptionResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}
