package models

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse represents a successful authentication
type AuthResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user,omitempty"`
}

// UserInfo represents the authenticated user in responses
type UserInfo struct {
	ID        uint   `json:"id"`
	AgencyID  uint   `json:"agency_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	Position  string `json:"position,omitempty"`
}
