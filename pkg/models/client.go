package models

// InviteClientRequest invites a client to the portal
type InviteClientRequest struct {
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	PhoneNumber string `json:"phone_number"`
}

// InviteClientResponse reports the invitation outcome
type InviteClientResponse struct {
	Success       bool   `json:"success"`
	UserID        uint   `json:"user_id,omitempty"`
	AlreadyExists bool   `json:"already_exists"`
	Status        string `json:"status"`
}

// SetupCompleteRequest finishes a client's portal onboarding
type SetupCompleteRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}
