package dto

import "time"

// CreateUserRequest payload for provisioning a user.
type CreateUserRequest struct {
	Email                string `json:"email"`
	ContactNo            string `json:"contact_no"`
	IdentificationNumber string `json:"identification_number"`
	Password             string `json:"password"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	DateOfBirth          string `json:"date_of_birth"`
	Address              string `json:"address"`
	City                 string `json:"city"`
	State                string `json:"state"`
	Country              string `json:"country"`
	PostalCode           string `json:"postal_code"`
}

// UpdateUserRequest payload for partial updates. Omitted fields stay as they
// are; there is no way to clear a field through this request.
type UpdateUserRequest struct {
	Email       *string `json:"email"`
	ContactNo   *string `json:"contact_no"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	DateOfBirth *string `json:"date_of_birth"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	Country     *string `json:"country"`
	PostalCode  *string `json:"postal_code"`
}

// UpdateUserStatusRequest payload.
type UpdateUserStatusRequest struct {
	Status string `json:"status"`
}

// UserResponse is the flattened user projection returned by the API.
type UserResponse struct {
	ID                   string    `json:"id"`
	AuthID               string    `json:"auth_id"`
	Email                string    `json:"email"`
	ContactNo            string    `json:"contact_no"`
	IdentificationNumber string    `json:"identification_number"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	FirstName            string    `json:"first_name"`
	LastName             string    `json:"last_name"`
	DateOfBirth          string    `json:"date_of_birth"`
	Address              string    `json:"address"`
	City                 string    `json:"city"`
	State                string    `json:"state"`
	Country              string    `json:"country"`
	PostalCode           string    `json:"postal_code"`
}

// ResultResponse is the uniform provisioning envelope.
type ResultResponse struct {
	Success bool          `json:"success"`
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Data    *UserResponse `json:"data,omitempty"`
}
