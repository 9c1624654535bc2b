package users

import "time"

// User is a helpdesk account. Disabled accounts resolve to no permissions.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	Username string
	Email    string
	Password string
}

// UpdateInput carries editable account fields. Nil fields are left unchanged.
type UpdateInput struct {
	Email    *string
	IsActive *bool
}
