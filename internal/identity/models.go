package identity

import "time"

// User is the account record behind a login.
// Invariant: Roles holds role names from the fixed hierarchy; anything else
// is carried but grants nothing at the gate.
type User struct {
	ID        string   `json:"id"`
	UserName  string   `json:"user_name"`
	Email     string   `json:"email,omitempty"`
	FirstName string   `json:"first_name,omitempty"`
	LastName  string   `json:"last_name,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Roles     []string `json:"roles"`

	// PasswordHash is a bcrypt hash. Never serialized.
	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
