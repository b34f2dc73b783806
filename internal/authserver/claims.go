package authserver

import "github.com/golang-jwt/jwt/v5"

// Claims is the only supported JWT claims shape for this service. The
// user_name/email/roles/exp fields are the contract the admin shell decodes
// client-side; renaming any of them breaks deployed sessions.
type Claims struct {
	jwt.RegisteredClaims

	UserName string   `json:"user_name"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles"`
}
