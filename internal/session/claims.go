package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Claims is the decoded payload of a bearer token.
// Only the fields this layer cares about are mapped; everything else in the
// payload is ignored.
type Claims struct {
	UserName string
	Email    string
	Roles    []string
	Exp      int64
}

// ExpiresAt converts the exp claim to a time. Zero exp yields the zero time.
func (c Claims) ExpiresAt() time.Time {
	if c.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(c.Exp, 0)
}

// DecodeClaims extracts the claims from a JWT-shaped token without verifying
// the signature. Verification belongs to the server; this side only needs the
// payload to derive roles and schedule the refresh.
//
// DecodeClaims never fails: a token with the wrong segment count, invalid
// base64 or an unparseable payload yields zero Claims. A malformed roles
// field grants no roles but does not discard the rest of the payload.
func DecodeClaims(token string) Claims {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return Claims{}
	}

	var raw struct {
		UserName string          `json:"user_name"`
		Email    string          `json:"email"`
		Roles    json.RawMessage `json:"roles"`
		Exp      float64         `json:"exp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Claims{}
	}

	c := Claims{
		UserName: raw.UserName,
		Email:    raw.Email,
		Exp:      int64(raw.Exp),
	}
	if len(raw.Roles) > 0 {
		// Malformed roles stay empty; unknown roles are filtered later by the
		// role gate, not here.
		_ = json.Unmarshal(raw.Roles, &c.Roles)
	}
	return c
}
