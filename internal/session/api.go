package session

import "context"

// Credentials is the login request body.
type Credentials struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

// Registration is the register request body. Registration is followed by a
// login with the same user_name/password.
type Registration struct {
	UserName  string `json:"user_name"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Profile is the display profile for the signed-in user, merged from token
// claims and the server-provided user object. Claims values win only when
// present.
type Profile struct {
	UserName  string `json:"user_name"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LoginResult is the successful login response.
type LoginResult struct {
	Token string   `json:"token"`
	User  *Profile `json:"user"`
}

// API is the auth endpoint surface the store drives. Refresh and Logout carry
// no body; the transport attaches the current bearer token itself.
type API interface {
	Login(ctx context.Context, creds Credentials) (LoginResult, error)
	Register(ctx context.Context, reg Registration) error
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

// Authorizer is the hook the store registers itself on so the outbound
// transport can attach the latest token, and so a 401 anywhere in the app
// forces a logout. Both setters are re-invoked at store construction only;
// the token source closes over live store state.
type Authorizer interface {
	SetTokenSource(fn func() string)
	SetUnauthorizedHandler(fn func())
}

// Navigator receives route-change signals (post-login landing, post-logout
// login screen). The UI shell implements it; a nil Navigator is valid.
type Navigator interface {
	NavigateTo(route string)
}

// Routes signalled through the Navigator.
const (
	RouteLogin = "/login"
	RouteHome  = "/"
)
