package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"onevizn-platform/internal/roles"
)

// refreshTimeout bounds the background refresh triggered by the clock; user
// initiated calls carry their own context.
const refreshTimeout = 15 * time.Second

// Config wires a Store. API and Storage are required; everything else has a
// usable default.
type Config struct {
	API        API
	Storage    Storage
	Authorizer Authorizer
	Navigator  Navigator

	// RefreshLead is how long before expiry the scheduled refresh fires.
	// Defaults to DefaultRefreshLead.
	RefreshLead time.Duration

	// Now is injectable for deterministic tests.
	Now func() time.Time

	Logger *slog.Logger
}

// Store is the single source of truth for client-side authentication state:
// token, decoded claims, derived roles, user profile, authenticated flag.
// State is persisted to Storage on every transition so a restart reproduces
// the session, and the refresh clock is rearmed on every token change.
//
// Transitions that cross a network await are guarded by a monotonic epoch:
// every state-replacing or state-clearing transition bumps it, and a
// continuation that comes back to a different epoch drops its result. A
// logout landing mid-login therefore wins.
type Store struct {
	api   API
	nav   Navigator
	log   *slog.Logger
	clock *clock

	mu      sync.Mutex
	storage Storage
	epoch   uint64
	token   string
	claims  Claims
	roles   []string
	user    *Profile
}

// Snapshot is the externally visible session state.
type Snapshot struct {
	Token           string
	Claims          Claims
	Roles           []string
	User            *Profile
	IsAuthenticated bool
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.API == nil {
		return nil, errors.New("session: API is required")
	}
	if cfg.Storage == nil {
		return nil, errors.New("session: Storage is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Store{
		api:     cfg.API,
		nav:     cfg.Navigator,
		log:     log,
		storage: cfg.Storage,
	}
	s.clock = newClock(cfg.RefreshLead, cfg.Now, s.refreshTick)

	if cfg.Authorizer != nil {
		cfg.Authorizer.SetTokenSource(s.Token)
		cfg.Authorizer.SetUnauthorizedHandler(func() {
			s.Logout(context.Background())
		})
	}
	return s, nil
}

// Initialize restores the session from durable storage. It never performs a
// network call and never fails: a corrupt profile record yields a nil user,
// a malformed token yields no roles, and storage read errors leave the store
// signed out. The refresh clock is deliberately not armed here; the first
// authenticated request either succeeds or its 401 forces logout.
func (s *Store) Initialize(ctx context.Context) {
	token, ok, err := s.storage.Get(ctx, tokenKey)
	if err != nil {
		s.log.Warn("session: reading persisted token", "err", err)
		return
	}
	if !ok || token == "" {
		return
	}

	var user *Profile
	if raw, found, err := s.storage.Get(ctx, profileKey); err != nil {
		s.log.Warn("session: reading persisted profile", "err", err)
	} else if found {
		var p Profile
		if json.Unmarshal([]byte(raw), &p) == nil {
			user = &p
		}
	}

	claims := DecodeClaims(token)
	user = mergeProfile(user, claims)

	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.roles = append([]string(nil), claims.Roles...)
	s.user = user
	s.mu.Unlock()
}

// Login authenticates against the API and establishes a session. On failure
// the error is returned for the UI to render and no session state changes.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return err
	}

	s.establish(ctx, epoch, res.Token, res.User, RouteHome)
	return nil
}

// Register creates the account then logs in with the same credentials.
func (s *Store) Register(ctx context.Context, reg Registration) error {
	if err := s.api.Register(ctx, reg); err != nil {
		return err
	}
	return s.Login(ctx, Credentials{UserName: reg.UserName, Password: reg.Password})
}

// Refresh obtains a new token using the existing transport credential. The
// profile is re-merged from the new claims without discarding previously
// fetched fields. On failure the session is torn down via Logout and the
// error is returned to any direct caller.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	epoch := s.epoch
	prevUser := s.user
	s.mu.Unlock()

	token, err := s.api.Refresh(ctx)
	if err != nil {
		s.Logout(ctx)
		return err
	}

	claims := DecodeClaims(token)
	merged := mergeProfile(prevUser, claims)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.epoch++
	s.persistLocked(ctx, token, merged)
	s.token = token
	s.claims = claims
	s.roles = append([]string(nil), claims.Roles...)
	s.user = merged
	s.clock.Schedule(claims.Exp)
	s.mu.Unlock()

	return nil
}

// Logout tears the session down. The network call is best effort and only
// attempted when a token is held; regardless of its outcome the timer is
// cancelled, durable storage is cleared, in-memory state is zeroed and the
// UI is sent to the login route. Safe to call when already signed out.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	hadToken := s.token != ""
	s.mu.Unlock()

	if hadToken {
		if err := s.api.Logout(ctx); err != nil {
			s.log.Warn("session: logout request failed", "err", err)
		}
	}

	s.mu.Lock()
	s.epoch++
	s.clock.Cancel()
	if err := s.storage.Delete(ctx, tokenKey, profileKey); err != nil {
		s.log.Warn("session: clearing persisted session", "err", err)
	}
	s.token = ""
	s.claims = Claims{}
	s.roles = nil
	s.user = nil
	s.mu.Unlock()

	s.navigate(RouteLogin)
}

// UpdateProfile replaces the in-memory user profile. Persisting the change
// server-side is the caller's responsibility through the profile API.
func (s *Store) UpdateProfile(user *Profile) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

/* ===================== ACCESSORS ===================== */

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Token:           s.token,
		Claims:          s.claims,
		Roles:           append([]string(nil), s.roles...),
		User:            s.user,
		IsAuthenticated: s.token != "",
	}
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Store) Roles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roles...)
}

func (s *Store) User() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// HasMinRole reports whether the session's most privileged role meets the
// given minimum. Pure read; safe to call on every render.
func (s *Store) HasMinRole(minRole string) bool {
	return roles.HasMinRole(s.Roles(), minRole)
}

// RefreshPending reports whether a pre-expiry refresh timer is armed.
func (s *Store) RefreshPending() bool {
	return s.clock.Pending()
}

/* ===================== INTERNAL ===================== */

// establish commits a new token and profile. Fixed order: persist storage,
// replace session state, rearm the clock — all inside one critical section,
// so a concurrent logout either observes the committed state (and cancels the
// timer) or wins the epoch check and the commit is dropped whole. Returns
// false when a competing transition bumped the epoch while the network call
// was in flight.
func (s *Store) establish(ctx context.Context, epoch uint64, token string, user *Profile, route string) bool {
	claims := DecodeClaims(token)
	merged := mergeProfile(user, claims)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.epoch++
	s.persistLocked(ctx, token, merged)
	s.token = token
	s.claims = claims
	s.roles = append([]string(nil), claims.Roles...)
	s.user = merged
	s.clock.Schedule(claims.Exp)
	s.mu.Unlock()

	s.navigate(route)
	return true
}

// persistLocked writes the token entry then the profile entry. Storage
// failures are logged, not propagated; the in-memory session stays the
// source of truth for the current process.
func (s *Store) persistLocked(ctx context.Context, token string, user *Profile) {
	if err := s.storage.Set(ctx, tokenKey, token); err != nil {
		s.log.Warn("session: persisting token", "err", err)
	}
	if user == nil {
		if err := s.storage.Delete(ctx, profileKey); err != nil {
			s.log.Warn("session: clearing persisted profile", "err", err)
		}
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		s.log.Warn("session: encoding profile", "err", err)
		return
	}
	if err := s.storage.Set(ctx, profileKey, string(raw)); err != nil {
		s.log.Warn("session: persisting profile", "err", err)
	}
}

// refreshTick runs when the clock fires. Failures are fully absorbed here:
// Refresh already tears the session down, and background errors must never
// surface into unrelated code paths.
func (s *Store) refreshTick() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("session: scheduled refresh failed", "err", err)
	}
}

func (s *Store) navigate(route string) {
	if s.nav != nil {
		s.nav.NavigateTo(route)
	}
}

// mergeProfile overlays claim identity fields onto a fetched profile.
// Claim values win only when present; nothing is discarded.
func mergeProfile(user *Profile, claims Claims) *Profile {
	if user == nil {
		if claims.UserName == "" && claims.Email == "" {
			return nil
		}
		return &Profile{UserName: claims.UserName, Email: claims.Email}
	}
	out := *user
	if claims.UserName != "" {
		out.UserName = claims.UserName
	}
	if claims.Email != "" {
		out.Email = claims.Email
	}
	return &out
}
