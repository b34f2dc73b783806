package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

/* ===================== FAKES ===================== */

type fakeAPI struct {
	mu            sync.Mutex
	loginFn       func(ctx context.Context, creds Credentials) (LoginResult, error)
	registerFn    func(ctx context.Context, reg Registration) error
	refreshFn     func(ctx context.Context) (string, error)
	logoutFn      func(ctx context.Context) error
	loginCalls    int
	registerCalls int
	refreshCalls  int
	logoutCalls   int
}

func (f *fakeAPI) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	f.mu.Lock()
	f.loginCalls++
	fn := f.loginFn
	f.mu.Unlock()
	if fn == nil {
		return LoginResult{}, errors.New("login not stubbed")
	}
	return fn(ctx, creds)
}

func (f *fakeAPI) Register(ctx context.Context, reg Registration) error {
	f.mu.Lock()
	f.registerCalls++
	fn := f.registerFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, reg)
}

func (f *fakeAPI) Refresh(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.refreshFn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("refresh not stubbed")
	}
	return fn(ctx)
}

func (f *fakeAPI) Logout(ctx context.Context) error {
	f.mu.Lock()
	f.logoutCalls++
	fn := f.logoutFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (f *fakeAPI) calls() (login, register, refresh, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.registerCalls, f.refreshCalls, f.logoutCalls
}

type fakeAuthorizer struct {
	tokenSource  func() string
	unauthorized func()
}

func (a *fakeAuthorizer) SetTokenSource(fn func() string)  { a.tokenSource = fn }
func (a *fakeAuthorizer) SetUnauthorizedHandler(fn func()) { a.unauthorized = fn }

type recordingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *recordingNavigator) NavigateTo(route string) {
	n.mu.Lock()
	n.routes = append(n.routes, route)
	n.mu.Unlock()
}

func (n *recordingNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}

func loginStub(tok string, user *Profile) func(context.Context, Credentials) (LoginResult, error) {
	return func(context.Context, Credentials) (LoginResult, error) {
		return LoginResult{Token: tok, User: user}, nil
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.clock.Cancel() })
	return s
}

/* ===================== SCENARIOS ===================== */

func TestLogin_EstablishesSessionAndSchedulesRefresh(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice",
		"roles":     []string{"owner"},
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	api := &fakeAPI{loginFn: loginStub(tok, &Profile{UserName: "alice", FirstName: "Alice"})}
	nav := &recordingNavigator{}
	s := newTestStore(t, Config{API: api, Navigator: nav})

	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	snap := s.Snapshot()
	if !snap.IsAuthenticated || snap.Token != tok {
		t.Fatalf("expected authenticated session, got %+v", snap)
	}
	if len(snap.Roles) != 1 || snap.Roles[0] != "owner" {
		t.Fatalf("expected derived roles [owner], got %v", snap.Roles)
	}
	if snap.User == nil || snap.User.UserName != "alice" || snap.User.FirstName != "Alice" {
		t.Fatalf("expected merged profile, got %+v", snap.User)
	}
	if !s.RefreshPending() {
		t.Fatalf("expected a refresh timer roughly lead before expiry")
	}
	if nav.last() != RouteHome {
		t.Fatalf("expected navigation to %q, got %q", RouteHome, nav.last())
	}
}

func TestLogin_FailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	wantErr := errors.New("invalid credentials")
	api := &fakeAPI{loginFn: func(context.Context, Credentials) (LoginResult, error) {
		return LoginResult{}, wantErr
	}}
	storage := NewMemoryStorage()
	s := newTestStore(t, Config{API: api, Storage: storage})

	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "bad"}); !errors.Is(err, wantErr) {
		t.Fatalf("expected the credential error back, got %v", err)
	}
	if s.IsAuthenticated() || s.RefreshPending() {
		t.Fatalf("failed login must not mutate session state")
	}
	if _, ok, _ := storage.Get(ctx, tokenKey); ok {
		t.Fatalf("failed login must not persist anything")
	}
}

func TestLogin_InsideRefreshWindowTriggersImmediateRefresh(t *testing.T) {
	ctx := context.Background()
	shortTok := makeToken(t, map[string]any{
		"user_name": "alice",
		"roles":     []string{"owner"},
		"exp":       time.Now().Add(60 * time.Second).Unix(),
	})
	longTok := makeToken(t, map[string]any{
		"user_name": "alice",
		"roles":     []string{"owner"},
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	api := &fakeAPI{
		loginFn:   loginStub(shortTok, nil),
		refreshFn: func(context.Context) (string, error) { return longTok, nil },
	}
	s := newTestStore(t, Config{API: api})

	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Inside the 5-minute window no timer is armed; the refresh runs at once
	// and the new token arms a real timer.
	waitFor(t, 2*time.Second, func() bool {
		_, _, refresh, _ := api.calls()
		return refresh >= 1
	})
	waitFor(t, 2*time.Second, func() bool { return s.Token() == longTok })
	waitFor(t, 2*time.Second, s.RefreshPending)
}

func TestRegister_LogsInWithSameCredentials(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "bob",
		"roles":     []string{"customer"},
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	var gotCreds Credentials
	api := &fakeAPI{
		loginFn: func(_ context.Context, creds Credentials) (LoginResult, error) {
			gotCreds = creds
			return LoginResult{Token: tok}, nil
		},
	}
	s := newTestStore(t, Config{API: api})

	err := s.Register(ctx, Registration{UserName: "bob", Password: "pw", Email: "b@x.io"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if gotCreds.UserName != "bob" || gotCreds.Password != "pw" {
		t.Fatalf("expected login with registration credentials, got %+v", gotCreds)
	}
	if !s.IsAuthenticated() {
		t.Fatalf("expected authenticated session after register")
	}
}

func TestRefresh_ReplacesTokenAndKeepsProfile(t *testing.T) {
	ctx := context.Background()
	tok1 := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok2 := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner", "manager"},
		"exp": time.Now().Add(2 * time.Hour).Unix(),
	})
	api := &fakeAPI{
		loginFn:   loginStub(tok1, &Profile{UserName: "alice", Phone: "555"}),
		refreshFn: func(context.Context) (string, error) { return tok2, nil },
	}
	s := newTestStore(t, Config{API: api})

	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	snap := s.Snapshot()
	if snap.Token != tok2 {
		t.Fatalf("expected replaced token")
	}
	if len(snap.Roles) != 2 {
		t.Fatalf("expected roles re-derived from new token, got %v", snap.Roles)
	}
	if snap.User == nil || snap.User.Phone != "555" {
		t.Fatalf("refresh must not discard previously fetched profile fields, got %+v", snap.User)
	}
	if !snap.IsAuthenticated {
		t.Fatalf("refresh must keep the session authenticated")
	}
}

func TestRefresh_FailureCascadesToLogout(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	wantErr := errors.New("refresh rejected")
	api := &fakeAPI{
		loginFn:   loginStub(tok, nil),
		refreshFn: func(context.Context) (string, error) { return "", wantErr },
	}
	storage := NewMemoryStorage()
	nav := &recordingNavigator{}
	s := newTestStore(t, Config{API: api, Storage: storage, Navigator: nav})

	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := s.Refresh(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("expected the refresh error back, got %v", err)
	}

	if s.IsAuthenticated() {
		t.Fatalf("refresh failure must clear the session")
	}
	if s.RefreshPending() {
		t.Fatalf("no timer may remain after the cascade")
	}
	if _, ok, _ := storage.Get(ctx, tokenKey); ok {
		t.Fatalf("persisted token must be cleared")
	}
	if _, ok, _ := storage.Get(ctx, profileKey); ok {
		t.Fatalf("persisted profile must be cleared")
	}
	if nav.last() != RouteLogin {
		t.Fatalf("expected navigation to login, got %q", nav.last())
	}
}

func TestScheduledRefreshFailure_LogsOutInBackground(t *testing.T) {
	ctx := context.Background()
	// Lead of 1s against a 2s expiry arms a timer that fires quickly.
	tok := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(2 * time.Second).Unix(),
	})
	api := &fakeAPI{
		loginFn:   loginStub(tok, nil),
		refreshFn: func(context.Context) (string, error) { return "", errors.New("boom") },
	}
	s := newTestStore(t, Config{API: api, RefreshLead: time.Second})

	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool { return !s.IsAuthenticated() })
	if s.RefreshPending() {
		t.Fatalf("no timer may remain after the background cascade")
	}
}

func TestLogout_Idempotent(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	s := newTestStore(t, Config{API: api})

	s.Logout(ctx)
	s.Logout(ctx)

	if _, _, _, logout := api.calls(); logout != 0 {
		t.Fatalf("logout without a token must not hit the network, got %d calls", logout)
	}
	if s.IsAuthenticated() || s.RefreshPending() {
		t.Fatalf("expected cleared state")
	}
}

func TestLogout_NetworkFailureStillClears(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	api := &fakeAPI{
		loginFn:  loginStub(tok, nil),
		logoutFn: func(context.Context) error { return errors.New("network down") },
	}
	storage := NewMemoryStorage()
	s := newTestStore(t, Config{API: api, Storage: storage})

	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.Logout(ctx)

	if s.IsAuthenticated() || s.RefreshPending() {
		t.Fatalf("logout must clear state regardless of network outcome")
	}
	if _, ok, _ := storage.Get(ctx, tokenKey); ok {
		t.Fatalf("persisted token must be cleared")
	}
}

func TestInitialize_RoundTripsPersistedSession(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice",
		"email":     "alice@example.com",
		"roles":     []string{"owner"},
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	storage := NewMemoryStorage()
	api := &fakeAPI{loginFn: loginStub(tok, &Profile{UserName: "alice", LastName: "Smith"})}
	s1 := newTestStore(t, Config{API: api, Storage: storage})
	if err := s1.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Simulate a reload: a fresh store over the same durable storage.
	s2 := newTestStore(t, Config{API: &fakeAPI{}, Storage: storage})
	s2.Initialize(ctx)

	snap := s2.Snapshot()
	if !snap.IsAuthenticated || snap.Token != tok {
		t.Fatalf("expected restored session, got %+v", snap)
	}
	if snap.User == nil || snap.User.UserName != "alice" || snap.User.Email != "alice@example.com" {
		t.Fatalf("expected restored identity, got %+v", snap.User)
	}
	if snap.User.LastName != "Smith" {
		t.Fatalf("expected restored profile fields, got %+v", snap.User)
	}
	if len(snap.Roles) != 1 || snap.Roles[0] != "owner" {
		t.Fatalf("expected roles re-derived from the persisted token, got %v", snap.Roles)
	}
}

func TestInitialize_CorruptRecordsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	_ = storage.Set(ctx, tokenKey, "not-a-jwt")
	_ = storage.Set(ctx, profileKey, "{corrupt")

	s := newTestStore(t, Config{API: &fakeAPI{}, Storage: storage})
	s.Initialize(ctx)

	snap := s.Snapshot()
	if !snap.IsAuthenticated {
		t.Fatalf("a malformed token is not fatal; the 401 path cleans it up later")
	}
	if len(snap.Roles) != 0 {
		t.Fatalf("malformed token must derive no roles, got %v", snap.Roles)
	}
	if snap.User != nil {
		t.Fatalf("corrupt profile record must yield nil user, got %+v", snap.User)
	}
}

func TestLogoutDuringLogin_LastClearWins(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{
		loginFn: func(context.Context, Credentials) (LoginResult, error) {
			close(started)
			<-release
			return LoginResult{Token: tok}, nil
		},
	}
	s := newTestStore(t, Config{API: api})

	done := make(chan error, 1)
	go func() { done <- s.Login(ctx, Credentials{UserName: "alice", Password: "x"}) }()

	// Logout lands while the login response is still in flight: wait until the
	// request is provably underway so the login's epoch capture happened first.
	<-started
	s.Logout(ctx)
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("login: %v", err)
	}

	if s.IsAuthenticated() {
		t.Fatalf("the logout transition must win over the stale login continuation")
	}
	if s.RefreshPending() {
		t.Fatalf("no timer may survive the logout")
	}
}

func TestConcurrentLogout_NeverLeavesTimerOnSignedOutStore(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	api := &fakeAPI{loginFn: loginStub(tok, nil)}
	s := newTestStore(t, Config{API: api})

	// Whichever way each race resolves, a signed-out store must never be left
	// with an armed refresh timer: the commit and its schedule are one
	// transition, and logout cancels inside the same critical section.
	for i := 0; i < 50; i++ {
		done := make(chan struct{})
		go func() {
			_ = s.Login(ctx, Credentials{UserName: "alice", Password: "x"})
			close(done)
		}()
		s.Logout(ctx)
		<-done

		if !s.IsAuthenticated() && s.RefreshPending() {
			t.Fatalf("iteration %d: signed-out store holds an armed timer", i)
		}
		s.Logout(ctx)
	}
}

func TestUnauthorizedSignal_ForcesLogout(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	api := &fakeAPI{loginFn: loginStub(tok, nil)}
	authz := &fakeAuthorizer{}
	s := newTestStore(t, Config{API: api, Authorizer: authz})

	if authz.tokenSource == nil || authz.unauthorized == nil {
		t.Fatalf("store must register itself on the authorizer at construction")
	}
	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if authz.tokenSource() != tok {
		t.Fatalf("token source must expose the live token")
	}

	authz.unauthorized()

	if s.IsAuthenticated() || s.RefreshPending() {
		t.Fatalf("a 401 signal must force a full logout")
	}
	if authz.tokenSource() != "" {
		t.Fatalf("token source must read empty after logout")
	}
}

func TestUpdateProfile_ReplacesUserOnly(t *testing.T) {
	ctx := context.Background()
	tok := makeToken(t, map[string]any{
		"user_name": "alice", "roles": []string{"owner"},
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	api := &fakeAPI{loginFn: loginStub(tok, nil)}
	s := newTestStore(t, Config{API: api})
	if err := s.Login(ctx, Credentials{UserName: "alice", Password: "x"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	s.UpdateProfile(&Profile{UserName: "alice", FirstName: "Alicia"})

	if u := s.User(); u == nil || u.FirstName != "Alicia" {
		t.Fatalf("expected replaced profile, got %+v", u)
	}
	if s.Token() != tok {
		t.Fatalf("profile update must not touch the token")
	}
}
