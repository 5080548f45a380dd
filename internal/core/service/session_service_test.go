package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubSubscription struct {
	mu           sync.Mutex
	unsubscribed bool
}

func (s *stubSubscription) Unsubscribe() {
	s.mu.Lock()
	s.unsubscribed = true
	s.mu.Unlock()
}

type stubAuthClient struct {
	mu sync.Mutex

	signInRes *ports.SignInResult
	signInErr error

	signUpRes   *ports.SignUpResult
	signUpErr   error
	signUpCalls []ports.SignUpInput

	signOutErr   error
	signOutCalls int

	// sessions is consumed one entry per GetSession call; the last entry repeats.
	sessions      []*domain.Session
	getSessionErr error
	getCalls      int

	listener ports.AuthStateListener
	sub      *stubSubscription
}

func (c *stubAuthClient) SignInWithPassword(_ context.Context, _, _ string) (*ports.SignInResult, error) {
	return c.signInRes, c.signInErr
}

func (c *stubAuthClient) SignUp(_ context.Context, in ports.SignUpInput) (*ports.SignUpResult, error) {
	c.mu.Lock()
	c.signUpCalls = append(c.signUpCalls, in)
	c.mu.Unlock()
	return c.signUpRes, c.signUpErr
}

func (c *stubAuthClient) SignOut(_ context.Context) error {
	c.mu.Lock()
	c.signOutCalls++
	c.mu.Unlock()
	return c.signOutErr
}

func (c *stubAuthClient) GetSession(_ context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if c.getSessionErr != nil {
		return nil, c.getSessionErr
	}
	if len(c.sessions) == 0 {
		return nil, nil
	}
	s := c.sessions[0]
	if len(c.sessions) > 1 {
		c.sessions = c.sessions[1:]
	}
	return s, nil
}

func (c *stubAuthClient) OnAuthStateChange(l ports.AuthStateListener) ports.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
	c.sub = &stubSubscription{}
	return c.sub
}

func (c *stubAuthClient) emit(change domain.AuthChange) {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	l(change)
}

func (c *stubAuthClient) getSessionCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getCalls
}

type stubRoleRepo struct {
	roles map[string]string
	err   error
	gate  chan struct{} // when set, FindRole blocks until it is closed
}

func (r *stubRoleRepo) FindRole(_ context.Context, userID string) (string, error) {
	if r.gate != nil {
		<-r.gate
	}
	if r.err != nil {
		return "", r.err
	}
	role, ok := r.roles[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return role, nil
}

type stubProfileRepo struct {
	profiles map[string]*domain.SelfProfile
	err      error

	rows     []ports.RequesterProfileRow
	rowsErr  error
	rpcCalls []string
}

func (r *stubProfileRepo) FindSelfProfile(_ context.Context, userID string) (*domain.SelfProfile, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *stubProfileRepo) ProfileForRequester(_ context.Context, target string) ([]ports.RequesterProfileRow, error) {
	r.rpcCalls = append(r.rpcCalls, target)
	return r.rows, r.rowsErr
}

type recordingTheme struct {
	mu      sync.Mutex
	applied []domain.Theme
}

func (t *recordingTheme) Apply(theme domain.Theme) {
	t.mu.Lock()
	t.applied = append(t.applied, theme)
	t.mu.Unlock()
}

func (t *recordingTheme) current() domain.Theme {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.applied) == 0 {
		return domain.ThemeNone
	}
	return t.applied[len(t.applied)-1]
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Notify(msg domain.Notification) {
	n.mu.Lock()
	n.sent = append(n.sent, msg)
	n.mu.Unlock()
}

type stubAudit struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
	err    error
	gate   chan struct{}
}

func (a *stubAudit) InsertEvent(_ context.Context, e *domain.AuditEvent) error {
	if a.gate != nil {
		<-a.gate
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, e)
	return nil
}

// fakeClock advances by the requested duration on every After call, so the
// poll loop runs without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fixture struct {
	auth     *stubAuthClient
	roles    *stubRoleRepo
	profiles *stubProfileRepo
	theme    *recordingTheme
	notifier *recordingNotifier
	audit    *stubAudit
	clock    *fakeClock
	svc      *SessionService
}

func newFixture() *fixture {
	f := &fixture{
		auth:     &stubAuthClient{},
		roles:    &stubRoleRepo{roles: map[string]string{"u-1": "farmer", "u-2": "buyer"}},
		profiles: &stubProfileRepo{profiles: map[string]*domain.SelfProfile{"u-1": {FullName: "Asha", Location: "Mbale"}}},
		theme:    &recordingTheme{},
		notifier: &recordingNotifier{},
		audit:    &stubAudit{},
		clock:    &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	f.svc = NewSessionService(
		f.auth,
		NewRoleResolver(f.roles, zerolog.Nop()),
		NewSelfProfileResolver(f.profiles, zerolog.Nop()),
		f.theme,
		f.notifier,
		zerolog.Nop(),
		WithClock(f.clock),
		WithAudit(f.audit),
	)
	return f
}

func sessionFor(userID string) *domain.Session {
	return &domain.Session{
		AccessToken: "token-" + userID,
		ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		User:        &domain.User{ID: userID},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitReady(t *testing.T, svc *SessionService) {
	t.Helper()
	select {
	case <-svc.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("session service never became ready")
	}
}

// ---------------------------------------------------------------------------
// Sign-in
// ---------------------------------------------------------------------------

func TestSessionService_SignIn_ImmediateSession(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{Session: sessionFor("u-1")}

	out, err := f.svc.SignIn(context.Background(), "asha@example.com", "secret")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if out.Session == nil || out.ConfirmationPending {
		t.Fatalf("expected established session, got %+v", out)
	}

	st := f.svc.State()
	if st.Role != domain.RoleFarmer {
		t.Errorf("expected role resolved before return, got %q", st.Role)
	}
	if st.Profile == nil || st.Profile.FullName != "Asha" {
		t.Errorf("expected profile resolved before return, got %+v", st.Profile)
	}
	if st.SessionState != domain.SessionEstablished {
		t.Errorf("expected established state, got %s", st.SessionState)
	}
	if f.theme.current() != "farmer-theme" {
		t.Errorf("expected farmer-theme, got %q", f.theme.current())
	}
}

func TestSessionService_SignIn_SessionWithoutRoleIsConfirmedAbsent(t *testing.T) {
	f := newFixture()
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)
	f.auth.signInRes = &ports.SignInResult{Session: sessionFor("u-9")}

	out, err := f.svc.SignIn(context.Background(), "x@example.com", "secret")
	if err != nil || out.Session == nil {
		t.Fatalf("unexpected result: %+v, %v", out, err)
	}
	st := f.svc.State()
	if st.Role != domain.RoleUnset {
		t.Errorf("expected unset role for user without role row, got %q", st.Role)
	}
	if st.Profile != nil {
		t.Errorf("expected nil profile, got %+v", st.Profile)
	}
	if got := domain.DashboardRoute(st.Loading, st.User, st.Role); got != domain.RouteAuth {
		t.Errorf("expected fallback route, got %s", got)
	}
}

func TestSessionService_SignIn_SessionUserFilledFromResult(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{
		Session: &domain.Session{AccessToken: "t"},
		User:    &domain.User{ID: "u-2"},
	}

	out, err := f.svc.SignIn(context.Background(), "b@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Session.UserID() != "u-2" {
		t.Fatalf("expected session user u-2, got %q", out.Session.UserID())
	}
	if f.svc.State().Role != domain.RoleBuyer {
		t.Errorf("expected buyer role, got %q", f.svc.State().Role)
	}
}

func TestSessionService_SignIn_CredentialErrorPropagatesUnchanged(t *testing.T) {
	f := newFixture()
	backendErr := errors.New("Invalid login credentials")
	f.auth.signInErr = backendErr

	out, err := f.svc.SignIn(context.Background(), "a@example.com", "bad")
	if err != backendErr {
		t.Fatalf("expected backend error unchanged, got: %v", err)
	}
	if out.Session != nil || out.ConfirmationPending {
		t.Errorf("expected empty outcome, got %+v", out)
	}
	st := f.svc.State()
	if st.Session != nil || st.User != nil || st.Role != domain.RoleUnset {
		t.Errorf("expected untouched state, got %+v", st)
	}
	if f.auth.getSessionCalls() != 0 {
		t.Errorf("expected no poll after error")
	}
}

func TestSessionService_SignIn_DeferredConfirmationPending(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{User: &domain.User{ID: "u-1"}}

	start := f.clock.Now()
	out, err := f.svc.SignIn(context.Background(), "a@example.com", "secret")
	if err != nil {
		t.Fatalf("deferred confirmation must not be an error, got: %v", err)
	}
	if out.Session != nil || !out.ConfirmationPending {
		t.Fatalf("expected confirmation pending, got %+v", out)
	}
	if calls := f.auth.getSessionCalls(); calls != 30 {
		t.Errorf("expected 30 polls within 6s at 200ms, got %d", calls)
	}
	if elapsed := f.clock.Now().Sub(start); elapsed > 6*time.Second {
		t.Errorf("poll exceeded its budget: %s", elapsed)
	}
	if st := f.svc.State(); st.SessionState != domain.SessionPending {
		t.Errorf("expected pending session state, got %s", st.SessionState)
	}
}

func TestSessionService_SignIn_SessionAppearsMidPoll(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{}
	f.auth.sessions = []*domain.Session{nil, nil, sessionFor("u-1")}

	out, err := f.svc.SignIn(context.Background(), "a@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Session.UserID() != "u-1" {
		t.Fatalf("expected polled session, got %+v", out)
	}
	if f.auth.getSessionCalls() != 3 {
		t.Errorf("expected poll to stop at the third query, got %d", f.auth.getSessionCalls())
	}
	st := f.svc.State()
	if st.Role != domain.RoleFarmer {
		t.Errorf("expected role settled on return, got %q", st.Role)
	}
	if st.Profile == nil || st.Profile.FullName != "Asha" {
		t.Errorf("expected profile settled on return, got %+v", st.Profile)
	}
}

func TestSessionService_SignIn_PolledSessionAfterInitializeKeepsProfile(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{}
	f.auth.sessions = []*domain.Session{nil, sessionFor("u-1")}
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	out, err := f.svc.SignIn(context.Background(), "a@example.com", "secret")
	if err != nil || out.Session == nil {
		t.Fatalf("unexpected result: %+v, %v", out, err)
	}
	f.auth.emit(domain.AuthChange{Kind: domain.AuthSignedIn, Session: sessionFor("u-1")})

	st := f.svc.State()
	if st.Role != domain.RoleFarmer || st.Profile == nil || st.Profile.Location != "Mbale" {
		t.Errorf("expected role and profile, got role=%q profile=%+v", st.Role, st.Profile)
	}
}

func TestSessionService_AuthChange_FetchesMissingProfile(t *testing.T) {
	f := newFixture()
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	f.auth.emit(domain.AuthChange{Kind: domain.AuthSignedIn, Session: sessionFor("u-1")})
	waitFor(t, "self profile", func() bool {
		p := f.svc.State().Profile
		return p != nil && p.FullName == "Asha"
	})
	waitFor(t, "farmer role", func() bool { return f.svc.State().Role == domain.RoleFarmer })
}

func TestSessionService_SignIn_PollToleratesQueryErrors(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{}
	f.auth.getSessionErr = errors.New("network down")

	out, err := f.svc.SignIn(context.Background(), "a@example.com", "secret")
	if err != nil {
		t.Fatalf("expected poll errors to be absorbed, got: %v", err)
	}
	if !out.ConfirmationPending {
		t.Errorf("expected confirmation pending")
	}
}

func TestSessionService_SignIn_PollStopsOnCancelledContext(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.svc.clock = blockingClock{}
	_, err := f.svc.SignIn(ctx, "a@example.com", "secret")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

type blockingClock struct{}

func (blockingClock) Now() time.Time                       { return time.Time{} }
func (blockingClock) After(time.Duration) <-chan time.Time { return nil }

// ---------------------------------------------------------------------------
// Sign-up
// ---------------------------------------------------------------------------

func TestSessionService_SignUp_SendsMetadataNotRoleRow(t *testing.T) {
	f := newFixture()
	f.auth.signUpRes = &ports.SignUpResult{User: &domain.User{ID: "u-7"}}
	phone := " +1 650-253-0000 "

	err := f.svc.SignUp(context.Background(), ports.SignUpRequest{
		Email: "s@example.com", Password: "secret", FullName: "Okello",
		Location: "Gulu", Role: domain.RoleSupplier, Phone: &phone,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.auth.signUpCalls) != 1 {
		t.Fatalf("expected one sign-up call, got %d", len(f.auth.signUpCalls))
	}
	md := f.auth.signUpCalls[0].Metadata
	if md.Role != "supplier" || md.FullName != "Okello" || md.Location != "Gulu" {
		t.Errorf("unexpected metadata: %+v", md)
	}
	if md.Phone == nil || *md.Phone != "+16502530000" {
		t.Errorf("expected E.164 phone, got %v", md.Phone)
	}
	if f.svc.State().Role != domain.RoleUnset {
		t.Errorf("sign-up must not set a role locally")
	}
}

func TestSessionService_SignUp_MissingIdentity(t *testing.T) {
	f := newFixture()
	f.auth.signUpRes = &ports.SignUpResult{}

	err := f.svc.SignUp(context.Background(), ports.SignUpRequest{
		Email: "s@example.com", Password: "secret", FullName: "Okello",
		Location: "Gulu", Role: domain.RoleSupplier,
	})
	if !errors.Is(err, domain.ErrAccountCreation) {
		t.Fatalf("expected ErrAccountCreation, got: %v", err)
	}
}

func TestSessionService_SignUp_BackendError(t *testing.T) {
	f := newFixture()
	backendErr := errors.New("User already registered")
	f.auth.signUpErr = backendErr

	err := f.svc.SignUp(context.Background(), ports.SignUpRequest{Email: "s@example.com", Password: "p", Role: domain.RoleBuyer})
	if err != backendErr {
		t.Fatalf("expected backend error, got: %v", err)
	}
}

func TestSessionService_SignUp_InvalidRole(t *testing.T) {
	f := newFixture()

	err := f.svc.SignUp(context.Background(), ports.SignUpRequest{Email: "s@example.com", Password: "p", Role: "wizard"})
	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got: %v", err)
	}
	if len(f.auth.signUpCalls) != 0 {
		t.Errorf("expected no backend call for invalid role")
	}
}

func TestNormalizePhone(t *testing.T) {
	blank := "   "
	junk := " abc "
	tests := []struct {
		name string
		in   *string
		want *string
	}{
		{"nil", nil, nil},
		{"blank", &blank, nil},
		{"unparseable kept trimmed", &junk, strPtr("abc")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizePhone(tt.in, "UG")
			if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
				t.Errorf("normalizePhone() = %v, want %v", got, tt.want)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

// ---------------------------------------------------------------------------
// Sign-out
// ---------------------------------------------------------------------------

func TestSessionService_SignOut_ClearsStateWhenBackendFails(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{Session: sessionFor("u-1")}
	if _, err := f.svc.SignIn(context.Background(), "a@example.com", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	f.auth.signOutErr = errors.New("network down")

	f.svc.SignOut(context.Background())

	st := f.svc.State()
	if st.Role != domain.RoleUnset {
		t.Errorf("expected role cleared, got %q", st.Role)
	}
	if st.Profile != nil {
		t.Errorf("expected profile cleared, got %+v", st.Profile)
	}
	if st.Session != nil {
		t.Errorf("expected session cleared")
	}
	if f.theme.current() != domain.ThemeNone {
		t.Errorf("expected theme cleared, got %q", f.theme.current())
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0].Title != "Signed out" {
		t.Errorf("expected sign-out notification, got %+v", f.notifier.sent)
	}
}

// ---------------------------------------------------------------------------
// Initialisation and auth-change notifications
// ---------------------------------------------------------------------------

func TestSessionService_Initialize_ExistingSession(t *testing.T) {
	f := newFixture()
	f.auth.sessions = []*domain.Session{sessionFor("u-1")}

	if !f.svc.State().Loading {
		t.Fatalf("expected loading before initialisation")
	}
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	st := f.svc.State()
	if st.Loading {
		t.Errorf("expected loading cleared")
	}
	if st.Role != domain.RoleFarmer || st.Profile == nil {
		t.Errorf("expected role and profile before loading cleared, got %+v", st)
	}
	if got := domain.DashboardRoute(st.Loading, st.User, st.Role); got != "/dashboard/farmer" {
		t.Errorf("unexpected dashboard route %s", got)
	}
}

func TestSessionService_Initialize_NoSession(t *testing.T) {
	f := newFixture()

	f.svc.Initialize(context.Background())
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	st := f.svc.State()
	if st.Loading || st.User != nil || st.SessionState != domain.SessionAbsent {
		t.Errorf("unexpected state: %+v", st)
	}
	if f.auth.getSessionCalls() != 1 {
		t.Errorf("expected a single existing-session query, got %d", f.auth.getSessionCalls())
	}
}

func TestSessionService_Initialize_LookupErrorStillClearsLoading(t *testing.T) {
	f := newFixture()
	f.auth.getSessionErr = errors.New("backend down")

	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	if f.svc.State().Loading {
		t.Errorf("expected loading cleared after failed lookup")
	}
}

func TestSessionService_AuthChange_ResolvesRoleAndClears(t *testing.T) {
	f := newFixture()
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	f.auth.emit(domain.AuthChange{Kind: domain.AuthSignedIn, Session: sessionFor("u-2")})
	if f.svc.State().User == nil {
		t.Fatalf("expected identity applied synchronously")
	}
	waitFor(t, "buyer role", func() bool { return f.svc.State().Role == domain.RoleBuyer })

	f.auth.emit(domain.AuthChange{Kind: domain.AuthSignedOut})
	st := f.svc.State()
	if st.User != nil || st.Role != domain.RoleUnset {
		t.Errorf("expected identity and role cleared, got %+v", st)
	}
	if f.theme.current() != domain.ThemeNone {
		t.Errorf("expected theme cleared, got %q", f.theme.current())
	}
}

func TestSessionService_AuthChange_StaleRoleDiscarded(t *testing.T) {
	f := newFixture()
	f.roles.gate = make(chan struct{})
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	f.auth.emit(domain.AuthChange{Kind: domain.AuthSignedIn, Session: sessionFor("u-1")})
	f.svc.SignOut(context.Background())
	close(f.roles.gate)

	time.Sleep(50 * time.Millisecond)
	if role := f.svc.State().Role; role != domain.RoleUnset {
		t.Errorf("late role completion leaked after sign-out: %q", role)
	}
}

func TestSessionService_ThemeAlwaysSingleTag(t *testing.T) {
	f := newFixture()
	f.roles.roles["u-3"] = "supplier"
	f.roles.roles["u-4"] = "admin"
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	valid := map[domain.Theme]bool{
		"farmer-theme": true, "buyer-theme": true, "supplier-theme": true,
		"admin-theme": true, domain.ThemeNone: true,
	}
	for _, uid := range []string{"u-1", "u-3", "u-2", "u-4"} {
		f.auth.signInRes = &ports.SignInResult{Session: sessionFor(uid)}
		if _, err := f.svc.SignIn(context.Background(), uid+"@example.com", "p"); err != nil {
			t.Fatalf("sign in %s: %v", uid, err)
		}
		want := domain.ThemeFor(f.svc.State().Role)
		if got := f.theme.current(); got != want {
			t.Errorf("after %s: theme %q, want %q", uid, got, want)
		}
		f.svc.SignOut(context.Background())
		if got := f.theme.current(); got != domain.ThemeNone {
			t.Errorf("after sign-out of %s: stale theme %q", uid, got)
		}
	}
	for _, th := range f.theme.applied {
		if !valid[th] {
			t.Errorf("invalid theme applied: %q", th)
		}
	}
}

func TestSessionService_Observe(t *testing.T) {
	f := newFixture()
	var mu sync.Mutex
	var seen []ports.AuthState
	cancel := f.svc.Observe(func(st ports.AuthState) {
		mu.Lock()
		seen = append(seen, st)
		mu.Unlock()
	})

	f.auth.signInRes = &ports.SignInResult{Session: sessionFor("u-1")}
	if _, err := f.svc.SignIn(context.Background(), "a@example.com", "p"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	cancel()
	f.svc.SignOut(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatalf("expected snapshots")
	}
	last := seen[len(seen)-1]
	if last.Role != domain.RoleFarmer {
		t.Errorf("expected last observed role farmer, got %q", last.Role)
	}
}

func TestSessionService_Close_Unsubscribes(t *testing.T) {
	f := newFixture()
	f.svc.Initialize(context.Background())
	waitReady(t, f.svc)

	f.svc.Close()
	if !f.auth.sub.unsubscribed {
		t.Errorf("expected subscription cancelled")
	}
}

func TestSessionService_AuditFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	f.audit.err = errors.New("mongo unavailable")
	f.auth.signInRes = &ports.SignInResult{Session: sessionFor("u-1")}

	if _, err := f.svc.SignIn(context.Background(), "a@example.com", "p"); err != nil {
		t.Fatalf("audit failure must not fail sign-in, got: %v", err)
	}
}

func (a *stubAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

func TestSessionService_SlowAuditDoesNotDelaySignIn(t *testing.T) {
	f := newFixture()
	f.audit.gate = make(chan struct{})
	f.auth.signInRes = &ports.SignInResult{Session: sessionFor("u-1")}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.svc.SignIn(context.Background(), "a@example.com", "p"); err != nil {
			t.Errorf("sign in: %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sign-in waited on the audit insert")
	}

	close(f.audit.gate)
	f.svc.Close()
	if f.audit.count() == 0 {
		t.Errorf("expected queued audit events flushed by Close")
	}
}

func TestSessionService_AuditRecordsSignIn(t *testing.T) {
	f := newFixture()
	f.auth.signInRes = &ports.SignInResult{Session: sessionFor("u-1")}

	if _, err := f.svc.SignIn(context.Background(), "a@example.com", "p"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	f.svc.Close()

	f.audit.mu.Lock()
	defer f.audit.mu.Unlock()
	var found bool
	for _, e := range f.audit.events {
		if e.Kind == domain.AuditSignIn && e.UserID == "u-1" && e.Outcome == "session" {
			found = true
			if e.ID == "" {
				t.Errorf("expected audit id")
			}
		}
	}
	if !found {
		t.Errorf("expected sign-in audit event, got %d events", len(f.audit.events))
	}
}
