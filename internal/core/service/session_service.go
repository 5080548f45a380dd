package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
	"github.com/birimbahub/marketplace/internal/metrics"
)

const auditTimeout = 2 * time.Second

// Option configures a SessionService.
type Option func(*SessionService)

// WithRetryPolicy overrides the sign-in poll policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *SessionService) { s.policy = p.normalized() }
}

// WithClock injects the poll clock.
func WithClock(c Clock) Option {
	return func(s *SessionService) { s.clock = c }
}

// WithAudit records session transitions in repo.
func WithAudit(repo ports.AuditRepository) Option {
	return func(s *SessionService) { s.audit = repo }
}

// WithPhoneRegion sets the default region used to normalise sign-up phones.
func WithPhoneRegion(region string) Option {
	return func(s *SessionService) { s.phoneRegion = strings.ToUpper(region) }
}

// SessionService owns the authenticated context: identity, session, role,
// self-profile and the loading flag. It reacts to backend auth changes and
// drives the role and profile resolvers.
type SessionService struct {
	auth        ports.AuthClient
	roles       *RoleResolver
	profiles    *SelfProfileResolver
	theme       ports.ThemeApplier
	notifier    ports.Notifier
	audit       ports.AuditRepository
	policy      RetryPolicy
	clock       Clock
	phoneRegion string
	log         zerolog.Logger

	mu      sync.RWMutex
	session *domain.Session
	user    *domain.User
	role    domain.Role
	profile *domain.SelfProfile
	loading bool
	pending bool

	pubMu     sync.Mutex
	listeners map[int]ports.StateListener
	nextID    int

	initOnce  sync.Once
	readyOnce sync.Once
	ready     chan struct{}
	sub       ports.Subscription
	auditWG   sync.WaitGroup
}

// NewSessionService returns a SessionService in the loading state.
func NewSessionService(
	auth ports.AuthClient,
	roles *RoleResolver,
	profiles *SelfProfileResolver,
	theme ports.ThemeApplier,
	notifier ports.Notifier,
	log zerolog.Logger,
	opts ...Option,
) *SessionService {
	s := &SessionService{
		auth:        auth,
		roles:       roles,
		profiles:    profiles,
		theme:       theme,
		notifier:    notifier,
		policy:      DefaultRetryPolicy(),
		clock:       SystemClock,
		phoneRegion: defaultPhoneRegion,
		log:         log,
		loading:     true,
		listeners:   make(map[int]ports.StateListener),
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize subscribes to auth changes and starts loading any persisted
// session. It runs once; later calls are no-ops.
func (s *SessionService) Initialize(ctx context.Context) {
	s.initOnce.Do(func() {
		s.sub = s.auth.OnAuthStateChange(s.handleAuthChange)
		go s.loadExistingSession(context.WithoutCancel(ctx))
	})
}

// Ready is closed once the initial load has cleared the loading flag.
func (s *SessionService) Ready() <-chan struct{} {
	return s.ready
}

// Close unsubscribes from auth changes and waits for queued audit inserts.
func (s *SessionService) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	s.auditWG.Wait()
}

func (s *SessionService) handleAuthChange(change domain.AuthChange) {
	uid := change.Session.UserID()
	s.log.Debug().Str("event", string(change.Kind)).Str("user_id", uid).Msg("auth state changed")

	s.adoptSession(change.Session)
	if uid != "" {
		s.resolveRoleAsync(uid)
		if s.missingProfile(uid) {
			s.resolveProfileAsync(uid)
		}
	} else {
		s.clearIdentityData()
	}
	s.record(domain.AuditAuthChange, uid, domain.RoleUnset, string(change.Kind), "")
}

func (s *SessionService) loadExistingSession(ctx context.Context) {
	defer s.finishLoading()

	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("existing session lookup failed")
		return
	}
	uid := sess.UserID()
	if uid == "" {
		return
	}
	s.adoptSession(sess)
	s.resolveRoleAndProfile(ctx, uid)
}

func (s *SessionService) finishLoading() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	s.publish()
}

// SignIn authenticates with email and password. An immediate session is
// returned only after role and profile resolution finished. When the
// backend defers the session, SignIn polls for it within the retry policy
// and reports ConfirmationPending if none appears. Backend errors are
// returned unchanged and leave the state untouched.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (ports.SignInOutcome, error) {
	res, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		metrics.SignInTotal.WithLabelValues("error").Inc()
		s.record(domain.AuditSignIn, "", domain.RoleUnset, "error", err.Error())
		return ports.SignInOutcome{}, err
	}

	if res != nil && res.Session != nil {
		sess := res.Session
		if sess.User == nil {
			sess.User = res.User
		}
		s.adoptSession(sess)
		if uid := sess.UserID(); uid != "" {
			s.resolveRoleAndProfile(ctx, uid)
		}
		metrics.SignInTotal.WithLabelValues("session").Inc()
		s.record(domain.AuditSignIn, sess.UserID(), s.State().Role, "session", "")
		return ports.SignInOutcome{Session: sess}, nil
	}

	sess, err := s.pollSession(ctx)
	if err != nil {
		metrics.SignInTotal.WithLabelValues("error").Inc()
		return ports.SignInOutcome{}, err
	}
	if sess != nil {
		s.adoptSession(sess)
		if uid := sess.UserID(); uid != "" {
			s.resolveRoleAndProfile(ctx, uid)
		}
		metrics.SignInTotal.WithLabelValues("session").Inc()
		s.record(domain.AuditSignIn, sess.UserID(), s.State().Role, "session", "polled")
		return ports.SignInOutcome{Session: sess}, nil
	}

	s.mu.Lock()
	s.pending = true
	s.mu.Unlock()
	s.publish()

	metrics.SignInTotal.WithLabelValues("confirmation_pending").Inc()
	s.record(domain.AuditSignIn, "", domain.RoleUnset, "confirmation_pending", "")
	s.log.Info().Str("email", email).Msg("credentials accepted, confirmation pending")
	return ports.SignInOutcome{ConfirmationPending: true}, nil
}

// pollSession queries the backend every policy.Interval until a session
// appears or policy.MaxDuration has elapsed. A nil session with a nil error
// means the budget was exhausted.
func (s *SessionService) pollSession(ctx context.Context) (*domain.Session, error) {
	start := s.clock.Now()
	for s.clock.Now().Sub(start) < s.policy.MaxDuration {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.clock.After(s.policy.Interval):
		}

		metrics.SessionPollAttemptsTotal.Inc()
		sess, err := s.auth.GetSession(ctx)
		if err != nil {
			s.log.Debug().Err(err).Msg("session poll failed")
			continue
		}
		if sess != nil {
			return sess, nil
		}
	}
	return nil, nil
}

// SignUp creates an account. Role, name, location and phone travel as
// account metadata; the role row is created by a trusted server-side
// trigger, never written from here.
func (s *SessionService) SignUp(ctx context.Context, req ports.SignUpRequest) error {
	if !req.Role.Valid() {
		metrics.SignUpTotal.WithLabelValues("error").Inc()
		return domain.ErrInvalidRole
	}

	res, err := s.auth.SignUp(ctx, ports.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Metadata: ports.SignUpMetadata{
			FullName: req.FullName,
			Location: req.Location,
			Role:     req.Role.String(),
			Phone:    normalizePhone(req.Phone, s.phoneRegion),
		},
	})
	if err != nil {
		metrics.SignUpTotal.WithLabelValues("error").Inc()
		s.record(domain.AuditSignUp, "", req.Role, "error", err.Error())
		return err
	}
	if res == nil || res.User == nil || res.User.ID == "" {
		metrics.SignUpTotal.WithLabelValues("no_identity").Inc()
		s.record(domain.AuditSignUp, "", req.Role, "no_identity", "")
		return domain.ErrAccountCreation
	}

	metrics.SignUpTotal.WithLabelValues("created").Inc()
	s.record(domain.AuditSignUp, res.User.ID, req.Role, "created", "")
	s.log.Info().Str("user_id", res.User.ID).Str("role", req.Role.String()).Msg("account created")
	return nil
}

// SignOut signs out at the backend and clears the local session, role and
// profile even when the backend call fails.
func (s *SessionService) SignOut(ctx context.Context) {
	user := s.State().User
	if err := s.auth.SignOut(ctx); err != nil {
		s.log.Warn().Err(err).Msg("backend sign-out failed, clearing local state anyway")
	}

	s.mu.Lock()
	s.setRoleLocked(domain.RoleUnset)
	s.profile = nil
	s.session = nil
	s.user = nil
	s.pending = false
	s.mu.Unlock()
	s.publish()

	if s.notifier != nil {
		s.notifier.Notify(domain.Notification{
			Title:       "Signed out",
			Description: "You have been signed out successfully",
		})
	}

	var id string
	if user != nil {
		id = user.ID
	}
	s.record(domain.AuditSignOut, id, domain.RoleUnset, "ok", "")
}

// resolveRoleAsync resolves the role without blocking the caller.
func (s *SessionService) resolveRoleAsync(userID string) {
	go s.resolveRoleAndAwait(context.Background(), userID)
}

// resolveRoleAndAwait resolves the role and applies it before returning.
func (s *SessionService) resolveRoleAndAwait(ctx context.Context, userID string) {
	s.applyRole(userID, s.roles.Resolve(ctx, userID))
}

// resolveProfileAsync fetches the self-profile without blocking the caller.
func (s *SessionService) resolveProfileAsync(userID string) {
	go func() {
		s.applyProfile(userID, s.profiles.Resolve(context.Background(), userID))
	}()
}

// missingProfile reports whether userID is current and has no profile yet.
func (s *SessionService) missingProfile(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserIDLocked() == userID && s.profile == nil
}

// resolveRoleAndProfile runs both resolvers concurrently and waits for both.
func (s *SessionService) resolveRoleAndProfile(ctx context.Context, userID string) {
	var g errgroup.Group
	g.Go(func() error {
		s.resolveRoleAndAwait(ctx, userID)
		return nil
	})
	g.Go(func() error {
		s.applyProfile(userID, s.profiles.Resolve(ctx, userID))
		return nil
	})
	_ = g.Wait()
}

// adoptSession replaces the current session. Switching to a different
// identity drops the previous identity's role and profile.
func (s *SessionService) adoptSession(sess *domain.Session) {
	s.mu.Lock()
	prev := s.currentUserIDLocked()
	s.session = sess
	if sess != nil {
		s.user = sess.User
		s.pending = false
	} else {
		s.user = nil
	}
	if next := s.currentUserIDLocked(); next != prev && next != "" && prev != "" {
		s.setRoleLocked(domain.RoleUnset)
		s.profile = nil
	}
	s.mu.Unlock()
	s.publish()
}

func (s *SessionService) clearIdentityData() {
	s.mu.Lock()
	s.setRoleLocked(domain.RoleUnset)
	s.profile = nil
	s.mu.Unlock()
	s.publish()
}

// applyRole stores a resolved role if the identity it was resolved for is
// still current. An unset result leaves the current role untouched.
func (s *SessionService) applyRole(userID string, role domain.Role) {
	if role == domain.RoleUnset {
		return
	}
	s.mu.Lock()
	if s.currentUserIDLocked() != userID {
		s.mu.Unlock()
		s.log.Debug().Str("user_id", userID).Msg("discarding role for stale identity")
		return
	}
	changed := s.setRoleLocked(role)
	s.mu.Unlock()

	if changed {
		s.publish()
		s.record(domain.AuditRoleResolve, userID, role, "ok", "")
	}
}

func (s *SessionService) applyProfile(userID string, p *domain.SelfProfile) {
	s.mu.Lock()
	if s.currentUserIDLocked() != userID {
		s.mu.Unlock()
		return
	}
	s.profile = p
	s.mu.Unlock()
	s.publish()
}

// setRoleLocked is the only writer of s.role. The theme is re-derived from
// the new role and applied while s.mu is held, so tags never interleave.
func (s *SessionService) setRoleLocked(role domain.Role) bool {
	if s.role == role {
		return false
	}
	s.role = role
	if s.theme != nil {
		s.theme.Apply(domain.ThemeFor(role))
	}
	label := role.String()
	if role == domain.RoleUnset {
		label = "none"
	}
	metrics.RoleTransitionsTotal.WithLabelValues(label).Inc()
	return true
}

func (s *SessionService) currentUserIDLocked() string {
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// State returns a consistent snapshot of the authenticated context.
func (s *SessionService) State() ports.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := ports.AuthState{
		User:         s.user,
		Session:      s.session,
		SessionState: domain.SessionAbsent,
		Role:         s.role,
		Profile:      s.profile,
		Loading:      s.loading,
	}
	switch {
	case s.session != nil:
		st.SessionState = domain.SessionEstablished
	case s.pending:
		st.SessionState = domain.SessionPending
	}
	return st
}

// Observe registers listener for state snapshots. The returned func removes it.
func (s *SessionService) Observe(listener ports.StateListener) func() {
	s.pubMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.pubMu.Unlock()

	return func() {
		s.pubMu.Lock()
		delete(s.listeners, id)
		s.pubMu.Unlock()
	}
}

func (s *SessionService) publish() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if len(s.listeners) == 0 {
		return
	}
	st := s.State()
	for _, l := range s.listeners {
		l(st)
	}
}

// record queues an audit insert. It never delays the caller.
func (s *SessionService) record(kind, userID string, role domain.Role, outcome, detail string) {
	if s.audit == nil {
		return
	}
	ev := &domain.AuditEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    userID,
		Role:      role,
		Outcome:   outcome,
		Detail:    detail,
		Timestamp: s.clock.Now().UTC(),
	}

	s.auditWG.Add(1)
	go func() {
		defer s.auditWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := s.audit.InsertEvent(ctx, ev); err != nil {
			s.log.Warn().Err(err).Str("kind", kind).Msg("failed to insert audit event")
		}
	}()
}
