package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

const initialSessionTimeout = 3 * time.Second

type apiUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u *apiUser) toDomain() *domain.User {
	if u == nil || u.ID == "" {
		return nil
	}
	return &domain.User{ID: u.ID, Email: u.Email, Metadata: u.UserMetadata}
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         *apiUser `json:"user"`
}

// signUpResponse is either a token response (auto-confirmed accounts) or a
// bare user object (confirmation required).
type signUpResponse struct {
	tokenResponse
	apiUser
}

// SignInWithPassword exchanges email and password for a session. A nil
// session in the result means the backend accepted the credentials but
// issued no session yet.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*ports.SignInResult, error) {
	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &tr)
	if err != nil {
		return nil, asCredentialError(err)
	}

	res := &ports.SignInResult{User: tr.User.toDomain()}
	if tr.AccessToken == "" {
		return res, nil
	}

	sess := c.sessionFromToken(tr)
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.publish(domain.AuthSignedIn, sess)
	res.Session = sess
	return res, nil
}

// SignUp creates an account carrying in.Metadata. The backend may return a
// session right away or only the new user when confirmation is required.
func (c *Client) SignUp(ctx context.Context, in ports.SignUpInput) (*ports.SignUpResult, error) {
	var query url.Values
	if c.siteURL != "" {
		query = url.Values{"redirect_to": {c.siteURL}}
	}

	var resp signUpResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/signup",
		query:  query,
		body: map[string]any{
			"email":    in.Email,
			"password": in.Password,
			"data":     in.Metadata,
		},
	}, &resp)
	if err != nil {
		return nil, asCredentialError(err)
	}

	res := &ports.SignUpResult{User: resp.tokenResponse.User.toDomain()}
	if res.User == nil {
		res.User = resp.apiUser.toDomain()
	}
	if resp.AccessToken != "" {
		sess := c.sessionFromToken(resp.tokenResponse)
		if sess.User == nil {
			sess.User = res.User
		}
		if err := c.store.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		c.publish(domain.AuthSignedIn, sess)
		res.Session = sess
	}
	return res, nil
}

// SignOut revokes the current session. The local session is dropped unless
// the backend could not be reached or failed unexpectedly.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if sess != nil && sess.AccessToken != "" {
		err := c.do(ctx, request{
			method: http.MethodPost,
			path:   authPrefix + "/logout",
			bearer: sess.AccessToken,
		}, nil)
		if err != nil && !sessionGone(err) {
			return err
		}
	}

	if err := c.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.publish(domain.AuthSignedOut, nil)
	return nil
}

// GetSession returns the persisted session, refreshing it when the access
// token has expired. A session whose refresh is rejected is dropped and nil
// is returned.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || !sess.Expired(c.now()) {
		return sess, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	current, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if current == nil || !current.Expired(c.now()) {
		return current, nil
	}
	return c.refresh(ctx, current)
}

func (c *Client) refresh(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if sess.RefreshToken == "" {
		c.dropSession(ctx)
		return nil, nil
	}

	var tr tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   authPrefix + "/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": sess.RefreshToken},
	}, &tr)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			c.log.Info().Str("user_id", sess.UserID()).Msg("session refresh rejected, signing out")
			c.dropSession(ctx)
			return nil, nil
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	next := c.sessionFromToken(tr)
	if next.User == nil {
		next.User = sess.User
	}
	if err := c.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	c.publish(domain.AuthTokenRefreshed, next)
	return next, nil
}

func (c *Client) dropSession(ctx context.Context) {
	if err := c.store.Delete(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to delete session")
	}
	c.publish(domain.AuthSignedOut, nil)
}

// OnAuthStateChange subscribes listener to auth changes. The listener first
// receives INITIAL_SESSION with the stored session.
func (c *Client) OnAuthStateChange(listener ports.AuthStateListener) ports.Subscription {
	ctx, cancel := context.WithTimeout(context.Background(), initialSessionTimeout)
	defer cancel()

	sess, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to load session for initial notification")
		sess = nil
	}
	return c.events.Subscribe(listener, domain.AuthChange{Kind: domain.AuthInitialSession, Session: sess})
}

func (c *Client) publish(kind domain.AuthEventKind, sess *domain.Session) {
	c.events.Publish(domain.AuthChange{Kind: kind, Session: sess})
}

// accessToken returns the bearer for row requests: the session token when
// signed in, otherwise empty so the anon key is used.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", nil
	}
	return sess.AccessToken, nil
}

func (c *Client) sessionFromToken(tr tokenResponse) *domain.Session {
	sess := &domain.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		User:         tr.User.toDomain(),
	}

	switch {
	case tr.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tr.ExpiresAt, 0).UTC()
	default:
		claims, ok := parseClaims(tr.AccessToken)
		switch {
		case ok && claims.ExpiresAt != nil:
			sess.ExpiresAt = claims.ExpiresAt.Time.UTC()
		case tr.ExpiresIn > 0:
			sess.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
		}
	}

	if sess.User == nil {
		if claims, ok := parseClaims(tr.AccessToken); ok && claims.Subject != "" {
			sess.User = &domain.User{ID: claims.Subject}
		}
	}
	return sess
}

// parseClaims reads the access token claims without verifying the
// signature. The token is only inspected for its expiry and subject; the
// backend verifies it on every call.
func parseClaims(token string) (*jwt.RegisteredClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// sessionGone reports whether a logout failed only because the session was
// already invalid.
func sessionGone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
