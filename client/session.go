// Package client is the client side of an EduKE session: it holds the current principal,
// persists remembered sessions, and attaches credentials to API calls.
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
	"github.com/MagetoJ/EduKE-sub001/core/auth"
	"github.com/MagetoJ/EduKE-sub001/core/authz"
)

var NowFunc = time.Now // mockable

// DefaultTimeout bounds every request when Options.Timeout is not set.
const DefaultTimeout = 15 * time.Second

// access tokens this close to expiry are refreshed before use
const expiryDelta = 10 * time.Second

// State is where a Session is in its lifecycle. ForcedChangePending and Active are both
// authenticated.
type State string

const (
	StateAnonymous           State = "anonymous"
	StateAuthenticating      State = "authenticating"
	StateForcedChangePending State = "forced_change_pending"
	StateActive              State = "active"
)

func (s State) IsAuthenticated() bool {
	return s == StateForcedChangePending || s == StateActive
}

func stateFor(p account.Principal) State {
	if p.MustChangePassword {
		return StateForcedChangePending
	}
	return StateActive
}

type Options struct {
	Timeout   time.Duration
	Store     Store             // remembered sessions; defaults to a MemoryStore
	Transport http.RoundTripper // defaults to http.DefaultTransport
	Logger    core.Logger       // optional
}

func OptionsFromConfig(conf *core.Config) Options {
	return Options{Timeout: conf.Auth.ClientRequestTimeout}
}

// Session is the single current session of a client context. All methods are safe for
// concurrent use. Only Session mutates its state; readers always see the last committed value.
type Session struct {
	baseURL string
	timeout time.Duration
	store   Store
	logger  core.Logger

	anon   *http.Client // no credentials
	authed *http.Client // bearer credentials through oauth2.Transport

	group singleflight.Group

	mu    sync.RWMutex
	state State
	saved *SavedSession
	gen   uint64 // bumped on every session change
}

func New(baseURL string, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: opts.Timeout,
		store:   opts.Store,
		logger:  opts.Logger,
		anon:    &http.Client{Transport: opts.Transport},
		state:   StateAnonymous,
	}
	s.authed = &http.Client{
		Transport: &oauth2.Transport{Source: sessionTokenSource{s}, Base: opts.Transport},
	}
	return s
}

func now() time.Time { return NowFunc().UTC() }

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Principal returns the current principal, or nil when anonymous.
func (s *Session) Principal() *account.Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.saved == nil || !s.state.IsAuthenticated() {
		return nil
	}
	p := s.saved.Principal
	return &p
}

// Can reports whether the current principal holds c. It is evaluated against the latest
// state on every call.
func (s *Session) Can(c authz.Capability) bool {
	return authz.Allows(s.Principal(), c)
}

func (s *Session) logError(msg string, err error) {
	if s.logger != nil && err != nil {
		s.logger.Error(msg, err)
	}
}

// commit installs saved as the current session and persists it if it is remembered.
// The caller holds s.mu.
func (s *Session) commit(saved SavedSession) {
	s.saved = &saved
	s.state = stateFor(saved.Principal)
	s.gen++
	if saved.Persistent {
		s.logError("saving session", s.store.Save(saved))
	} else {
		s.logError("clearing session", s.store.Clear())
	}
}

// teardown ends the current session locally. The caller holds s.mu.
func (s *Session) teardown() {
	s.saved = nil
	s.state = StateAnonymous
	s.gen++
	s.logError("clearing session", s.store.Clear())
}

// teardownIf ends the session only if it is still generation gen, so that a rejection of
// an old credential never ends a newer session.
func (s *Session) teardownIf(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.saved != nil {
		s.teardown()
	}
}

func (s *Session) current() (*SavedSession, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.saved == nil {
		return nil, s.gen
	}
	saved := *s.saved
	return &saved, s.gen
}

// flightKey identifies a submission by its operation and arguments, so only identical
// concurrent submissions share a request. Secrets are digested, not kept in the key.
func flightKey(op string, args ...string) string {
	h := sha256.New()
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	return op + ":" + hex.EncodeToString(h.Sum(nil))
}

// Login authenticates and starts a session. With remember the session survives restarts.
// Identical concurrent logins are collapsed into one request.
func (s *Session) Login(ctx context.Context, email, password string, remember bool) (auth.Outcome, error) {
	v, err, _ := s.group.Do(flightKey("login", email, password, strconv.FormatBool(remember)), func() (interface{}, error) {
		s.mu.Lock()
		prevState := s.state
		s.state = StateAuthenticating
		s.mu.Unlock()

		var body grantBody
		err := s.post(ctx, "/api/auth/login", loginBody{Email: email, Password: password, Remember: remember}, &body)

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			if s.state == StateAuthenticating {
				s.state = prevState
			}
			return auth.Outcome(""), err
		}
		s.commit(body.saved())
		return body.Outcome, nil
	})
	return v.(auth.Outcome), err
}

// ChangePassword sets a new password for the current principal and lifts a forced change.
func (s *Session) ChangePassword(ctx context.Context, newPassword string) error {
	_, err, _ := s.group.Do(flightKey("change_password", newPassword), func() (interface{}, error) {
		if !s.State().IsAuthenticated() {
			return nil, core.ErrTokenInvalid
		}
		resp, err := s.Call(ctx, "/api/auth/change-password", CallOptions{
			Method:     http.MethodPost,
			Body:       changePasswordBody{NewPassword: newPassword},
			Capability: authz.ChangePassword,
		})
		if err != nil {
			return nil, err
		}
		if err := resp.Err(); err != nil {
			return nil, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.saved != nil {
			saved := *s.saved
			saved.Principal.MustChangePassword = false
			s.commit(saved)
		}
		return nil, nil
	})
	return err
}

// Logout ends the session on the server (best effort) and locally. It never fails.
func (s *Session) Logout(ctx context.Context) {
	_, _, _ = s.group.Do("logout", func() (interface{}, error) {
		saved, _ := s.current()
		if saved != nil {
			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			req, err := newRequest(ctx, http.MethodPost, s.baseURL+"/api/auth/logout", nil)
			if err == nil {
				req.Header.Set("Authorization", "Bearer "+saved.AccessToken)
				if res, err := s.anon.Do(req); err == nil {
					res.Body.Close()
				}
			}
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.teardown()
		return nil, nil
	})
}

// Restore reinstates a remembered session and checks it with the server. It never fails:
// nothing stored, an expired session or a rejected one all leave the Session anonymous.
// When the server cannot be reached the stored principal is kept.
func (s *Session) Restore(ctx context.Context) *account.Principal {
	saved, err := s.store.Load()
	if err != nil {
		s.logError("loading session", err)
		s.logError("clearing session", s.store.Clear())
		return nil
	}
	if saved == nil {
		return nil
	}
	if !now().Before(saved.SessionExpiresAt) {
		s.logError("clearing session", s.store.Clear())
		return nil
	}

	s.mu.Lock()
	s.saved = saved
	s.state = stateFor(saved.Principal)
	s.gen++
	s.mu.Unlock()

	resp, err := s.Call(ctx, "/api/auth/me", CallOptions{})
	if err != nil {
		return s.Principal()
	}
	switch {
	case endsSession(resp):
		s.mu.Lock()
		s.teardown()
		s.mu.Unlock()
		return nil
	case !resp.Success:
		return s.Principal()
	}

	var me meBody
	if err := resp.Decode(&me); err != nil {
		return s.Principal()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved != nil {
		updated := *s.saved
		updated.Principal = me.User
		s.commit(updated)
	}
	return s.principalLocked()
}

func (s *Session) principalLocked() *account.Principal {
	if s.saved == nil {
		return nil
	}
	p := s.saved.Principal
	return &p
}

// RequestPasswordReset asks for a reset link. Whether email is known is never revealed.
func (s *Session) RequestPasswordReset(ctx context.Context, email string) error {
	_, err, _ := s.group.Do(flightKey("request_password_reset", email), func() (interface{}, error) {
		return nil, s.post(ctx, "/api/forgot-password", emailBody{Email: email}, nil)
	})
	return err
}

func (s *Session) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	_, err, _ := s.group.Do(flightKey("reset_password", resetToken, newPassword), func() (interface{}, error) {
		return nil, s.post(ctx, "/api/reset-password", resetBody{Token: resetToken, Password: newPassword}, nil)
	})
	return err
}

func (s *Session) VerifyEmail(ctx context.Context, verificationToken string) error {
	_, err, _ := s.group.Do(flightKey("verify_email", verificationToken), func() (interface{}, error) {
		return nil, s.post(ctx, "/api/auth/verify-email", tokenBody{Token: verificationToken}, nil)
	})
	return err
}

// refresh exchanges the refresh token of session generation gen for a new grant. A rejected
// refresh token ends the session; a network failure leaves it as is.
func (s *Session) refresh(gen uint64, refreshToken string) (SavedSession, error) {
	v, err, _ := s.group.Do("refresh", func() (interface{}, error) {
		// another caller may have refreshed already
		if saved, cur := s.current(); saved != nil && cur != gen && now().Add(expiryDelta).Before(saved.AccessExpiresAt) {
			return *saved, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		var body grantBody
		if err := s.post(ctx, "/api/auth/refresh-token", refreshBody{RefreshToken: refreshToken}, &body); err != nil {
			if ae, ok := core.AsAuthError(err); ok && ae.Code != core.CodeNetworkFailure {
				s.teardownIf(gen)
			}
			return SavedSession{}, err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			// logged out or replaced meanwhile
			return SavedSession{}, core.ErrTokenInvalid
		}
		saved := body.saved()
		s.commit(saved)
		return saved, nil
	})
	if err != nil {
		return SavedSession{}, err
	}
	return v.(SavedSession), nil
}

// sessionTokenSource feeds the current access token to oauth2.Transport, refreshing it
// first when it is about to expire.
type sessionTokenSource struct {
	s *Session
}

func (ts sessionTokenSource) Token() (*oauth2.Token, error) {
	saved, gen := ts.s.current()
	if saved == nil {
		return nil, core.ErrTokenInvalid
	}
	if !now().Add(expiryDelta).Before(saved.AccessExpiresAt) {
		refreshed, err := ts.s.refresh(gen, saved.RefreshToken)
		if err != nil {
			return nil, err
		}
		saved = &refreshed
	}
	return &oauth2.Token{
		AccessToken: saved.AccessToken,
		TokenType:   "Bearer",
		Expiry:      saved.AccessExpiresAt,
	}, nil
}
