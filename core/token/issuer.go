package token

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/account"
)

var NowFunc = time.Now // mockable

const audience = "eduke"

type Options struct {
	SecretKey            string
	AppName              string
	AccessTokenTTL       time.Duration
	EphemeralSessionTTL  time.Duration
	PersistentSessionTTL time.Duration
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
}

func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		SecretKey:            conf.SecretKey,
		AppName:              conf.AppName,
		AccessTokenTTL:       conf.Auth.AccessTokenTTL,
		EphemeralSessionTTL:  conf.Auth.EphemeralSessionTTL,
		PersistentSessionTTL: conf.Auth.PersistentSessionTTL,
		PasswordResetTTL:     conf.Auth.PasswordResetTTL,
		EmailVerificationTTL: conf.Auth.EmailVerificationTTL,
	}
}

// Issuer mints and validates security tokens and session tokens.
type Issuer struct {
	opts     Options
	key      []byte
	accounts AccountGetter
	tokens   Repository
	sessions SessionRepository
}

func NewIssuer(opts Options, accounts AccountGetter, tokens Repository, sessions SessionRepository) *Issuer {
	return &Issuer{
		opts:     opts,
		key:      []byte(opts.SecretKey),
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
	}
}

func now() time.Time { return NowFunc().UTC() }

func (iss *Issuer) defaultTTL(kind Kind) time.Duration {
	if kind == KindEmailVerification {
		return iss.opts.EmailVerificationTTL
	}
	return iss.opts.PasswordResetTTL
}

// Issue creates a single-use token of kind for an existing, enabled account.
// A zero ttl uses the kind's configured lifetime.
func (iss *Issuer) Issue(ctx context.Context, accountID string, kind Kind, ttl time.Duration) (SecurityToken, error) {
	if !kind.IsValid() {
		return SecurityToken{}, errors.Errorf("unknown token kind %q", kind)
	}
	acc, err := iss.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return SecurityToken{}, core.ErrTokenInvalid
		}
		return SecurityToken{}, errors.Wrap(err, "finding account by ID")
	}
	if acc.Disabled {
		return SecurityToken{}, core.ErrAccountDisabled
	}
	if ttl <= 0 {
		ttl = iss.defaultTTL(kind)
	}

	plain, err := newOpaqueToken()
	if err != nil {
		return SecurityToken{}, errors.Wrap(err, "generating token")
	}
	ts := now()
	tok := SecurityToken{
		Token:     plain,
		Hash:      Hash(plain),
		AccountID: acc.ID,
		Kind:      kind,
		ExpiresAt: ts.Add(ttl),
		CreatedAt: ts,
	}
	if err := iss.tokens.CreateToken(ctx, tok); err != nil {
		return SecurityToken{}, errors.Wrap(err, "storing token")
	}
	return tok, nil
}

// ValidateAndConsume accepts token once, for its own kind only, and returns the account it was issued to.
func (iss *Issuer) ValidateAndConsume(ctx context.Context, token string, kind Kind) (string, error) {
	token = core.CleanString(token)
	if token == "" {
		return "", core.ErrTokenInvalid
	}
	tok, err := iss.tokens.ConsumeToken(ctx, Hash(token), kind, now())
	if err != nil {
		if _, ok := core.AsAuthError(err); ok {
			return "", err
		}
		return "", errors.Wrap(err, "consuming token")
	}
	return tok.AccountID, nil
}

// Invalidate consumes every outstanding token of kind issued to accountID.
func (iss *Issuer) Invalidate(ctx context.Context, accountID string, kind Kind) error {
	return errors.Wrap(iss.tokens.InvalidateTokens(ctx, accountID, kind, now()), "invalidating tokens")
}

// StartSession stores a new session for acc and returns its first grant.
func (iss *Issuer) StartSession(ctx context.Context, acc account.Account, persistent bool) (Grant, error) {
	ts := now()
	ttl := iss.opts.EphemeralSessionTTL
	if persistent {
		ttl = iss.opts.PersistentSessionTTL
	}
	refresh, err := newOpaqueToken()
	if err != nil {
		return Grant{}, errors.Wrap(err, "generating refresh token")
	}
	sess := Session{
		ID:          uuid.New().String(),
		AccountID:   acc.ID,
		IssuedAt:    ts,
		ExpiresAt:   ts.Add(ttl),
		Persistent:  persistent,
		RefreshHash: Hash(refresh),
	}
	if err := iss.sessions.CreateSession(ctx, sess); err != nil {
		return Grant{}, errors.Wrap(err, "storing session")
	}
	return iss.grant(acc, sess, refresh, ts)
}

func (iss *Issuer) grant(acc account.Account, sess Session, refresh string, ts time.Time) (Grant, error) {
	accessExp := ts.Add(iss.opts.AccessTokenTTL)
	if accessExp.After(sess.ExpiresAt) {
		accessExp = sess.ExpiresAt
	}
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        sess.ID,
			Issuer:    iss.opts.AppName,
			Subject:   acc.ID,
			Audience:  audience,
			ExpiresAt: accessExp.Unix(),
			IssuedAt:  ts.Unix(),
		},
		TenantID: acc.TenantID,
		Role:     acc.Role,
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(iss.key)
	if err != nil {
		return Grant{}, errors.Wrap(err, "signing token")
	}
	return Grant{
		SessionID:        sess.ID,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		SessionExpiresAt: sess.ExpiresAt,
		Persistent:       sess.Persistent,
	}, nil
}

// SigningKey is the HS256 key access tokens are signed with.
func (iss *Issuer) SigningKey() []byte { return iss.key }

// ParseAccessToken checks the signature and expiry of an access token. It does not look at the session.
func (iss *Issuer) ParseAccessToken(access string) (*Claims, error) {
	access = core.CleanString(access)
	if access == "" {
		return nil, core.ErrTokenInvalid
	}

	// time based claims are checked below against NowFunc
	parser := jwt.Parser{SkipClaimsValidation: true}
	claims := new(Claims)
	_, err := parser.ParseWithClaims(access, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return iss.key, nil
	})
	if err != nil {
		return nil, core.ErrTokenInvalid
	}
	if claims.Subject == "" || !claims.VerifyAudience(audience, true) {
		return nil, core.ErrTokenInvalid
	}
	if !claims.VerifyExpiresAt(now().Unix(), true) {
		return nil, core.ErrTokenExpired
	}
	return claims, nil
}

// CheckSession returns the live session claims refer to.
func (iss *Issuer) CheckSession(ctx context.Context, claims *Claims) (Session, error) {
	if claims == nil || claims.Id == "" {
		return Session{}, core.ErrTokenInvalid
	}
	sess, err := iss.sessions.GetSession(ctx, claims.Id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, core.ErrTokenInvalid
		}
		return Session{}, errors.Wrap(err, "finding session")
	}
	if sess.AccountID != claims.Subject || sess.IsRevoked() {
		return Session{}, core.ErrTokenInvalid
	}
	if sess.IsExpired(now()) {
		return Session{}, core.ErrTokenExpired
	}
	return sess, nil
}

// ValidateOnly checks an access token and its session without consuming anything.
func (iss *Issuer) ValidateOnly(ctx context.Context, access string) (Session, error) {
	claims, err := iss.ParseAccessToken(access)
	if err != nil {
		return Session{}, err
	}
	return iss.CheckSession(ctx, claims)
}

// Refresh rotates the refresh token of a live session and mints a new access token.
// Persistent sessions are extended; ephemeral ones keep their expiry.
func (iss *Issuer) Refresh(ctx context.Context, refresh string) (Grant, account.Account, error) {
	refresh = core.CleanString(refresh)
	if refresh == "" {
		return Grant{}, account.Account{}, core.ErrTokenInvalid
	}
	sess, err := iss.sessions.GetSessionByRefreshHash(ctx, Hash(refresh))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Grant{}, account.Account{}, core.ErrTokenInvalid
		}
		return Grant{}, account.Account{}, errors.Wrap(err, "finding session")
	}
	ts := now()
	if sess.IsRevoked() {
		return Grant{}, account.Account{}, core.ErrTokenInvalid
	}
	if sess.IsExpired(ts) {
		return Grant{}, account.Account{}, core.ErrTokenExpired
	}

	acc, err := iss.accounts.GetAccountByID(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return Grant{}, account.Account{}, core.ErrTokenInvalid
		}
		return Grant{}, account.Account{}, errors.Wrap(err, "finding account by ID")
	}
	if acc.Disabled {
		_ = iss.sessions.RevokeSession(ctx, sess.ID, ts)
		return Grant{}, account.Account{}, core.ErrAccountDisabled
	}

	newRefresh, err := newOpaqueToken()
	if err != nil {
		return Grant{}, account.Account{}, errors.Wrap(err, "generating refresh token")
	}
	prevHash := sess.RefreshHash
	sess.RefreshHash = Hash(newRefresh)
	if sess.Persistent {
		sess.ExpiresAt = ts.Add(iss.opts.PersistentSessionTTL)
	}
	if err := iss.sessions.RotateSession(ctx, sess, prevHash); err != nil {
		// a concurrent refresh with the same token won
		if errors.Is(err, ErrSessionNotFound) {
			return Grant{}, account.Account{}, core.ErrTokenInvalid
		}
		return Grant{}, account.Account{}, errors.Wrap(err, "rotating session")
	}
	g, err := iss.grant(acc, sess, newRefresh, ts)
	return g, acc, err
}

// Revoke ends a session. Revoking an unknown or already revoked session is a no-op.
func (iss *Issuer) Revoke(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	err := iss.sessions.RevokeSession(ctx, sessionID, now())
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return errors.Wrap(err, "revoking session")
	}
	return nil
}

// RevokeAll ends every session of accountID except exceptSessionID (if not empty).
func (iss *Issuer) RevokeAll(ctx context.Context, accountID, exceptSessionID string) error {
	return errors.Wrap(iss.sessions.RevokeSessions(ctx, accountID, exceptSessionID, now()), "revoking sessions")
}
