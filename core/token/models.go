package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/volatiletech/null/v8"

	"github.com/MagetoJ/EduKE-sub001/core/account"
)

// Kind scopes a SecurityToken to one purpose. A token is only ever accepted for its own kind.
type Kind string

const (
	KindPasswordReset     Kind = "password_reset"
	KindEmailVerification Kind = "email_verification"
)

func (k Kind) IsValid() bool {
	return k == KindPasswordReset || k == KindEmailVerification
}

// SecurityToken is a single-use credential delivered out of band (by email).
// Only its sha256 Hash is stored; the plaintext Token is set on issue and never persisted.
type SecurityToken struct {
	Token      string
	Hash       string
	AccountID  string
	Kind       Kind
	ExpiresAt  time.Time
	ConsumedAt null.Time
	CreatedAt  time.Time
}

func (t SecurityToken) IsConsumed() bool              { return t.ConsumedAt.Valid }
func (t SecurityToken) IsExpired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// Session is an authenticated login. Persistent sessions (remember me) slide on refresh;
// ephemeral ones keep their original expiry.
type Session struct {
	ID          string
	AccountID   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Persistent  bool
	RefreshHash string
	RevokedAt   null.Time
}

func (s Session) IsRevoked() bool               { return s.RevokedAt.Valid }
func (s Session) IsExpired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Claims are the access token claims. Subject is the account ID and Id the session ID.
// Role is informational only: authorization always re-reads the account.
type Claims struct {
	jwt.StandardClaims
	TenantID string       `json:"tid,omitempty"`
	Role     account.Role `json:"role,omitempty"`
}

// Grant is what a client receives when a session starts or is refreshed.
type Grant struct {
	SessionID        string    `json:"-"`
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	SessionExpiresAt time.Time `json:"sessionExpiresAt"`
	Persistent       bool      `json:"persistent"`
}

var (
	ErrNotFound        = errors.New("token not found")
	ErrSessionNotFound = errors.New("session not found")
)

type (
	// Repository stores security tokens.
	Repository interface {
		CreateToken(ctx context.Context, tok SecurityToken) error
		// ConsumeToken marks the token with hash as consumed at now, if and only if it is of kind,
		// not yet consumed and not expired. Check and mark happen atomically. On refusal it
		// returns core.ErrTokenAlreadyUsed, core.ErrTokenExpired or core.ErrTokenInvalid, checked in that order.
		ConsumeToken(ctx context.Context, hash string, kind Kind, now time.Time) (SecurityToken, error)
		// InvalidateTokens consumes every outstanding token of kind issued to accountID.
		InvalidateTokens(ctx context.Context, accountID string, kind Kind, now time.Time) error
	}

	// SessionRepository stores sessions.
	SessionRepository interface {
		CreateSession(ctx context.Context, sess Session) error
		GetSession(ctx context.Context, id string) (Session, error)
		GetSessionByRefreshHash(ctx context.Context, hash string) (Session, error)
		// RotateSession stores sess' RefreshHash and ExpiresAt if the stored refresh hash is
		// still prevHash and the session is not revoked. Otherwise it returns ErrSessionNotFound.
		RotateSession(ctx context.Context, sess Session, prevHash string) error
		// RevokeSessions revokes the live sessions of accountID except exceptID (if not empty).
		RevokeSessions(ctx context.Context, accountID, exceptID string, now time.Time) error
		RevokeSession(ctx context.Context, id string, now time.Time) error
	}

	// AccountGetter is the part of the credential store the issuer needs.
	AccountGetter interface {
		GetAccountByID(ctx context.Context, id string) (account.Account, error)
	}
)

// Hash returns the hex sha256 of a plaintext token, which is how tokens are looked up.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// newOpaqueToken returns 32 random bytes, hex encoded.
func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
