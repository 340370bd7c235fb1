package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/token"
)

type tokenRepository struct {
	db *DB
}

var (
	_ token.Repository        = (*tokenRepository)(nil)
	_ token.SessionRepository = (*sessionRepository)(nil)
)

func NewTokenRepository(db *DB) token.Repository {
	return &tokenRepository{db: db}
}

func (repo *tokenRepository) CreateToken(_ context.Context, tok token.SecurityToken) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tok.Token = "" // never stored
	repo.db.tokens[tok.Hash] = &tok
	return nil
}

func (repo *tokenRepository) ConsumeToken(_ context.Context, hash string, kind token.Kind, now time.Time) (token.SecurityToken, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	tok, ok := repo.db.tokens[hash]
	switch {
	case !ok || tok.Kind != kind:
		return token.SecurityToken{}, core.ErrTokenInvalid
	case tok.IsConsumed():
		return token.SecurityToken{}, core.ErrTokenAlreadyUsed
	case tok.IsExpired(now):
		return token.SecurityToken{}, core.ErrTokenExpired
	}
	tok.ConsumedAt = null.TimeFrom(now)
	return *tok, nil
}

func (repo *tokenRepository) InvalidateTokens(_ context.Context, accountID string, kind token.Kind, now time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, tok := range repo.db.tokens {
		if tok.AccountID == accountID && tok.Kind == kind && !tok.IsConsumed() {
			tok.ConsumedAt = null.TimeFrom(now)
		}
	}
	return nil
}

type sessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) token.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess token.Session) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.sessions[sess.ID] = &sess
	return nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (token.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sess, ok := repo.db.sessions[id]; ok {
		return *sess, nil
	}
	return token.Session{}, token.ErrSessionNotFound
}

func (repo *sessionRepository) GetSessionByRefreshHash(_ context.Context, hash string) (token.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, sess := range repo.db.sessions {
		if sess.RefreshHash == hash {
			return *sess, nil
		}
	}
	return token.Session{}, token.ErrSessionNotFound
}

func (repo *sessionRepository) RotateSession(_ context.Context, sess token.Session, prevHash string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.sessions[sess.ID]
	if !ok || orig.RefreshHash != prevHash || orig.IsRevoked() {
		return token.ErrSessionNotFound
	}
	orig.RefreshHash = sess.RefreshHash
	orig.ExpiresAt = sess.ExpiresAt
	return nil
}

func (repo *sessionRepository) RevokeSession(_ context.Context, id string, now time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.sessions[id]
	if !ok {
		return token.ErrSessionNotFound
	}
	if !sess.IsRevoked() {
		sess.RevokedAt = null.TimeFrom(now)
	}
	return nil
}

func (repo *sessionRepository) RevokeSessions(_ context.Context, accountID, exceptID string, now time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, sess := range repo.db.sessions {
		if sess.AccountID == accountID && id != exceptID && !sess.IsRevoked() {
			sess.RevokedAt = null.TimeFrom(now)
		}
	}
	return nil
}
