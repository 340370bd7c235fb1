package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MagetoJ/EduKE-sub001/core"
	"github.com/MagetoJ/EduKE-sub001/core/token"
)

type tokenRow struct {
	Hash       string    `db:"hash"`
	AccountID  string    `db:"account_id"`
	Kind       string    `db:"kind"`
	ExpiresAt  time.Time `db:"expires_at"`
	ConsumedAt null.Time `db:"consumed_at"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r tokenRow) token() token.SecurityToken {
	return token.SecurityToken{
		Hash:       r.Hash,
		AccountID:  r.AccountID,
		Kind:       token.Kind(r.Kind),
		ExpiresAt:  r.ExpiresAt.UTC(),
		ConsumedAt: r.ConsumedAt,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type sessionRow struct {
	ID          string    `db:"id"`
	AccountID   string    `db:"account_id"`
	IssuedAt    time.Time `db:"issued_at"`
	ExpiresAt   time.Time `db:"expires_at"`
	Persistent  bool      `db:"persistent"`
	RefreshHash string    `db:"refresh_hash"`
	RevokedAt   null.Time `db:"revoked_at"`
}

func (r sessionRow) session() token.Session {
	return token.Session{
		ID:          r.ID,
		AccountID:   r.AccountID,
		IssuedAt:    r.IssuedAt.UTC(),
		ExpiresAt:   r.ExpiresAt.UTC(),
		Persistent:  r.Persistent,
		RefreshHash: r.RefreshHash,
		RevokedAt:   r.RevokedAt,
	}
}

const (
	tokenColumns   = "hash, account_id, kind, expires_at, consumed_at, created_at"
	sessionColumns = "id, account_id, issued_at, expires_at, persistent, refresh_hash, revoked_at"
)

type tokenRepository struct {
	db *sqlx.DB
}

var (
	_ token.Repository        = (*tokenRepository)(nil)
	_ token.SessionRepository = (*sessionRepository)(nil)
)

func NewTokenRepository(db *sqlx.DB) token.Repository {
	return &tokenRepository{db: db}
}

func (repo *tokenRepository) CreateToken(ctx context.Context, tok token.SecurityToken) error {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO security_tokens ("+tokenColumns+") VALUES (:hash, :account_id, :kind, :expires_at, :consumed_at, :created_at)",
		tokenRow{
			Hash:       tok.Hash,
			AccountID:  tok.AccountID,
			Kind:       string(tok.Kind),
			ExpiresAt:  tok.ExpiresAt.UTC(),
			ConsumedAt: tok.ConsumedAt,
			CreatedAt:  tok.CreatedAt.UTC(),
		})
	return errors.Wrap(err, "inserting security token")
}

// ConsumeToken marks the token consumed. The final UPDATE only matches an unconsumed row,
// so of two concurrent consumers exactly one wins and the other gets AlreadyUsed.
func (repo *tokenRepository) ConsumeToken(ctx context.Context, hash string, kind token.Kind, now time.Time) (token.SecurityToken, error) {
	var row tokenRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+tokenColumns+" FROM security_tokens WHERE hash = ?"), hash)
	if err != nil {
		return token.SecurityToken{}, trapNoRowsErr(err, core.ErrTokenInvalid, "finding security token")
	}

	tok := row.token()
	switch {
	case tok.Kind != kind:
		return token.SecurityToken{}, core.ErrTokenInvalid
	case tok.IsConsumed():
		return token.SecurityToken{}, core.ErrTokenAlreadyUsed
	case tok.IsExpired(now):
		return token.SecurityToken{}, core.ErrTokenExpired
	}

	res, err := repo.db.ExecContext(ctx,
		repo.db.Rebind("UPDATE security_tokens SET consumed_at = ? WHERE hash = ? AND kind = ? AND consumed_at IS NULL"),
		now.UTC(), hash, string(kind))
	if err != nil {
		return token.SecurityToken{}, errors.Wrap(err, "consuming security token")
	}
	if err = checkAffected(res, core.ErrTokenAlreadyUsed); err != nil {
		return token.SecurityToken{}, err
	}
	tok.ConsumedAt = null.TimeFrom(now.UTC())
	return tok, nil
}

func (repo *tokenRepository) InvalidateTokens(ctx context.Context, accountID string, kind token.Kind, now time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		repo.db.Rebind("UPDATE security_tokens SET consumed_at = ? WHERE account_id = ? AND kind = ? AND consumed_at IS NULL"),
		now.UTC(), accountID, string(kind))
	return errors.Wrap(err, "invalidating security tokens")
}

type sessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) token.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess token.Session) error {
	_, err := repo.db.NamedExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (:id, :account_id, :issued_at, :expires_at, :persistent, :refresh_hash, :revoked_at)",
		sessionRow{
			ID:          sess.ID,
			AccountID:   sess.AccountID,
			IssuedAt:    sess.IssuedAt.UTC(),
			ExpiresAt:   sess.ExpiresAt.UTC(),
			Persistent:  sess.Persistent,
			RefreshHash: sess.RefreshHash,
			RevokedAt:   sess.RevokedAt,
		})
	return errors.Wrap(err, "inserting session")
}

func (repo *sessionRepository) getSession(ctx context.Context, where, arg string) (token.Session, error) {
	var row sessionRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT "+sessionColumns+" FROM sessions WHERE "+where+" = ?"), arg)
	if err != nil {
		return token.Session{}, trapNoRowsErr(err, token.ErrSessionNotFound, "finding session")
	}
	return row.session(), nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id string) (token.Session, error) {
	return repo.getSession(ctx, "id", id)
}

func (repo *sessionRepository) GetSessionByRefreshHash(ctx context.Context, hash string) (token.Session, error) {
	return repo.getSession(ctx, "refresh_hash", hash)
}

func (repo *sessionRepository) RotateSession(ctx context.Context, sess token.Session, prevHash string) error {
	res, err := repo.db.ExecContext(ctx,
		repo.db.Rebind(`UPDATE sessions SET refresh_hash = ?, expires_at = ?
			WHERE id = ? AND refresh_hash = ? AND revoked_at IS NULL`),
		sess.RefreshHash, sess.ExpiresAt.UTC(), sess.ID, prevHash)
	if err != nil {
		return errors.Wrap(err, "rotating session")
	}
	return checkAffected(res, token.ErrSessionNotFound)
}

func (repo *sessionRepository) RevokeSession(ctx context.Context, id string, now time.Time) error {
	if _, err := repo.GetSession(ctx, id); err != nil {
		return err
	}
	_, err := repo.db.ExecContext(ctx,
		repo.db.Rebind("UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL"), now.UTC(), id)
	return errors.Wrap(err, "revoking session")
}

func (repo *sessionRepository) RevokeSessions(ctx context.Context, accountID, exceptID string, now time.Time) error {
	_, err := repo.db.ExecContext(ctx,
		repo.db.Rebind("UPDATE sessions SET revoked_at = ? WHERE account_id = ? AND id <> ? AND revoked_at IS NULL"),
		now.UTC(), accountID, exceptID)
	return errors.Wrap(err, "revoking sessions")
}
