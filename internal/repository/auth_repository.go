package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-presence-api/internal/models"
	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// AccountRepository manages provider accounts.
type AccountRepository struct {
	*Table[models.Account]
}

func NewAccountRepository(e *engine) *AccountRepository {
	return &AccountRepository{Table: newTable[models.Account](e, ModelAccounts)}
}

// FindByProvider returns the account linked to a provider identity.
func (r *AccountRepository) FindByProvider(ctx context.Context, provider, providerAccountID string) (*models.Account, error) {
	return r.FindFirst(ctx, query.FindArgs{
		Where: query.Where{"provider": provider, "providerAccountId": providerAccountID},
	})
}

// SessionRepository manages login sessions.
type SessionRepository struct {
	*Table[models.Session]
}

func NewSessionRepository(e *engine) *SessionRepository {
	return &SessionRepository{Table: newTable[models.Session](e, ModelSessions)}
}

// FindByToken returns the session carrying token, or nil.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	return r.FindFirst(ctx, query.FindArgs{Where: query.Where{"sessionToken": token}})
}

// DeleteExpired removes sessions that expired before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DeleteMany(ctx, query.DeleteManyArgs{Where: query.Where{"expires": query.Lt(now)}})
	return res.Count, err
}

// VerificationTokenRepository manages one-time verification tokens.
type VerificationTokenRepository struct {
	*Table[models.VerificationToken]
}

func NewVerificationTokenRepository(e *engine) *VerificationTokenRepository {
	return &VerificationTokenRepository{Table: newTable[models.VerificationToken](e, ModelVerificationToken)}
}

// Issue stores a fresh random token for identifier valid for ttl.
func (r *VerificationTokenRepository) Issue(ctx context.Context, identifier string, ttl time.Duration) (*models.VerificationToken, error) {
	return r.Create(ctx, query.CreateArgs{Data: query.Data{
		"identifier": identifier,
		"token":      uuid.NewString(),
		"expires":    r.engine.now().Add(ttl),
	}})
}

// Consume deletes the token and returns it. Expired tokens are deleted too
// but reported as not found.
func (r *VerificationTokenRepository) Consume(ctx context.Context, identifier, token string) (*models.VerificationToken, error) {
	vt, err := r.Delete(ctx, query.DeleteArgs{Where: query.Where{
		"identifier_token": query.Where{"identifier": identifier, "token": token},
	}})
	if err != nil {
		return nil, err
	}
	if !r.engine.now().Before(vt.Expires) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "verification token expired")
	}
	return vt, nil
}

// DeleteExpired removes tokens that expired before now.
func (r *VerificationTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DeleteMany(ctx, query.DeleteManyArgs{Where: query.Where{"expires": query.Lt(now)}})
	return res.Count, err
}
