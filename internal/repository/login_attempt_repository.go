package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tasi-app/auth-service/internal/domain"
)

// LoginAttemptRepository persists the authentication audit trail.
type LoginAttemptRepository interface {
	Insert(ctx context.Context, attempt *domain.LoginAttempt) error
}

type loginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository returns a Postgres-backed repository, or a no-op one when pool is nil.
func NewLoginAttemptRepository(pool *pgxpool.Pool) LoginAttemptRepository {
	if pool == nil {
		return nopLoginAttemptRepository{}
	}
	return &loginAttemptRepository{pool: pool}
}

func (r *loginAttemptRepository) Insert(ctx context.Context, attempt *domain.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.OccurredAt.IsZero() {
		attempt.OccurredAt = time.Now().UTC()
	}

	const query = `
        INSERT INTO login_attempts (id, method, partition, identifier, account_id, outcome, client_ip, user_agent, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		string(attempt.Method),
		string(attempt.Partition),
		attempt.Identifier,
		attempt.AccountID,
		attempt.Outcome,
		attempt.ClientIP,
		attempt.UserAgent,
		attempt.OccurredAt,
	)
	return err
}

type nopLoginAttemptRepository struct{}

func (nopLoginAttemptRepository) Insert(context.Context, *domain.LoginAttempt) error { return nil }
