package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/events"
	"github.com/tasi-app/auth-service/internal/repository"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

// PasswordHasher is the subset of bcrypt operations the services rely on.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed, plain string) error
	CompareDummy(plain string)
}

// TokenIssuer mints session tokens.
type TokenIssuer interface {
	GenerateToken(identity *domain.Identity) (string, time.Time, error)
}

const outcomeSuccess = "SUCCESS"

// sessionIssuer finishes a successful authentication and records every attempt.
type sessionIssuer struct {
	accounts   repository.AccountRepository
	tokens     TokenIssuer
	attempts   repository.LoginAttemptRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func (s *sessionIssuer) issue(ctx context.Context, account *domain.Account, method domain.LoginMethod, identifier string, meta domain.ClientMeta) (*domain.Session, error) {
	identity := domain.IdentityOf(account)
	token, expiresAt, err := s.tokens.GenerateToken(identity)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, account.Partition, account.ID, now); err != nil {
		s.logger.Warn("last login update failed", zap.String("account_id", account.ID), zap.Error(err))
	} else {
		identity.LastLoginAt = &now
	}

	accountID := account.ID
	s.record(ctx, &domain.LoginAttempt{
		Method:     method,
		Partition:  account.Partition,
		Identifier: identifier,
		AccountID:  &accountID,
		Outcome:    outcomeSuccess,
		ClientIP:   meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: now,
	})

	s.logger.Info("authentication succeeded",
		zap.String("method", string(method)),
		zap.String("account_id", account.ID),
		zap.String("partition", string(account.Partition)),
	)
	return &domain.Session{Token: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

// fail records a rejected attempt and passes cause through unchanged.
func (s *sessionIssuer) fail(ctx context.Context, method domain.LoginMethod, partition domain.Partition, identifier string, account *domain.Account, meta domain.ClientMeta, cause error) error {
	attempt := &domain.LoginAttempt{
		Method:     method,
		Partition:  partition,
		Identifier: identifier,
		Outcome:    apperrors.ToDomainError(cause).Code,
		ClientIP:   meta.IP,
		UserAgent:  meta.UserAgent,
		OccurredAt: s.now().UTC(),
	}
	if account != nil {
		accountID := account.ID
		attempt.AccountID = &accountID
	}
	s.record(ctx, attempt)
	return cause
}

func (s *sessionIssuer) record(ctx context.Context, attempt *domain.LoginAttempt) {
	if s.attempts == nil {
		return
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		s.logger.Warn("login attempt audit failed", zap.String("method", string(attempt.Method)), zap.Error(err))
	}
}

func (s *sessionIssuer) publish(ctx context.Context, event events.Event) {
	publish(ctx, s.dispatcher, s.logger, event)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
