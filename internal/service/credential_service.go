package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/auth"
	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/events"
	"github.com/tasi-app/auth-service/internal/repository"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

// CredentialService validates email/password pairs against one account partition.
type CredentialService struct {
	sessionIssuer
	hasher PasswordHasher
}

// CredentialDependencies encapsulates requirements for the credential service.
type CredentialDependencies struct {
	Accounts   repository.AccountRepository
	Attempts   repository.LoginAttemptRepository
	Hasher     PasswordHasher
	Tokens     TokenIssuer
	Dispatcher events.Dispatcher
}

// NewCredentialService builds the service.
func NewCredentialService(deps CredentialDependencies, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		sessionIssuer: sessionIssuer{
			accounts:   deps.Accounts,
			tokens:     deps.Tokens,
			attempts:   deps.Attempts,
			dispatcher: deps.Dispatcher,
			logger:     logger,
			now:        time.Now,
		},
		hasher: deps.Hasher,
	}
}

// LoginInput carries a password login request.
type LoginInput struct {
	Partition domain.Partition
	Email     string
	Password  string
}

// Validate checks the credential and the account's eligibility. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *CredentialService) Validate(ctx context.Context, partition domain.Partition, email, password string) (*domain.Identity, error) {
	account, err := s.validate(ctx, partition, email, password)
	if err != nil {
		return nil, err
	}
	return domain.IdentityOf(account), nil
}

func (s *CredentialService) validate(ctx context.Context, partition domain.Partition, email, password string) (*domain.Account, error) {
	email = domain.NormalizeEmail(email)
	details := map[string]any{}
	if !partition.Valid() {
		details["partition"] = "must be one of user, customer, company"
	}
	if email == "" {
		details["email"] = "required"
	}
	if strings.TrimSpace(password) == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid login request", details)
	}

	account, err := s.accounts.GetByEmail(ctx, partition, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.CompareDummy(password)
			s.logger.Info("login rejected",
				zap.String("reason", "account_not_found"),
				zap.String("partition", string(partition)),
			)
			return nil, apperrors.NewInvalidCredential()
		}
		return nil, apperrors.NewDependencyError(err)
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash unusable", zap.String("account_id", account.ID), zap.Error(err))
		}
		s.logger.Info("login rejected",
			zap.String("reason", "password_mismatch"),
			zap.String("account_id", account.ID),
		)
		return account, apperrors.NewInvalidCredential()
	}

	if ok, msg := domain.Eligibility(partition, account.Status); !ok {
		s.logger.Info("login rejected",
			zap.String("reason", "not_eligible"),
			zap.String("account_id", account.ID),
			zap.String("status", string(account.Status)),
		)
		return account, apperrors.NewAccountNotEligible(msg, string(account.Status))
	}
	return account, nil
}

// Login validates the credential and opens a session.
func (s *CredentialService) Login(ctx context.Context, in LoginInput, meta domain.ClientMeta) (*domain.Session, error) {
	identifier := domain.NormalizeEmail(in.Email)
	account, err := s.validate(ctx, in.Partition, in.Email, in.Password)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeValidation) {
			return nil, err
		}
		s.publishFailure(ctx, in.Partition, identifier, account, meta, err)
		return nil, s.fail(ctx, domain.LoginMethodPassword, in.Partition, identifier, account, meta, err)
	}

	session, err := s.issue(ctx, account, domain.LoginMethodPassword, identifier, meta)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewEvent(events.EventLoginSucceeded, account.ID, events.LoginPayload{
		Method:    domain.LoginMethodPassword,
		Partition: account.Partition,
		AccountID: account.ID,
		Outcome:   outcomeSuccess,
		ClientIP:  meta.IP,
	}))
	return session, nil
}

func (s *CredentialService) publishFailure(ctx context.Context, partition domain.Partition, identifier string, account *domain.Account, meta domain.ClientMeta, cause error) {
	payload := events.LoginPayload{
		Method:    domain.LoginMethodPassword,
		Partition: partition,
		Outcome:   apperrors.ToDomainError(cause).Code,
		ClientIP:  meta.IP,
	}
	subject := identifier
	if account != nil {
		payload.AccountID = account.ID
		subject = account.ID
	}
	s.publish(ctx, events.NewEvent(events.EventLoginFailed, subject, payload))
}
