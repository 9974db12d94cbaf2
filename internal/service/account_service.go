package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/events"
	"github.com/tasi-app/auth-service/internal/repository"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

const minPasswordLength = 8

// AccountService administers accounts across partitions.
type AccountService struct {
	accounts   repository.AccountRepository
	hasher     PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(accounts repository.AccountRepository, hasher PasswordHasher, dispatcher events.Dispatcher, logger *zap.Logger) *AccountService {
	return &AccountService{accounts: accounts, hasher: hasher, dispatcher: dispatcher, logger: logger}
}

// CreateAccountInput describes a new account. Empty Roles and Status fall back to partition defaults.
type CreateAccountInput struct {
	Partition domain.Partition
	Email     string
	Password  string
	Name      string
	Phone     string
	Roles     []domain.Role
	Status    domain.AccountStatus
	Profile   domain.Profile
}

func defaultStatus(p domain.Partition) domain.AccountStatus {
	if p == domain.PartitionCompany {
		return domain.AccountStatusPending
	}
	return domain.AccountStatusActive
}

// Create registers a new account.
func (s *AccountService) Create(ctx context.Context, in CreateAccountInput) (*domain.Identity, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	in.Phone = domain.NormalizePhone(in.Phone)
	in.Name = strings.TrimSpace(in.Name)
	if len(in.Roles) == 0 {
		in.Roles = domain.DefaultRoles(in.Partition)
	}
	if in.Status == "" {
		in.Status = defaultStatus(in.Partition)
	}

	details := map[string]any{}
	if !in.Partition.Valid() {
		details["partition"] = "must be one of user, customer, company"
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		details["email"] = "must be a valid email"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = "must be at least 8 characters"
	}
	if in.Phone != "" && !phonePattern.MatchString(in.Phone) {
		details["phone"] = "must be 8 to 20 digits with an optional leading +"
	}
	if !in.Status.Valid() {
		details["status"] = "unknown status"
	}
	roles, err := normalizeRoles(in.Roles)
	if err != nil {
		details["roles"] = err.Error()
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid account", details)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	account := &domain.Account{
		Partition:    in.Partition,
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Phone:        in.Phone,
		Roles:        roles,
		Status:       in.Status,
		Profile:      in.Profile,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("account already exists", map[string]any{"email": in.Email, "partition": in.Partition})
		}
		return nil, apperrors.NewDependencyError(err)
	}

	s.logger.Info("account created", zap.String("account_id", account.ID), zap.String("partition", string(account.Partition)))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventAccountCreated, account.ID, events.AccountCreatedPayload{
		Partition: account.Partition,
		Email:     account.Email,
		Roles:     account.Roles,
		Status:    account.Status,
	}))
	return domain.IdentityOf(account), nil
}

// Get loads one account.
func (s *AccountService) Get(ctx context.Context, partition domain.Partition, id string) (*domain.Identity, error) {
	account, err := s.load(ctx, partition, id)
	if err != nil {
		return nil, err
	}
	return domain.IdentityOf(account), nil
}

// SetStatus moves an account to status.
func (s *AccountService) SetStatus(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) (*domain.Identity, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": "must be one of ACTIVE, PENDING, SUSPENDED, REJECTED"})
	}
	account, err := s.load(ctx, partition, id)
	if err != nil {
		return nil, err
	}
	old := account.Status
	if old == status {
		return domain.IdentityOf(account), nil
	}

	if err := s.accounts.UpdateStatus(ctx, partition, id, status); err != nil {
		return nil, s.mapWriteErr(err, partition, id)
	}
	account.Status = status

	s.logger.Info("account status changed", zap.String("account_id", id), zap.String("from", string(old)), zap.String("to", string(status)))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventAccountStatusChange, id, events.AccountStatusChangedPayload{
		Partition: partition,
		OldStatus: old,
		NewStatus: status,
	}))
	return domain.IdentityOf(account), nil
}

// SetRoles replaces the account's role set.
func (s *AccountService) SetRoles(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) (*domain.Identity, error) {
	normalized, err := normalizeRoles(roles)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid roles", map[string]any{"roles": err.Error()})
	}
	account, err := s.load(ctx, partition, id)
	if err != nil {
		return nil, err
	}
	old := account.Roles

	if err := s.accounts.UpdateRoles(ctx, partition, id, normalized); err != nil {
		return nil, s.mapWriteErr(err, partition, id)
	}
	account.Roles = normalized

	s.logger.Info("account roles changed", zap.String("account_id", id), zap.Strings("roles", domain.RoleStrings(normalized)))
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventAccountRolesChange, id, events.AccountRolesChangedPayload{
		Partition: partition,
		OldRoles:  old,
		NewRoles:  normalized,
	}))
	return domain.IdentityOf(account), nil
}

// EnsureSeedAdmin creates the bootstrap dashboard admin unless the email is already registered.
// It reports whether an account was created.
func (s *AccountService) EnsureSeedAdmin(ctx context.Context, email, password, name string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}

	_, err := s.accounts.GetByEmail(ctx, domain.PartitionUser, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, apperrors.NewDependencyError(err)
	}

	if name == "" {
		name = "Administrator"
	}
	_, err = s.Create(ctx, CreateAccountInput{
		Partition: domain.PartitionUser,
		Email:     email,
		Password:  password,
		Name:      name,
		Roles:     []domain.Role{domain.RoleAdmin},
		Status:    domain.AccountStatusActive,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AccountService) load(ctx context.Context, partition domain.Partition, id string) (*domain.Account, error) {
	if !partition.Valid() {
		return nil, apperrors.NewValidationError("invalid partition", map[string]any{"partition": "must be one of user, customer, company"})
	}
	account, err := s.accounts.GetByID(ctx, partition, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("account", map[string]any{"id": id, "partition": partition})
		}
		return nil, apperrors.NewDependencyError(err)
	}
	return account, nil
}

func (s *AccountService) mapWriteErr(err error, partition domain.Partition, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("account", map[string]any{"id": id, "partition": partition})
	}
	return apperrors.NewDependencyError(err)
}

// normalizeRoles rejects unknown tags, drops duplicates and requires at least one role.
func normalizeRoles(roles []domain.Role) ([]domain.Role, error) {
	if len(roles) == 0 {
		return nil, errors.New("at least one role is required")
	}
	seen := make(map[domain.Role]struct{}, len(roles))
	out := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		r = domain.Role(strings.ToLower(strings.TrimSpace(string(r))))
		if !r.Valid() {
			return nil, errors.New("unknown role " + string(r))
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}
