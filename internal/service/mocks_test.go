package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/tasi-app/auth-service/internal/auth"
	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/events"
	"github.com/tasi-app/auth-service/internal/repository"
)

type mockAccountRepo struct {
	CreateFunc         func(ctx context.Context, account *domain.Account) error
	GetByIDFunc        func(ctx context.Context, partition domain.Partition, id string) (*domain.Account, error)
	GetByEmailFunc     func(ctx context.Context, partition domain.Partition, email string) (*domain.Account, error)
	GetByPhoneFunc     func(ctx context.Context, partition domain.Partition, phone string) (*domain.Account, error)
	UpdateStatusFunc   func(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) error
	UpdateRolesFunc    func(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) error
	TouchLastLoginFunc func(ctx context.Context, partition domain.Partition, id string, at time.Time) error
}

func (m *mockAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil
}

func (m *mockAccountRepo) GetByID(ctx context.Context, partition domain.Partition, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, partition, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountRepo) GetByEmail(ctx context.Context, partition domain.Partition, email string) (*domain.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, partition, email)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountRepo) GetByPhone(ctx context.Context, partition domain.Partition, phone string) (*domain.Account, error) {
	if m.GetByPhoneFunc != nil {
		return m.GetByPhoneFunc(ctx, partition, phone)
	}
	return nil, repository.ErrNotFound
}

func (m *mockAccountRepo) UpdateStatus(ctx context.Context, partition domain.Partition, id string, status domain.AccountStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, partition, id, status)
	}
	return nil
}

func (m *mockAccountRepo) UpdateRoles(ctx context.Context, partition domain.Partition, id string, roles []domain.Role) error {
	if m.UpdateRolesFunc != nil {
		return m.UpdateRolesFunc(ctx, partition, id, roles)
	}
	return nil
}

func (m *mockAccountRepo) TouchLastLogin(ctx context.Context, partition domain.Partition, id string, at time.Time) error {
	if m.TouchLastLoginFunc != nil {
		return m.TouchLastLoginFunc(ctx, partition, id, at)
	}
	return nil
}

// accountsRepo serves lookups from a fixed set of accounts.
func accountsRepo(accounts ...*domain.Account) *mockAccountRepo {
	copyOf := func(a *domain.Account) *domain.Account {
		c := *a
		c.Roles = append([]domain.Role(nil), a.Roles...)
		return &c
	}
	return &mockAccountRepo{
		GetByIDFunc: func(_ context.Context, p domain.Partition, id string) (*domain.Account, error) {
			for _, a := range accounts {
				if a.Partition == p && a.ID == id {
					return copyOf(a), nil
				}
			}
			return nil, repository.ErrNotFound
		},
		GetByEmailFunc: func(_ context.Context, p domain.Partition, email string) (*domain.Account, error) {
			for _, a := range accounts {
				if a.Partition == p && a.Email == email {
					return copyOf(a), nil
				}
			}
			return nil, repository.ErrNotFound
		},
		GetByPhoneFunc: func(_ context.Context, p domain.Partition, phone string) (*domain.Account, error) {
			for _, a := range accounts {
				if a.Partition == p && a.Phone == phone {
					return copyOf(a), nil
				}
			}
			return nil, repository.ErrNotFound
		},
	}
}

// memoryCodeRepo mirrors the conditional update of the Mongo implementation under a mutex.
type memoryCodeRepo struct {
	mu    sync.Mutex
	codes []*domain.OneTimeCode
	used  []string
	seq   int
}

func (r *memoryCodeRepo) Create(_ context.Context, code *domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	code.ID = "code-" + strconv.Itoa(r.seq)
	c := *code
	r.codes = append(r.codes, &c)
	return nil
}

func (r *memoryCodeRepo) Consume(_ context.Context, phone, code string, now time.Time) (*domain.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]*domain.OneTimeCode, 0, len(r.codes))
	for _, c := range r.codes {
		if c.Phone == phone && c.Code == code && c.Usable(now) {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.After(candidates[j].CreatedAt) })

	match := candidates[0]
	consumedAt := now
	match.Consumed = true
	match.ConsumedAt = &consumedAt
	out := *match
	return &out, nil
}

func (r *memoryCodeRepo) RecordUse(_ context.Context, code *domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used = append(r.used, code.ID)
	return nil
}

func (r *memoryCodeRepo) latest() *domain.OneTimeCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.codes) == 0 {
		return nil
	}
	return r.codes[len(r.codes)-1]
}

type recordingAttempts struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
}

func (r *recordingAttempts) Insert(_ context.Context, attempt *domain.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, *attempt)
	return nil
}

func (r *recordingAttempts) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.attempts))
	for i, a := range r.attempts {
		out[i] = a.Outcome
	}
	return out
}

type stubSMS struct {
	mu       sync.Mutex
	messages map[string][]string
	err      error
}

func (s *stubSMS) SendSMS(_ context.Context, to, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messages == nil {
		s.messages = map[string][]string{}
	}
	s.messages[to] = append(s.messages[to], message)
	return s.err
}

func (s *stubSMS) sent(to string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages[to]...)
}

// countingHasher wraps the bcrypt hasher and counts comparisons.
type countingHasher struct {
	*auth.PasswordHasher
	mu       sync.Mutex
	compares int
	dummies  int
}

func newCountingHasher(t *testing.T) *countingHasher {
	t.Helper()
	h, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return &countingHasher{PasswordHasher: h}
}

func (h *countingHasher) Compare(hashed, plain string) error {
	h.mu.Lock()
	h.compares++
	h.mu.Unlock()
	return h.PasswordHasher.Compare(hashed, plain)
}

func (h *countingHasher) CompareDummy(plain string) {
	h.mu.Lock()
	h.dummies++
	h.mu.Unlock()
	h.PasswordHasher.CompareDummy(plain)
}

func (h *countingHasher) mustHash(t *testing.T, password string) string {
	t.Helper()
	hashed, err := h.Hash(password)
	require.NoError(t, err)
	return hashed
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newEventRecorder() (*eventRecorder, events.Dispatcher) {
	rec := &eventRecorder{}
	d := events.NewInMemoryDispatcher()
	d.SubscribeAll(func(_ context.Context, e events.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, e)
		return nil
	})
	return rec, d
}

func (r *eventRecorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func testTokens() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", "tasi-auth", 7*24*time.Hour)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
