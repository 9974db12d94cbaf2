package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/config"
	"github.com/tasi-app/auth-service/internal/delivery"
	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/events"
	"github.com/tasi-app/auth-service/internal/repository"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,20}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// OTPService issues and verifies phone-bound one-time codes.
type OTPService struct {
	sessionIssuer
	codes    repository.OneTimeCodeRepository
	throttle repository.OTPThrottle
	sms      delivery.SMSSender
	cfg      config.OTPConfig
	generate func() (string, error)
}

// OTPDependencies encapsulates requirements for the OTP service.
type OTPDependencies struct {
	Accounts   repository.AccountRepository
	Codes      repository.OneTimeCodeRepository
	Throttle   repository.OTPThrottle
	Attempts   repository.LoginAttemptRepository
	SMS        delivery.SMSSender
	Tokens     TokenIssuer
	Dispatcher events.Dispatcher
}

// NewOTPService builds the service.
func NewOTPService(cfg config.OTPConfig, deps OTPDependencies, logger *zap.Logger) *OTPService {
	return &OTPService{
		sessionIssuer: sessionIssuer{
			accounts:   deps.Accounts,
			tokens:     deps.Tokens,
			attempts:   deps.Attempts,
			dispatcher: deps.Dispatcher,
			logger:     logger,
			now:        time.Now,
		},
		codes:    deps.Codes,
		throttle: deps.Throttle,
		sms:      deps.SMS,
		cfg:      cfg,
		generate: GenerateCode,
	}
}

// GenerateCode draws a code uniformly from [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(domain.OTPCodeMax-domain.OTPCodeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+domain.OTPCodeMin), nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return apperrors.NewValidationError("phone is required", map[string]any{"phone": "required"})
	}
	if !phonePattern.MatchString(phone) {
		return apperrors.NewValidationError("invalid phone number", map[string]any{"phone": "must be 8 to 20 digits with an optional leading +"})
	}
	return nil
}

func retryAfter(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Issue generates a code for the account owning phone, stores it and sends it by SMS.
// The code is never part of the result.
func (s *OTPService) Issue(ctx context.Context, phone string) (*domain.OTPIssue, error) {
	phone = domain.NormalizePhone(phone)
	if err := validatePhone(phone); err != nil {
		return nil, err
	}

	acquired, wait, err := s.throttle.AcquireIssue(ctx, phone, s.cfg.ResendCooldown())
	if err != nil {
		return nil, apperrors.NewDependencyError(err)
	}
	if !acquired {
		s.logger.Info("otp issue throttled", zap.String("phone", phone), zap.Duration("wait", wait))
		return nil, apperrors.NewRateLimited("a code was sent recently, please wait before requesting another", retryAfter(wait))
	}

	issued, err := s.createAndSend(ctx, phone)
	if err != nil {
		if relErr := s.throttle.ReleaseIssue(ctx, phone); relErr != nil {
			s.logger.Warn("otp cooldown release failed", zap.String("phone", phone), zap.Error(relErr))
		}
		return nil, err
	}
	return issued, nil
}

func (s *OTPService) createAndSend(ctx context.Context, phone string) (*domain.OTPIssue, error) {
	account, err := s.findByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("otp issue rejected", zap.String("reason", "account_not_found"), zap.String("phone", phone))
			return nil, apperrors.NewNotFound("account", map[string]any{"phone": phone})
		}
		return nil, apperrors.NewDependencyError(err)
	}

	code, err := s.generate()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now().UTC()
	otp := &domain.OneTimeCode{
		AccountID: account.ID,
		Partition: account.Partition,
		Phone:     phone,
		Code:      code,
		ExpiresAt: now.Add(s.cfg.TTL()),
		CreatedAt: now,
	}
	if err := s.codes.Create(ctx, otp); err != nil {
		return nil, apperrors.NewDependencyError(err)
	}

	delivered := true
	message := fmt.Sprintf("Taşı doğrulama kodunuz: %s. Kod %d dakika geçerlidir.", code, int(s.cfg.TTL().Minutes()))
	if err := s.sms.SendSMS(ctx, phone, message); err != nil {
		delivered = false
		s.logger.Warn("otp delivery failed", zap.String("phone", phone), zap.String("account_id", account.ID), zap.Error(err))
	}

	s.logger.Info("otp issued", zap.String("account_id", account.ID), zap.String("phone", phone), zap.Time("expires_at", otp.ExpiresAt))
	s.publish(ctx, events.NewEvent(events.EventOTPIssued, account.ID, events.OTPIssuedPayload{
		AccountID: account.ID,
		Partition: account.Partition,
		Phone:     phone,
		ExpiresAt: otp.ExpiresAt,
		Delivered: delivered,
	}))
	return &domain.OTPIssue{Phone: phone, ExpiresAt: otp.ExpiresAt}, nil
}

// findByPhone walks the partitions in lookup order and returns the first match.
func (s *OTPService) findByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	for _, partition := range domain.Partitions {
		account, err := s.accounts.GetByPhone(ctx, partition, phone)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, repository.ErrNotFound
}

// Verify consumes a matching code and opens a session for its account. A code can succeed at
// most once, even under concurrent verification.
func (s *OTPService) Verify(ctx context.Context, phone, code string, meta domain.ClientMeta) (*domain.Session, error) {
	phone = domain.NormalizePhone(phone)
	if err := validatePhone(phone); err != nil {
		return nil, err
	}
	if !codePattern.MatchString(code) {
		return nil, apperrors.NewValidationError("invalid code", map[string]any{"code": "must be exactly 6 digits"})
	}

	// Attempts are counted before the code store is queried.
	var attempts int64
	if s.cfg.MaxFailedAttempts > 0 {
		n, err := s.throttle.ReserveAttempt(ctx, phone, s.cfg.FailedWindow())
		if err != nil {
			return nil, apperrors.NewDependencyError(err)
		}
		if n > int64(s.cfg.MaxFailedAttempts) {
			s.logger.Warn("otp verify locked", zap.String("phone", phone), zap.Int64("attempts", n))
			err := apperrors.NewRateLimited("too many failed attempts, request a new code later", retryAfter(s.cfg.FailedWindow()))
			return nil, s.fail(ctx, domain.LoginMethodOTP, "", phone, nil, meta, err)
		}
		attempts = n
	}

	consumed, err := s.codes.Consume(ctx, phone, code, s.now())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewDependencyError(err)
		}
		return nil, s.rejectCode(ctx, phone, attempts, meta)
	}

	if err := s.codes.RecordUse(ctx, consumed); err != nil {
		s.logger.Warn("used otp marker insert failed", zap.String("code_id", consumed.ID), zap.Error(err))
	}
	if err := s.throttle.ClearFailures(ctx, phone); err != nil {
		s.logger.Warn("otp failure counter reset failed", zap.String("phone", phone), zap.Error(err))
	}

	account, err := s.accounts.GetByID(ctx, consumed.Partition, consumed.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			cause := apperrors.NewNotFound("account", nil)
			return nil, s.fail(ctx, domain.LoginMethodOTP, consumed.Partition, phone, nil, meta, cause)
		}
		return nil, apperrors.NewDependencyError(err)
	}

	if ok, msg := domain.Eligibility(account.Partition, account.Status); !ok {
		s.logger.Info("otp login rejected",
			zap.String("reason", "not_eligible"),
			zap.String("account_id", account.ID),
			zap.String("status", string(account.Status)),
		)
		cause := apperrors.NewAccountNotEligible(msg, string(account.Status))
		return nil, s.fail(ctx, domain.LoginMethodOTP, account.Partition, phone, account, meta, cause)
	}

	session, err := s.issue(ctx, account, domain.LoginMethodOTP, phone, meta)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NewEvent(events.EventOTPVerified, account.ID, events.OTPVerifiedPayload{
		AccountID: account.ID,
		Partition: account.Partition,
		Phone:     phone,
	}))
	return session, nil
}

func (s *OTPService) rejectCode(ctx context.Context, phone string, failures int64, meta domain.ClientMeta) error {
	s.logger.Info("otp verify rejected", zap.String("phone", phone), zap.Int64("failures", failures))
	s.publish(ctx, events.NewEvent(events.EventOTPRejected, phone, events.OTPRejectedPayload{
		Phone:    phone,
		Reason:   apperrors.CodeInvalidOrExpired,
		Failures: failures,
	}))
	return s.fail(ctx, domain.LoginMethodOTP, "", phone, nil, meta, apperrors.NewInvalidOrExpired())
}
