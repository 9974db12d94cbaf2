package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tasi-app/auth-service/internal/api/dto"
	"github.com/tasi-app/auth-service/internal/auth"
	"github.com/tasi-app/auth-service/internal/domain"
	"github.com/tasi-app/auth-service/internal/service"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

// CredentialLogin is the password login flow.
type CredentialLogin interface {
	Login(ctx context.Context, in service.LoginInput, meta domain.ClientMeta) (*domain.Session, error)
}

// OTPFlow issues and verifies one-time codes.
type OTPFlow interface {
	Issue(ctx context.Context, phone string) (*domain.OTPIssue, error)
	Verify(ctx context.Context, phone, code string, meta domain.ClientMeta) (*domain.Session, error)
}

// CookieSettings controls the session cookie.
type CookieSettings struct {
	Name   string
	Secure bool
}

// AuthHandler exposes login, OTP and session endpoints.
type AuthHandler struct {
	credentials CredentialLogin
	otp         OTPFlow
	cookie      CookieSettings
}

// NewAuthHandler constructs handler.
func NewAuthHandler(credentials CredentialLogin, otp OTPFlow, cookie CookieSettings) *AuthHandler {
	return &AuthHandler{credentials: credentials, otp: otp, cookie: cookie}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	session, err := h.credentials.Login(c.UserContext(), service.LoginInput{
		Partition: domain.Partition(req.Partition),
		Email:     req.Email,
		Password:  req.Password,
	}, clientMeta(c))
	if err != nil {
		return err
	}
	return h.startSession(c, session)
}

// RequestOTP handles POST /api/auth/otp/request.
func (h *AuthHandler) RequestOTP(c *fiber.Ctx) error {
	var req dto.OTPRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	issued, err := h.otp.Issue(c.UserContext(), req.Phone)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.OTPIssueResponse{Phone: issued.Phone, ExpiresAt: issued.ExpiresAt})
}

// VerifyOTP handles POST /api/auth/otp/verify.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.OTPVerifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := dto.Validate(&req); err != nil {
		return err
	}

	session, err := h.otp.Verify(c.UserContext(), req.Phone, req.Code, clientMeta(c))
	if err != nil {
		return err
	}
	return h.startSession(c, session)
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so only the cookie goes away.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(c, http.StatusOK, fiber.Map{"logged_out": true})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return respond(c, http.StatusOK, dto.PrincipalResponse{
		AccountID: principal.AccountID,
		Email:     principal.Email,
		Name:      principal.Name,
		Roles:     principal.Roles,
		Partition: principal.Partition,
		ExpiresAt: principal.ExpiresAt,
	})
}

func (h *AuthHandler) startSession(c *fiber.Ctx, session *domain.Session) error {
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return respond(c, http.StatusOK, dto.AuthResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Account:   session.Identity,
	})
}
