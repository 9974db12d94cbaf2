package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tasi-app/auth-service/internal/domain"
	apperrors "github.com/tasi-app/auth-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller as carried by the session token.
type Principal struct {
	AccountID string
	Email     string
	Name      string
	Roles     []domain.Role
	Partition domain.Partition
	ExpiresAt time.Time
}

// HasRole reports whether the principal carries any of roles.
func (p *Principal) HasRole(roles ...domain.Role) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// SessionGate intercepts requests under protected prefixes and admits only callers holding a
// valid session token whose roles the policy allows.
type SessionGate struct {
	rules      []GateRule
	tokens     *TokenManager
	policy     *PolicyChecker
	cookieName string
	logger     *zap.Logger
}

// NewSessionGate constructs middleware.
func NewSessionGate(rules []GateRule, tokens *TokenManager, policy *PolicyChecker, cookieName string, logger *zap.Logger) *SessionGate {
	return &SessionGate{rules: rules, tokens: tokens, policy: policy, cookieName: cookieName, logger: logger}
}

// Handle enforces authentication for protected routes.
func (g *SessionGate) Handle(c *fiber.Ctx) error {
	path := c.Path()
	rule := g.match(path)
	if rule == nil || rule.allows(path) {
		return c.Next()
	}

	raw := g.extractToken(c)
	if raw == "" {
		return g.reject(c, rule, "missing session token")
	}

	claims, err := g.tokens.ParseToken(raw)
	if err != nil {
		g.logger.Debug("session token rejected", zap.String("path", path), zap.Error(err))
		c.ClearCookie(g.cookieName)
		return g.reject(c, rule, "invalid session token")
	}

	ok, err := g.policy.Allowed(claims.Roles, path, c.Method())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !ok {
		g.logger.Info("access denied by policy",
			zap.String("account_id", claims.AccountID()),
			zap.Strings("roles", domain.RoleStrings(claims.Roles)),
			zap.String("method", c.Method()),
			zap.String("path", path),
		)
		return apperrors.NewForbidden("insufficient role")
	}

	principal := &Principal{
		AccountID: claims.AccountID(),
		Email:     claims.Email,
		Name:      claims.Name,
		Roles:     claims.Roles,
		Partition: claims.Partition,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// match returns the most specific rule covering path.
func (g *SessionGate) match(path string) *GateRule {
	var best *GateRule
	for i := range g.rules {
		rule := &g.rules[i]
		if !underPrefix(path, rule.Prefix) {
			continue
		}
		if best == nil || len(rule.Prefix) > len(best.Prefix) {
			best = rule
		}
	}
	return best
}

func (r *GateRule) allows(path string) bool {
	for _, allowed := range r.Allow {
		if underPrefix(path, allowed) {
			return true
		}
	}
	return false
}

// underPrefix matches whole path segments: "/admin" covers "/admin" and "/admin/x" but not "/administrator".
func underPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

func (g *SessionGate) extractToken(c *fiber.Ctx) string {
	if token := c.Cookies(g.cookieName); token != "" {
		return token
	}
	authHeader := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (g *SessionGate) reject(c *fiber.Ctx, rule *GateRule, reason string) error {
	if rule.EntryPoint != "" && !wantsJSON(c) {
		return c.Redirect(rule.EntryPoint, fiber.StatusFound)
	}
	return apperrors.NewUnauthorized(reason)
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) || c.XHR()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
