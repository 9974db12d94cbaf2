package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"gopkg.in/yaml.v3"

	"github.com/tasi-app/auth-service/internal/domain"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// PolicyRule grants a role access to a path pattern for the methods matched by a regex.
type PolicyRule struct {
	Role    string `yaml:"role"`
	Path    string `yaml:"path"`
	Methods string `yaml:"methods"`
}

// GateRule declares a protected prefix, its login entry point and the paths it lets through.
type GateRule struct {
	Prefix     string   `yaml:"prefix"`
	EntryPoint string   `yaml:"entry_point"`
	Allow      []string `yaml:"allow"`
}

// PolicyFile is the on-disk layout of the policy configuration.
type PolicyFile struct {
	Gate     []GateRule   `yaml:"gate"`
	Policies []PolicyRule `yaml:"policies"`
}

// DefaultPolicyFile is used when no file is present.
func DefaultPolicyFile() *PolicyFile {
	anyone := []string{string(domain.RoleAdmin), string(domain.RoleCarrier), string(domain.RoleDriver), string(domain.RoleCustomer)}
	pf := &PolicyFile{
		Gate: []GateRule{
			{Prefix: "/admin", EntryPoint: "/admin/login", Allow: []string{"/admin/login"}},
			{Prefix: "/carrier", EntryPoint: "/carrier/login", Allow: []string{"/carrier/login"}},
			{Prefix: "/api/admin"},
			{Prefix: "/api/carrier"},
			{Prefix: "/api/auth/me"},
		},
		Policies: []PolicyRule{
			{Role: string(domain.RoleAdmin), Path: "/admin/*", Methods: "^GET$"},
			{Role: string(domain.RoleAdmin), Path: "/admin", Methods: "^GET$"},
			{Role: string(domain.RoleAdmin), Path: "/api/admin/*", Methods: "^(GET|POST|PUT|PATCH|DELETE)$"},
			{Role: string(domain.RoleCarrier), Path: "/carrier/*", Methods: "^GET$"},
			{Role: string(domain.RoleCarrier), Path: "/carrier", Methods: "^GET$"},
			{Role: string(domain.RoleDriver), Path: "/carrier/*", Methods: "^GET$"},
			{Role: string(domain.RoleDriver), Path: "/carrier", Methods: "^GET$"},
			{Role: string(domain.RoleCarrier), Path: "/api/carrier/*", Methods: "^GET$"},
			{Role: string(domain.RoleDriver), Path: "/api/carrier/*", Methods: "^GET$"},
		},
	}
	for _, role := range anyone {
		pf.Policies = append(pf.Policies, PolicyRule{Role: role, Path: "/api/auth/me", Methods: "^GET$"})
	}
	return pf
}

// LoadPolicyFile reads path. A missing file yields the defaults.
func LoadPolicyFile(path string) (*PolicyFile, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultPolicyFile(), false, nil
		}
		return nil, false, fmt.Errorf("read policy file: %w", err)
	}

	var pf PolicyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, false, fmt.Errorf("parse policy file: %w", err)
	}
	for i, rule := range pf.Policies {
		if rule.Role == "" || rule.Path == "" || rule.Methods == "" {
			return nil, false, fmt.Errorf("policy %d: role, path and methods are required", i)
		}
	}
	for i, rule := range pf.Gate {
		if rule.Prefix == "" {
			return nil, false, fmt.Errorf("gate rule %d: prefix is required", i)
		}
	}
	return &pf, true, nil
}

// PolicyChecker answers whether any of a caller's roles may perform a method on a path.
type PolicyChecker struct {
	enforcer *casbin.Enforcer
}

// NewPolicyChecker builds a casbin enforcer from the in-code model and the given rules.
func NewPolicyChecker(rules []PolicyRule) (*PolicyChecker, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if _, err := e.AddPolicy(rule.Role, rule.Path, rule.Methods); err != nil {
			return nil, fmt.Errorf("add policy %s %s: %w", rule.Role, rule.Path, err)
		}
	}
	return &PolicyChecker{enforcer: e}, nil
}

// Allowed reports whether any role is granted method on path.
func (p *PolicyChecker) Allowed(roles []domain.Role, path, method string) (bool, error) {
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(string(role), path, method)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
