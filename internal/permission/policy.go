// Package permission decides whether a signed-in user may reach a console
// route. Two gates run in series: an organization-lifecycle gate (a
// soft-deleted organization only reaches allow-listed routes) followed by a
// role gate (routes with a table entry admit only the listed roles, routes
// without one are open).
package permission

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"bizadmin.org/internal/auth"
)

var (
	ErrEmptyRoute     = errors.New("permission: empty route")
	ErrDuplicateRoute = errors.New("permission: duplicate route")
	ErrInvalidPattern = errors.New("permission: invalid route pattern")
	ErrEmptyRole      = errors.New("permission: empty role")
)

// Table maps a route key to the roles allowed on it.
type Table map[string][]auth.Role

// Config is the input form of a Policy.
type Config struct {
	Routes              Table
	DeletedOrgAllowList []string
}

// Reason explains a Decision.
type Reason string

const (
	ReasonOrganizationDeleted Reason = "organization_deleted"
	ReasonUnrestricted        Reason = "unrestricted"
	ReasonRoleAllowed         Reason = "role_allowed"
	ReasonRoleDenied          Reason = "role_denied"
)

// Decision is the outcome of one gate evaluation. Route is the table key
// that matched, empty when the route is unrestricted or locked by deletion.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
	Route   string `json:"route,omitempty"`
}

// RouteRule is the exported form of one table entry.
type RouteRule struct {
	Path  string      `json:"path" yaml:"path"`
	Roles []auth.Role `json:"roles" yaml:"roles"`
}

type roleSet map[auth.Role]struct{}

type patternRule struct {
	pattern routePattern
	roles   roleSet
}

// Policy is the compiled, read-only form of a Config. It is never mutated
// after NewPolicy returns and is safe for concurrent use.
type Policy struct {
	exact    map[string]roleSet
	patterns []patternRule

	allowExact    map[string]struct{}
	allowPatterns []routePattern
}

// NewPolicy normalizes and validates cfg. Route keys must stay unique after
// normalization; "{param}" keys must be well formed.
func NewPolicy(cfg Config) (*Policy, error) {
	p := &Policy{
		exact:      make(map[string]roleSet, len(cfg.Routes)),
		allowExact: make(map[string]struct{}, len(cfg.DeletedOrgAllowList)),
	}

	shapes := make(map[string]string)
	keys := make([]string, 0, len(cfg.Routes))
	for raw := range cfg.Routes {
		keys = append(keys, raw)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		if strings.TrimSpace(raw) == "" {
			return nil, ErrEmptyRoute
		}
		route := NormalizeRoute(raw)
		roles := make(roleSet, len(cfg.Routes[raw]))
		for _, r := range cfg.Routes[raw] {
			if strings.TrimSpace(string(r)) == "" {
				return nil, fmt.Errorf("%w: route %s", ErrEmptyRole, raw)
			}
			roles[r] = struct{}{}
		}

		if !isPattern(route) {
			if _, dup := p.exact[route]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateRoute, route)
			}
			p.exact[route] = roles
			continue
		}
		pat, ok := parseRoutePattern(route)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPattern, raw)
		}
		if prev, dup := shapes[pat.shape()]; dup {
			return nil, fmt.Errorf("%w: %s overlaps %s", ErrDuplicateRoute, route, prev)
		}
		shapes[pat.shape()] = route
		p.patterns = append(p.patterns, patternRule{pattern: pat, roles: roles})
	}
	sortPatterns(p.patterns)

	for _, raw := range cfg.DeletedOrgAllowList {
		if strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("%w: allow-list", ErrEmptyRoute)
		}
		route := NormalizeRoute(raw)
		if !isPattern(route) {
			p.allowExact[route] = struct{}{}
			continue
		}
		pat, ok := parseRoutePattern(route)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPattern, raw)
		}
		p.allowPatterns = append(p.allowPatterns, pat)
	}
	return p, nil
}

// MustPolicy is NewPolicy for tables known to be valid at compile time.
func MustPolicy(cfg Config) *Policy {
	p, err := NewPolicy(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// sortPatterns orders patterns so that, among patterns able to match the same
// path, the one with a literal at the leftmost differing segment wins:
// "/a/b/{y}" beats "/a/{x}/c" for "/a/b/c". Patterns of different lengths
// never compete; they are ordered by length to keep the order total.
func sortPatterns(rules []patternRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].pattern.before(rules[j].pattern)
	})
}

// IsPermitted reports whether role may reach pathname inside organization.
func (p *Policy) IsPermitted(pathname string, role auth.Role, organization auth.Organization) bool {
	return p.Decide(pathname, role, organization).Allowed
}

// Decide evaluates the gate and explains the outcome:
//  1. a soft-deleted organization is denied every route off the allow-list;
//  2. a route without a table entry is allowed;
//  3. otherwise the role must be listed for the route.
func (p *Policy) Decide(pathname string, role auth.Role, organization auth.Organization) Decision {
	route := NormalizeRoute(pathname)
	if organization.IsDeleted() && !p.allowListed(route) {
		return Decision{Allowed: false, Reason: ReasonOrganizationDeleted}
	}
	key, roles, ok := p.lookup(route)
	if !ok {
		return Decision{Allowed: true, Reason: ReasonUnrestricted}
	}
	if _, ok := roles[role]; ok {
		return Decision{Allowed: true, Reason: ReasonRoleAllowed, Route: key}
	}
	return Decision{Allowed: false, Reason: ReasonRoleDenied, Route: key}
}

// IsPermitted is the function form of Policy.IsPermitted.
func IsPermitted(p *Policy, pathname string, role auth.Role, organization auth.Organization) bool {
	return p.IsPermitted(pathname, role, organization)
}

func (p *Policy) lookup(route string) (string, roleSet, bool) {
	if p == nil {
		return "", nil, false
	}
	if roles, ok := p.exact[route]; ok {
		return route, roles, true
	}
	for _, rule := range p.patterns {
		if rule.pattern.match(route) {
			return rule.pattern.raw, rule.roles, true
		}
	}
	return "", nil, false
}

func (p *Policy) allowListed(route string) bool {
	if p == nil {
		return false
	}
	if _, ok := p.allowExact[route]; ok {
		return true
	}
	for _, pat := range p.allowPatterns {
		if pat.match(route) {
			return true
		}
	}
	return false
}

// Routes exports the role table sorted by path; roles keep the built-in
// privilege order with unknown roles last.
func (p *Policy) Routes() []RouteRule {
	if p == nil {
		return nil
	}
	out := make([]RouteRule, 0, len(p.exact)+len(p.patterns))
	for route, roles := range p.exact {
		out = append(out, RouteRule{Path: route, Roles: sortedRoles(roles)})
	}
	for _, rule := range p.patterns {
		out = append(out, RouteRule{Path: rule.pattern.raw, Roles: sortedRoles(rule.roles)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// AllowList exports the deleted-organization allow-list, sorted.
func (p *Policy) AllowList() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.allowExact)+len(p.allowPatterns))
	for route := range p.allowExact {
		out = append(out, route)
	}
	for _, pat := range p.allowPatterns {
		out = append(out, pat.raw)
	}
	sort.Strings(out)
	return out
}

func sortedRoles(set roleSet) []auth.Role {
	out := make([]auth.Role, 0, len(set))
	for _, r := range auth.Roles {
		if _, ok := set[r]; ok {
			out = append(out, r)
		}
	}
	var extra []auth.Role
	for r := range set {
		if !r.Known() {
			extra = append(extra, r)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}
