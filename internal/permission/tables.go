package permission

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"bizadmin.org/internal/auth"
)

//go:embed tables/*.yaml
var builtinTables embed.FS

const documentVersion = 1

type document struct {
	Version   int            `yaml:"version"`
	Routes    []documentRule `yaml:"routes"`
	AllowList []string       `yaml:"deleted_organization_allowlist"`
}

type documentRule struct {
	Path  string   `yaml:"path"`
	Roles []string `yaml:"roles"`
}

// ParseConfig decodes a YAML tables document. Paths must be unique after
// normalization and every role must be a built-in one.
func ParseConfig(b []byte) (Config, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Config{}, fmt.Errorf("permission: decode tables: %w", err)
	}
	if doc.Version != documentVersion {
		return Config{}, errors.New("permission: unsupported tables version")
	}

	cfg := Config{
		Routes:              make(Table, len(doc.Routes)),
		DeletedOrgAllowList: doc.AllowList,
	}
	seen := make(map[string]struct{}, len(doc.Routes))
	for i, rule := range doc.Routes {
		if rule.Path == "" {
			return Config{}, fmt.Errorf("%w: routes[%d]", ErrEmptyRoute, i)
		}
		key := NormalizeRoute(rule.Path)
		if _, dup := seen[key]; dup {
			return Config{}, fmt.Errorf("%w: %s", ErrDuplicateRoute, key)
		}
		seen[key] = struct{}{}

		roles := make([]auth.Role, 0, len(rule.Roles))
		for _, raw := range rule.Roles {
			role, err := auth.ParseRole(raw)
			if err != nil {
				return Config{}, fmt.Errorf("permission: route %s: %w", key, err)
			}
			roles = append(roles, role)
		}
		cfg.Routes[key] = roles
	}
	return cfg, nil
}

// Parse decodes and compiles a YAML tables document.
func Parse(b []byte) (*Policy, error) {
	cfg, err := ParseConfig(b)
	if err != nil {
		return nil, err
	}
	return NewPolicy(cfg)
}

// LoadFile reads and compiles the tables document at path.
func LoadFile(path string) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// MarshalYAML exports the policy in the document format Parse reads.
func (p *Policy) MarshalYAML() (any, error) {
	doc := document{Version: documentVersion, AllowList: p.AllowList()}
	for _, rule := range p.Routes() {
		roles := make([]string, len(rule.Roles))
		for i, r := range rule.Roles {
			roles[i] = string(r)
		}
		doc.Routes = append(doc.Routes, documentRule{Path: rule.Path, Roles: roles})
	}
	return doc, nil
}

var (
	defaultPolicy = sync.OnceValue(func() *Policy { return mustBuiltin("tables/console.yaml") })
	apiPolicy     = sync.OnceValue(func() *Policy { return mustBuiltin("tables/api.yaml") })
)

// Default returns the console navigation tables compiled into the binary.
func Default() *Policy { return defaultPolicy() }

// APIPolicy returns the tables guarding the HTTP API.
func APIPolicy() *Policy { return apiPolicy() }

func mustBuiltin(name string) *Policy {
	b, err := builtinTables.ReadFile(name)
	if err != nil {
		panic(err)
	}
	p, err := Parse(b)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	return p
}
