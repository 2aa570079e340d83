package actiontype

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrEmptyBase     = errors.New("actiontype: empty base name")
	ErrDuplicateBase = errors.New("actiontype: duplicate base name")
	ErrCollision     = errors.New("actiontype: derived type collision")
)

// Registry records the base names in use so that no two features share an
// identifier after suffixing. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	bases   map[string]Family
	derived map[string]string // derived type -> owning base
}

func NewRegistry() *Registry {
	return &Registry{
		bases:   make(map[string]Family),
		derived: make(map[string]string),
	}
}

// Register adds base and returns its family.
func (r *Registry) Register(base string) (Family, error) {
	if strings.TrimSpace(base) == "" {
		return Family{}, ErrEmptyBase
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bases[base]; ok {
		return Family{}, fmt.Errorf("%w: %s", ErrDuplicateBase, base)
	}
	if owner, ok := r.derived[base]; ok {
		return Family{}, fmt.Errorf("%w: %s is derived from %s", ErrCollision, base, owner)
	}
	fam := FamilyOf(base)
	for _, t := range fam.Types() {
		if _, ok := r.bases[t]; ok {
			return Family{}, fmt.Errorf("%w: %s is a registered base", ErrCollision, t)
		}
	}

	r.bases[base] = fam
	for _, t := range fam.Types() {
		r.derived[t] = base
	}
	return fam, nil
}

// MustRegister is Register for package-level declarations; it panics on error.
func (r *Registry) MustRegister(base string) Family {
	fam, err := r.Register(base)
	if err != nil {
		panic(err)
	}
	return fam
}

// Family returns the registered family of base.
func (r *Registry) Family(base string) (Family, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fam, ok := r.bases[base]
	return fam, ok
}

// Lookup resolves a derived identifier to its registered family and phase.
func (r *Registry) Lookup(derived string) (Family, Phase, bool) {
	base, phase, ok := Split(derived)
	if !ok {
		return Family{}, 0, false
	}
	fam, ok := r.Family(base)
	if !ok {
		return Family{}, 0, false
	}
	return fam, phase, true
}

// Families returns every registered family ordered by base name.
func (r *Registry) Families() []Family {
	r.mu.RLock()
	out := make([]Family, 0, len(r.bases))
	for _, fam := range r.bases {
		out = append(out, fam)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bases)
}
