// Package actiontype derives the lifecycle identifiers every asynchronous
// console operation dispatches: a base name such as GET_USERS expands to
// GET_USERS_REQUEST, GET_USERS_SUCCESS, GET_USERS_FAILED and GET_USERS_CLEAN.
//
// The derivation functions are pure and accept any string. Uniqueness of
// base names across features is enforced by Registry at registration time.
package actiontype

import "strings"

// Type returns base with the suffix of phase appended.
func Type(base string, phase Phase) string {
	return base + phase.Suffix()
}

// Request returns base + "_REQUEST".
func Request(base string) string { return Type(base, PhaseRequest) }

// Success returns base + "_SUCCESS".
func Success(base string) string { return Type(base, PhaseSuccess) }

// Failure returns base + "_FAILED".
func Failure(base string) string { return Type(base, PhaseFailed) }

// Clean returns base + "_CLEAN".
func Clean(base string) string { return Type(base, PhaseClean) }

// Family groups the four derived identifiers of one base name.
type Family struct {
	Base    string `json:"base"`
	Request string `json:"request"`
	Success string `json:"success"`
	Failed  string `json:"failed"`
	Clean   string `json:"clean"`
}

// FamilyOf derives the family of base.
func FamilyOf(base string) Family {
	return Family{
		Base:    base,
		Request: Request(base),
		Success: Success(base),
		Failed:  Failure(base),
		Clean:   Clean(base),
	}
}

// Type returns the identifier of the family for phase.
func (f Family) Type(phase Phase) string {
	switch phase {
	case PhaseRequest:
		return f.Request
	case PhaseSuccess:
		return f.Success
	case PhaseFailed:
		return f.Failed
	case PhaseClean:
		return f.Clean
	default:
		return f.Base
	}
}

// Types returns the derived identifiers in phase order.
func (f Family) Types() []string {
	return []string{f.Request, f.Success, f.Failed, f.Clean}
}

// Split reverses Type. ok is false when derived carries no known suffix.
func Split(derived string) (base string, phase Phase, ok bool) {
	for _, p := range phases {
		if b, found := strings.CutSuffix(derived, p.Suffix()); found {
			return b, p, true
		}
	}
	return "", 0, false
}
