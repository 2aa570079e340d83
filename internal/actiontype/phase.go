package actiontype

// Phase is a lifecycle stage of an asynchronous console operation.
type Phase int

const (
	PhaseRequest Phase = iota
	PhaseSuccess
	PhaseFailed
	PhaseClean
)

var phases = [...]Phase{PhaseRequest, PhaseSuccess, PhaseFailed, PhaseClean}

var suffixes = map[Phase]string{
	PhaseRequest: "_REQUEST",
	PhaseSuccess: "_SUCCESS",
	PhaseFailed:  "_FAILED",
	PhaseClean:   "_CLEAN",
}

var phaseNames = map[Phase]string{
	PhaseRequest: "request",
	PhaseSuccess: "success",
	PhaseFailed:  "failed",
	PhaseClean:   "clean",
}

// Phases returns every lifecycle phase in dispatch order.
func Phases() []Phase {
	out := make([]Phase, len(phases))
	copy(out, phases[:])
	return out
}

// Suffix returns the fixed identifier suffix of the phase, or "" for an unknown phase.
func (p Phase) Suffix() string {
	return suffixes[p]
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}
