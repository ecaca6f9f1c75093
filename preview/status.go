// ABOUTME: Preview session phases, status values, and sandbox error classification.
// ABOUTME: Classified failures tell the UI whether to offer retry or the static fallback.
package preview

import (
	"fmt"
	"strings"
)

// Phase is a step of the preview lifecycle.
type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhasePreparing              Phase = "preparing"
	PhaseInstallingDependencies Phase = "installing_dependencies"
	PhaseStartingServer         Phase = "starting_server"
	PhaseReady                  Phase = "ready"
	PhaseFailed                 Phase = "failed"
)

// rank orders the forward phases. Failed has no rank; it is reachable from any
// non-terminal phase.
func (p Phase) rank() int {
	switch p {
	case PhaseIdle:
		return 0
	case PhasePreparing:
		return 1
	case PhaseInstallingDependencies:
		return 2
	case PhaseStartingServer:
		return 3
	case PhaseReady:
		return 4
	}
	return -1
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// Status is the observable state of a preview session.
type Status struct {
	Phase   Phase    `json:"phase"`
	URL     string   `json:"url,omitempty"`
	Failure *Failure `json:"failure,omitempty"`
}

func (s Status) String() string {
	switch s.Phase {
	case PhaseReady:
		return fmt.Sprintf("ready(%s)", s.URL)
	case PhaseFailed:
		if s.Failure != nil {
			return fmt.Sprintf("failed(%s)", s.Failure.Reason)
		}
	}
	return string(s.Phase)
}

// Reason classifies why a preview failed.
type Reason string

const (
	ReasonCrossOriginIsolation Reason = "cross_origin_isolation_unavailable"
	ReasonInstanceLimit        Reason = "instance_limit_exceeded"
	ReasonGeneric              Reason = "generic"
)

// Failure is a classified sandbox error.
type Failure struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("preview failed (%s): %s", f.Reason, f.Message)
}

// Retryable reports whether retrying can plausibly succeed without the user
// changing their environment.
func (f *Failure) Retryable() bool {
	return f.Reason != ReasonCrossOriginIsolation
}

// StaticFallback reports whether the static renderer should be offered instead.
func (f *Failure) StaticFallback() bool {
	return f.Reason == ReasonCrossOriginIsolation
}

// Guidance is the user-facing explanation for the failure.
func (f *Failure) Guidance() string {
	switch f.Reason {
	case ReasonCrossOriginIsolation:
		return "The live preview needs cross-origin isolation, which this environment does not provide. Use the static preview instead."
	case ReasonInstanceLimit:
		return "Too many previews are running. Close other previews, then retry."
	default:
		return f.Message
	}
}

var isolationMarkers = []string{
	"crossoriginisolated",
	"cross-origin isolation",
	"cross origin isolation",
	"cross-origin-isolation",
	"sharedarraybuffer",
	"cross-origin-opener-policy",
	"cross-origin-embedder-policy",
	"coop",
	"coep",
}

var instanceLimitMarkers = []string{
	"unable to create more instances",
	"instance limit",
	"too many instances",
	"maximum number of instances",
	"429",
}

// Classify maps a raw sandbox error message to a Failure.
func Classify(message string) *Failure {
	lower := strings.ToLower(message)
	for _, m := range isolationMarkers {
		if containsWord(lower, m) {
			return &Failure{Reason: ReasonCrossOriginIsolation, Message: message}
		}
	}
	for _, m := range instanceLimitMarkers {
		if containsWord(lower, m) {
			return &Failure{Reason: ReasonInstanceLimit, Message: message}
		}
	}
	if strings.TrimSpace(message) == "" {
		message = "the preview sandbox reported an unknown error"
	}
	return &Failure{Reason: ReasonGeneric, Message: message}
}

// containsWord finds marker in s where it is not embedded in a longer
// alphanumeric token, so "coop" does not match "cooperative".
func containsWord(s, marker string) bool {
	for from := 0; ; {
		i := strings.Index(s[from:], marker)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(marker)
		if !isAlnum(s, start-1) && !isAlnum(s, end) {
			return true
		}
		from = start + 1
	}
}

func isAlnum(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9'
}
