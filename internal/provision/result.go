package provision

import (
	"time"

	"github.com/rileyhilliard/vpsinit/internal/host"
)

// StepName identifies a step.
type StepName string

const (
	StepUpdate  StepName = "update"
	StepKeygen  StepName = "keygen"
	StepCopyKey StepName = "copy-key"
	StepAlias   StepName = "alias"
	StepHarden  StepName = "harden-sshd"
	StepRestart StepName = "restart-sshd"
)

// Status is the outcome of a step.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StepResult is what one step produced.
type StepResult struct {
	Name     StepName
	Title    string
	Status   Status
	Duration time.Duration
	// Detail is a one-line description of what happened on success.
	Detail string
	// Output is the tail of the remote output, kept for failures.
	Output string
	// Reason explains a skip.
	Reason string
	Err    error
}

// Report collects everything a run produced.
type Report struct {
	Host        string
	User        string
	Steps       []StepResult
	Manager     string
	Editor      string
	KeyPath     string
	KeyCreated  bool
	Alias       string
	AliasReused bool

	// Verify is nil when verification couldn't be attempted.
	Verify       *host.ProbeResult
	VerifyReason string
}

// Step returns the result for name.
func (r *Report) Step(name StepName) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Succeeded reports whether the named step succeeded.
func (r *Report) Succeeded(name StepName) bool {
	s, ok := r.Step(name)
	return ok && s.Status == StatusSuccess
}

// Failed returns the steps that failed.
func (r *Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// OK is true when every step succeeded and verification passed.
func (r *Report) OK() bool {
	for _, s := range r.Steps {
		if s.Status != StatusSuccess {
			return false
		}
	}
	return r.Verify != nil && r.Verify.Success
}
