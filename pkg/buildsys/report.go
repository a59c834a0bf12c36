package buildsys

import (
	"time"
)

// StepStatus is the outcome of a single command
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records one command invocation
type StepResult struct {
	Name     string        `json:"name"`
	Command  Command       `json:"command"`
	Dir      string        `json:"dir"`
	Status   StepStatus    `json:"status"`
	ExitCode int           `json:"exit_code,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// TargetResult collects the steps run for the host or a single plugin
type TargetResult struct {
	Name     string        `json:"name"`
	Kind     TargetKind    `json:"kind"`
	Dir      string        `json:"dir"`
	Branch   string        `json:"branch,omitempty"`
	Version  string        `json:"version,omitempty"`
	Steps    []StepResult  `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// Failed returns true if any step of this target failed
func (t TargetResult) Failed() bool {
	for _, step := range t.Steps {
		if step.Status == StepFailed {
			return true
		}
	}

	return false
}

// Status summarizes the target's steps into a single value
func (t TargetResult) Status() StepStatus {
	if t.Failed() {
		return StepFailed
	}

	for _, step := range t.Steps {
		if step.Status == StepOK {
			return StepOK
		}
	}

	return StepSkipped
}

// Report describes a complete run
type Report struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Jobs     int            `json:"jobs"`
	Profile  Profile        `json:"profile"`
	Policy   ErrorPolicy    `json:"policy"`
	DryRun   bool           `json:"dry_run"`
	Aborted  string         `json:"aborted,omitempty"`
	Targets  []TargetResult `json:"targets"`
}

// Failures returns the number of failed steps across all targets
func (r *Report) Failures() int {
	count := 0
	for _, target := range r.Targets {
		for _, step := range target.Steps {
			if step.Status == StepFailed {
				count++
			}
		}
	}

	return count
}

// FailedTargets returns the names of all targets with at least one failed step
func (r *Report) FailedTargets() []string {
	result := []string{}
	for _, target := range r.Targets {
		if target.Failed() {
			result = append(result, target.Name)
		}
	}

	return result
}

// Trace returns every command of the run in execution order
func (r *Report) Trace() []StepResult {
	result := []StepResult{}
	for _, target := range r.Targets {
		result = append(result, target.Steps...)
	}

	return result
}
