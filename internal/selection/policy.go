// Package selection decides which fleet jobs must run for a trigger.
package selection

import "github.com/dwsmith1983/testgate/pkg/types"

// Reason names the rule that decided a selection.
type Reason string

// Reason values, in precedence order.
const (
	ReasonMergeQueue          Reason = "merge-queue"
	ReasonManual              Reason = "manual"
	ReasonDependenciesChanged Reason = "dependencies-changed"
	ReasonJobChanged          Reason = "job-changed"
	ReasonUnchanged           Reason = "unchanged"
)

// Decision is the selection result for one job.
type Decision struct {
	Job    string `json:"job"`
	Run    bool   `json:"run"`
	Reason Reason `json:"reason"`
}

// ShouldRun reports whether job must run for trigger given the change signal.
func ShouldRun(trigger types.TriggerEvent, job types.Job, signal types.ChangeSignal) bool {
	return Explain(trigger, job, signal).Run
}

// Explain evaluates the selection rules in precedence order and returns the
// first that applies. Merge-queue and manual runs are exhaustive; a shared
// dependency change selects everything; otherwise only jobs whose own files
// changed are selected.
func Explain(trigger types.TriggerEvent, job types.Job, signal types.ChangeSignal) Decision {
	d := Decision{Job: job.Name, Run: true}
	switch {
	case trigger == types.TriggerMergeQueue:
		d.Reason = ReasonMergeQueue
	case trigger == types.TriggerManual:
		d.Reason = ReasonManual
	case signal.DependenciesChanged:
		d.Reason = ReasonDependenciesChanged
	case signal.JobChanged(job.Name):
		d.Reason = ReasonJobChanged
	default:
		d.Run = false
		d.Reason = ReasonUnchanged
	}
	return d
}

// Plan applies Explain to every job, preserving job order.
func Plan(trigger types.TriggerEvent, jobs []types.Job, signal types.ChangeSignal) []Decision {
	decisions := make([]Decision, 0, len(jobs))
	for _, j := range jobs {
		decisions = append(decisions, Explain(trigger, j, signal))
	}
	return decisions
}

// Selected returns the names of jobs a plan will run.
func Selected(decisions []Decision) []string {
	var names []string
	for _, d := range decisions {
		if d.Run {
			names = append(names, d.Job)
		}
	}
	return names
}
