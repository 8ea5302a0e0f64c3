// Package testutil provides shared test fakes for testgate.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/dwsmith1983/testgate/internal/command"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// Compile-time interface satisfaction check.
var _ command.Runner = (*ScriptedRunner)(nil)

// ErrAttemptFailed stands in for a non-zero exit in scripted results.
var ErrAttemptFailed = errors.New("exit status 1")

// ScriptedRunner is a command.Runner whose per-job results are scripted.
// Attempt n of a job returns the n-th scripted result; once the script is
// exhausted the last result repeats. Unscripted jobs pass.
type ScriptedRunner struct {
	mu      sync.Mutex
	results map[string][]error
	blocked map[string]bool
	calls   map[string]int
}

// NewScriptedRunner creates a runner where every job passes.
func NewScriptedRunner() *ScriptedRunner {
	return &ScriptedRunner{
		results: make(map[string][]error),
		blocked: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

// Script sets the results of successive attempts of job.
func (r *ScriptedRunner) Script(job string, results ...error) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[job] = results
	return r
}

// FailTimes makes job fail n times, then pass.
func (r *ScriptedRunner) FailTimes(job string, n int) *ScriptedRunner {
	results := make([]error, 0, n+1)
	for i := 0; i < n; i++ {
		results = append(results, ErrAttemptFailed)
	}
	return r.Script(job, append(results, nil)...)
}

// AlwaysFail makes every attempt of job fail.
func (r *ScriptedRunner) AlwaysFail(job string) *ScriptedRunner {
	return r.Script(job, ErrAttemptFailed)
}

// Block makes every attempt of job hang until its context ends.
func (r *ScriptedRunner) Block(job string) *ScriptedRunner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocked[job] = true
	return r
}

// Run implements command.Runner.
func (r *ScriptedRunner) Run(ctx context.Context, job types.Job) error {
	r.mu.Lock()
	r.calls[job.Name]++
	n := r.calls[job.Name]
	blocked := r.blocked[job.Name]
	script := r.results[job.Name]
	r.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if len(script) == 0 {
		return nil
	}
	if n > len(script) {
		n = len(script)
	}
	return script[n-1]
}

// Calls returns how many attempts of job have been launched.
func (r *ScriptedRunner) Calls(job string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[job]
}
