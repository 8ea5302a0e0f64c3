package types

import "time"

// Job identifies one registered integration-test target in the fleet.
// Zero AttemptTimeout or MaxAttempts fall back to the retry policy defaults.
type Job struct {
	Name           string        `json:"name"`
	Command        string        `json:"command"`
	AttemptTimeout time.Duration `json:"attemptTimeout,omitempty"`
	MaxAttempts    int           `json:"maxAttempts,omitempty"`
}

// ChangeSignal is the read-only change-detection input for one run.
type ChangeSignal struct {
	Changed             map[string]bool `json:"changed,omitempty"`
	DependenciesChanged bool            `json:"dependencies_changed"`
}

// JobChanged reports whether relevant files for the named job changed.
// Unknown names and a nil map both report false.
func (s ChangeSignal) JobChanged(name string) bool {
	return s.Changed[name]
}

// RunKey is the concurrency key of a run: the workflow identity plus the
// pull request or commit the run is checking.
type RunKey struct {
	Workflow string `json:"workflow"`
	Subject  string `json:"subject"`
}

// String returns the canonical "workflow:subject" form.
func (k RunKey) String() string {
	return k.Workflow + ":" + k.Subject
}

// RetryPolicy configures the retry executor.
type RetryPolicy struct {
	MaxAttempts       int
	AttemptTimeout    time.Duration
	Backoff           BackoffStrategy
	BackoffDelay      time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// RunRecord is the persisted diagnostic view of one gate run.
type RunRecord struct {
	RunID          string                `json:"runId"`
	Key            RunKey                `json:"key"`
	Trigger        TriggerEvent          `json:"trigger"`
	Status         RunStatus             `json:"status"`
	Verdict        Verdict               `json:"verdict,omitempty"`
	ShortCircuited bool                  `json:"shortCircuited,omitempty"`
	Outcomes       map[string]JobOutcome `json:"outcomes,omitempty"`
	Message        string                `json:"message,omitempty"`
	StartedAt      time.Time             `json:"startedAt"`
	CompletedAt    *time.Time            `json:"completedAt,omitempty"`
}

// Event is an append-only audit entry for a run.
type Event struct {
	Kind      EventKind              `json:"kind"`
	RunID     string                 `json:"runId"`
	Job       string                 `json:"job,omitempty"`
	Status    string                 `json:"status,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Alert is a notification emitted for a notable run result.
type Alert struct {
	Level     AlertLevel `json:"level"`
	RunID     string     `json:"runId,omitempty"`
	Key       RunKey     `json:"key"`
	Verdict   Verdict    `json:"verdict,omitempty"`
	Message   string     `json:"message"`
	Failed    []string   `json:"failed,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
