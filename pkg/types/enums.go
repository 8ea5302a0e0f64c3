// Package types defines the public domain types for the testgate selective test gate.
package types

import (
	"fmt"
	"strings"
)

// TriggerEvent is the event class that started a gate run.
type TriggerEvent string

// TriggerEvent values enumerate the supported run triggers.
const (
	TriggerManual      TriggerEvent = "manual"
	TriggerPullRequest TriggerEvent = "pull_request"
	TriggerMergeQueue  TriggerEvent = "merge_queue"
)

// ParseTriggerEvent converts CI event names into a TriggerEvent. The GitHub
// Actions names workflow_dispatch and merge_group are accepted as aliases.
func ParseTriggerEvent(s string) (TriggerEvent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "manual", "workflow_dispatch":
		return TriggerManual, nil
	case "pull_request", "pull-request", "pr":
		return TriggerPullRequest, nil
	case "merge_queue", "merge-queue", "merge_group":
		return TriggerMergeQueue, nil
	default:
		return "", fmt.Errorf("unknown trigger event %q", s)
	}
}

// JobOutcome is the terminal result recorded for one job in one run.
type JobOutcome string

// JobOutcome values enumerate the possible job results.
const (
	OutcomeSkipped   JobOutcome = "skipped"
	OutcomeSucceeded JobOutcome = "succeeded"
	OutcomeFailed    JobOutcome = "failed"
)

// Verdict is the suite-level decision derived from all job outcomes.
type Verdict string

// Verdict values gate the downstream operation.
const (
	VerdictSucceeded Verdict = "succeeded"
	VerdictFailed    Verdict = "failed"
)

// ExitCode maps a verdict to a process exit status.
func (v Verdict) ExitCode() int {
	if v == VerdictSucceeded {
		return 0
	}
	return 1
}

// BackoffStrategy selects the delay applied between retry attempts.
type BackoffStrategy string

// BackoffStrategy values enumerate the supported retry delays.
const (
	BackoffNone        BackoffStrategy = "none"
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffExponential BackoffStrategy = "exponential"
)

// ShortCircuitPolicy decides the verdict of a run whose fleet never executed
// because protected credentials were unavailable.
type ShortCircuitPolicy string

// ShortCircuitPolicy values. There is deliberately no default.
const (
	ShortCircuitSucceed ShortCircuitPolicy = "succeed"
	ShortCircuitFail    ShortCircuitPolicy = "fail"
)

// RunStatus represents the lifecycle state of a gate run.
type RunStatus string

// RunStatus values represent the lifecycle states of a gate run.
const (
	RunPending   RunStatus = "PENDING"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunCancelled RunStatus = "CANCELLED"
)

// FailureCategory classifies why a single attempt failed. It is diagnostic
// only; every category consumes an attempt.
type FailureCategory string

const (
	FailureExit      FailureCategory = "EXIT"
	FailureTimeout   FailureCategory = "TIMEOUT"
	FailureLaunch    FailureCategory = "LAUNCH"
	FailureCancelled FailureCategory = "CANCELLED"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole     AlertType = "console"
	AlertWebhook     AlertType = "webhook"
	AlertFile        AlertType = "file"
	AlertEventBridge AlertType = "eventbridge"
)

// AlertLevel replaces string-typed alert levels with a proper enum.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// EventKind classifies the type of audit event.
type EventKind string

// EventKind values enumerate the categories of recorded events.
const (
	EventRunStarted        EventKind = "RUN_STARTED"
	EventJobSelected       EventKind = "JOB_SELECTED"
	EventJobSkipped        EventKind = "JOB_SKIPPED"
	EventJobFinished       EventKind = "JOB_FINISHED"
	EventRunShortCircuited EventKind = "RUN_SHORT_CIRCUITED"
	EventRunCompleted      EventKind = "RUN_COMPLETED"
	EventRunCancelled      EventKind = "RUN_CANCELLED"
)
