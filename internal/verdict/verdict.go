// Package verdict folds per-job outcomes into the suite verdict.
package verdict

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// ErrIncomplete is returned when the outcome set does not cover every job.
var ErrIncomplete = errors.New("outcome set incomplete")

// ErrNoPolicy is returned when no short-circuit policy is configured.
var ErrNoPolicy = errors.New("secret short-circuit policy not configured")

// Aggregate returns failed if any outcome is failed, else succeeded. Skipped
// counts as success and an empty set is vacuously succeeded.
func Aggregate(outcomes map[string]types.JobOutcome) types.Verdict {
	for _, o := range outcomes {
		if o == types.OutcomeFailed {
			return types.VerdictFailed
		}
	}
	return types.VerdictSucceeded
}

// Complete reports whether outcomes holds exactly one outcome for each job
// and nothing else.
func Complete(jobs []types.Job, outcomes map[string]types.JobOutcome) error {
	var missing []string
	for _, j := range jobs {
		if _, ok := outcomes[j.Name]; !ok {
			missing = append(missing, j.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrIncomplete, missing)
	}
	if len(outcomes) != len(jobs) {
		return fmt.Errorf("%w: %d outcomes for %d jobs", ErrIncomplete, len(outcomes), len(jobs))
	}
	return nil
}

// Failed returns the names of failed jobs, sorted.
func Failed(outcomes map[string]types.JobOutcome) []string {
	var names []string
	for name, o := range outcomes {
		if o == types.OutcomeFailed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ShortCircuit maps the configured policy to the verdict of a run that
// stopped at the secret gate. There is no default policy.
func ShortCircuit(policy types.ShortCircuitPolicy) (types.Verdict, error) {
	switch policy {
	case types.ShortCircuitSucceed:
		return types.VerdictSucceeded, nil
	case types.ShortCircuitFail:
		return types.VerdictFailed, nil
	case "":
		return "", ErrNoPolicy
	default:
		return "", fmt.Errorf("unknown secret short-circuit policy %q", policy)
	}
}
