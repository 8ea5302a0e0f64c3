package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/testgate/pkg/types"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		outcomes map[string]types.JobOutcome
		want     types.Verdict
	}{
		{"empty is vacuous success", nil, types.VerdictSucceeded},
		{"all skipped", map[string]types.JobOutcome{"aws": types.OutcomeSkipped, "gcp": types.OutcomeSkipped}, types.VerdictSucceeded},
		{"mixed pass and skip", map[string]types.JobOutcome{"aws": types.OutcomeSucceeded, "gcp": types.OutcomeSkipped}, types.VerdictSucceeded},
		{"one failure", map[string]types.JobOutcome{"aws": types.OutcomeFailed, "gcp": types.OutcomeSucceeded, "azure": types.OutcomeSucceeded}, types.VerdictFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.outcomes))
		})
	}
}

func TestAggregate_Monotonic(t *testing.T) {
	all := []types.JobOutcome{types.OutcomeSkipped, types.OutcomeSucceeded, types.OutcomeFailed}
	for _, a := range all {
		for _, b := range all {
			base := map[string]types.JobOutcome{"aws": a, "gcp": b}
			if Aggregate(base) != types.VerdictFailed {
				continue
			}
			withFailure := map[string]types.JobOutcome{"aws": a, "gcp": b, "azure": types.OutcomeFailed}
			assert.Equal(t, types.VerdictFailed, Aggregate(withFailure))
			for _, c := range all {
				extended := map[string]types.JobOutcome{"aws": a, "gcp": b, "azure": c}
				assert.Equal(t, types.VerdictFailed, Aggregate(extended), "adding %s cannot flip a failed verdict", c)
			}
		}
	}
}

func TestComplete(t *testing.T) {
	jobs := []types.Job{{Name: "aws"}, {Name: "gcp"}}

	assert.NoError(t, Complete(jobs, map[string]types.JobOutcome{"aws": types.OutcomeSucceeded, "gcp": types.OutcomeSkipped}))
	assert.ErrorIs(t, Complete(jobs, map[string]types.JobOutcome{"aws": types.OutcomeSucceeded}), ErrIncomplete)
	assert.ErrorIs(t, Complete(jobs, map[string]types.JobOutcome{
		"aws": types.OutcomeSucceeded, "gcp": types.OutcomeSucceeded, "azure": types.OutcomeFailed,
	}), ErrIncomplete)
	assert.NoError(t, Complete(nil, nil))
}

func TestFailed(t *testing.T) {
	got := Failed(map[string]types.JobOutcome{
		"gcp": types.OutcomeFailed, "aws": types.OutcomeFailed, "azure": types.OutcomeSucceeded,
	})
	assert.Equal(t, []string{"aws", "gcp"}, got)
	assert.Nil(t, Failed(nil))
}

func TestShortCircuit(t *testing.T) {
	v, err := ShortCircuit(types.ShortCircuitSucceed)
	require.NoError(t, err)
	assert.Equal(t, types.VerdictSucceeded, v)

	v, err = ShortCircuit(types.ShortCircuitFail)
	require.NoError(t, err)
	assert.Equal(t, types.VerdictFailed, v)

	_, err = ShortCircuit("")
	assert.ErrorIs(t, err, ErrNoPolicy)

	_, err = ShortCircuit("maybe")
	assert.Error(t, err)
}
