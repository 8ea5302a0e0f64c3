package dynamodb

import (
	"fmt"
	"time"

	"github.com/dwsmith1983/testgate/pkg/types"
)

// PK/SK prefix constants.
const (
	prefixRun   = "RUN#"
	prefixKey   = "KEY#"
	prefixEvent = "EVENT#"

	skRecord = "RECORD"

	// sortableTime is fixed width so list keys sort chronologically.
	sortableTime = "2006-01-02T15:04:05.000000000Z"
)

// item is the stored shape shared by run records, run list copies and
// events. data holds the JSON-encoded domain value.
type item struct {
	PK   string `dynamodbav:"PK"`
	SK   string `dynamodbav:"SK"`
	Data string `dynamodbav:"data"`
	TTL  int64  `dynamodbav:"ttl,omitempty"`
}

func runPK(runID string) string { return prefixRun + runID }
func recordSK() string          { return skRecord }

func keyPK(key types.RunKey) string {
	return prefixKey + key.Workflow + "#" + key.Subject
}

func runListSK(startedAt time.Time, runID string) string {
	return prefixRun + startedAt.UTC().Format(sortableTime) + "#" + runID
}

func eventSK(ts time.Time, seq uint64) string {
	return fmt.Sprintf("%s%013d#%08d", prefixEvent, ts.UnixMilli(), seq)
}

func ttlEpoch(now time.Time, d time.Duration) int64 {
	return now.Add(d).Unix()
}

func isExpired(now time.Time, epoch int64) bool {
	return epoch > 0 && now.Unix() > epoch
}
