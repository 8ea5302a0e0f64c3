package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// AppendEvent writes an event to the run's partition.
func (s *Store) AppendEvent(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(item{
		PK:   runPK(event.RunID),
		SK:   eventSK(event.Timestamp, s.seq.Add(1)),
		Data: string(data),
		TTL:  ttlEpoch(s.now(), s.retentionTTL),
	})
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("appending %s event for %s: %w", event.Kind, event.RunID, err)
	}
	return nil
}

// ListEvents returns recent events for a run in chronological order.
func (s *Store) ListEvents(ctx context.Context, runID string, limit int) ([]types.Event, error) {
	if limit <= 0 {
		limit = store.DefaultEventLimit
	}

	var newest []types.Event
	err := s.queryNewest(ctx, runPK(runID), prefixEvent, limit, func(it item) bool {
		var ev types.Event
		if err := json.Unmarshal([]byte(it.Data), &ev); err != nil {
			s.logger.Warn("skipping corrupt event data", "sk", it.SK, "error", err)
			return false
		}
		newest = append(newest, ev)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("listing events for %s: %w", runID, err)
	}

	events := make([]types.Event, 0, len(newest))
	for i := len(newest) - 1; i >= 0; i-- {
		events = append(events, newest[i])
	}
	return events, nil
}
