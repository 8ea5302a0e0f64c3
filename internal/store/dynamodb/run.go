package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/testgate/internal/lifecycle"
	"github.com/dwsmith1983/testgate/internal/store"
	"github.com/dwsmith1983/testgate/pkg/types"
)

// PutRun stores a run using dual-write: truth item + per-key list copy.
func (s *Store) PutRun(ctx context.Context, run types.RunRecord) error {
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", run.RunID, err)
	}

	ttl := ttlEpoch(s.now(), s.retentionTTL)
	if !lifecycle.IsTerminal(run.Status) {
		ttl = 0
	}

	truth, err := attributevalue.MarshalMap(item{PK: runPK(run.RunID), SK: recordSK(), Data: string(data), TTL: ttl})
	if err != nil {
		return err
	}
	list, err := attributevalue.MarshalMap(item{PK: keyPK(run.Key), SK: runListSK(run.StartedAt, run.RunID), Data: string(data), TTL: ttl})
	if err != nil {
		return err
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{Put: &ddbtypes.Put{TableName: &s.tableName, Item: truth}},
			{Put: &ddbtypes.Put{TableName: &s.tableName, Item: list}},
		},
	})
	if err != nil {
		return fmt.Errorf("writing run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun retrieves a run from the truth item (strongly consistent).
func (s *Store) GetRun(ctx context.Context, runID string) (*types.RunRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		ConsistentRead: aws.Bool(true),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: runPK(runID)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: recordSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", runID, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("run %q: %w", runID, store.ErrNotFound)
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	if isExpired(s.now(), it.TTL) {
		return nil, fmt.Errorf("run %q: %w", runID, store.ErrNotFound)
	}

	var run types.RunRecord
	if err := json.Unmarshal([]byte(it.Data), &run); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns recent runs for a key, newest first.
func (s *Store) ListRuns(ctx context.Context, key types.RunKey, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = store.DefaultRunLimit
	}

	runs := make([]types.RunRecord, 0, limit)
	err := s.queryNewest(ctx, keyPK(key), prefixRun, limit, func(it item) bool {
		var run types.RunRecord
		if err := json.Unmarshal([]byte(it.Data), &run); err != nil {
			s.logger.Warn("skipping corrupt run data", "sk", it.SK, "error", err)
			return false
		}
		runs = append(runs, run)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs for %s: %w", key, err)
	}
	return runs, nil
}
