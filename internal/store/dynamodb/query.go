package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// queryNewest pages newest-first through the items of pk under prefix and
// hands each live, decodable item to keep until keep has accepted limit
// items or the partition is exhausted. Expired and corrupt items do not count
// toward limit.
func (s *Store) queryNewest(ctx context.Context, pk, prefix string, limit int, keep func(item) bool) error {
	p := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":     &ddbtypes.AttributeValueMemberS{Value: pk},
			":prefix": &ddbtypes.AttributeValueMemberS{Value: prefix},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})

	now := s.now()
	kept := 0
	for kept < limit && p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, raw := range out.Items {
			if kept == limit {
				break
			}
			var it item
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				s.logger.Warn("skipping corrupt item", "pk", pk, "error", err)
				continue
			}
			if isExpired(now, it.TTL) {
				continue
			}
			if keep(it) {
				kept++
			}
		}
	}
	return nil
}
