package pull

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"microsegment/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrNotFound means the result is absent or expired — distinct from a job
// that failed.
var ErrNotFound = errors.New("pull result not found or expired")

// CacheKey is the canonical result key. The format is load-bearing: external
// callers construct it to fetch results.
func CacheKey(resource, shop, jobID string) string {
	return fmt.Sprintf("shopify:%s:%s:%s", resource, shop, jobID)
}

type CacheAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ResultCache stores pulled datasets in DynamoDB with a TTL attribute. The
// table's TTL expiry is lazy, so ExpiresAt is re-checked on every read.
type ResultCache struct {
	DDB CacheAPI

	// Now is swappable for expiry tests; nil means time.Now.
	Now func() time.Time
}

func (c *ResultCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *ResultCache) table() (string, error) {
	t := strings.TrimSpace(db.PullResultsTableName())
	if t == "" {
		return "", fmt.Errorf("PULL_RESULTS_TABLE not set")
	}
	return t, nil
}

func (c *ResultCache) Put(ctx context.Context, resource, shop, jobID string, payload []byte, ttl time.Duration) error {
	tbl, err := c.table()
	if err != nil {
		return err
	}
	now := c.now().UTC().Unix()
	exp := now + int64(ttl/time.Second)

	_, err = c.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tbl),
		Item: map[string]ddbtypes.AttributeValue{
			"PK":        &ddbtypes.AttributeValueMemberS{Value: CacheKey(resource, shop, jobID)},
			"Payload":   &ddbtypes.AttributeValueMemberS{Value: string(payload)},
			"CreatedAt": &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
			"ExpiresAt": &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", exp)},
		},
	})
	if err != nil {
		return fmt.Errorf("result cache PutItem: %w", err)
	}
	return nil
}

func (c *ResultCache) Get(ctx context.Context, resource, shop, jobID string) ([]byte, error) {
	tbl, err := c.table()
	if err != nil {
		return nil, err
	}
	out, err := c.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tbl),
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: CacheKey(resource, shop, jobID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("result cache GetItem: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	if expAttr, ok := out.Item["ExpiresAt"].(*ddbtypes.AttributeValueMemberN); ok {
		exp, err := strconv.ParseInt(expAttr.Value, 10, 64)
		if err == nil && exp <= c.now().UTC().Unix() {
			return nil, ErrNotFound
		}
	}

	payload, ok := out.Item["Payload"].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(payload.Value), nil
}
