package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"microsegment/internal/db"
)

type CounterAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Limiter implements a fixed-window counter keyed by identifier and window
// start. Expired windows are reaped by the table's TTL attribute.
type Limiter struct {
	DDB CounterAPI
	Now func() time.Time
}

func NewLimiter(ddb CounterAPI) *Limiter {
	return &Limiter{DDB: ddb}
}

func (l *Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

// Allow increments the counter for the current window and reports whether the
// request is within the limit. An unconfigured table disables limiting.
func (l *Limiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	tbl := db.RateLimitTableName()
	if tbl == "" {
		return true, nil
	}

	now := l.now()
	windowStart := now.Truncate(window).Unix()
	key := fmt.Sprintf("RL#%s#%d", identifier, windowStart)
	exp := windowStart + 2*int64(window/time.Second)

	out, err := l.DDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(tbl),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression: aws.String("ADD #c :one SET ExpiresAt = if_not_exists(ExpiresAt, :exp)"),
		ExpressionAttributeNames: map[string]string{
			"#c": "Count",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":exp": &types.AttributeValueMemberN{Value: strconv.FormatInt(exp, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return false, fmt.Errorf("rate limit update: %w", err)
	}

	count := int64(0)
	if n, ok := out.Attributes["Count"].(*types.AttributeValueMemberN); ok {
		count, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	return count <= int64(limit), nil
}
