package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}}
}

func (f *fakeCounter) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pk := params.Key["PK"].(*ddbtypes.AttributeValueMemberS).Value
	f.counts[pk]++
	return &dynamodb.UpdateItemOutput{
		Attributes: map[string]ddbtypes.AttributeValue{
			"Count": &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(f.counts[pk], 10)},
		},
	}, nil
}

func TestAllowWithinLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_TABLE", "limits")
	l := &Limiter{DDB: newFakeCounter()}

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(context.Background(), "pull:demo.myshopify.com", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should be allowed", i+1)
	}

	ok, err := l.Allow(context.Background(), "pull:demo.myshopify.com", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "sixth request must be rejected")
}

func TestAllowIsolatesIdentifiers(t *testing.T) {
	t.Setenv("RATE_LIMIT_TABLE", "limits")
	l := &Limiter{DDB: newFakeCounter()}

	ok, err := l.Allow(context.Background(), "pull:a.myshopify.com", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(context.Background(), "pull:b.myshopify.com", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different identifier has its own window")
}

func TestAllowResetsOnNewWindow(t *testing.T) {
	t.Setenv("RATE_LIMIT_TABLE", "limits")
	now := time.Unix(1_700_000_000, 0)
	l := &Limiter{DDB: newFakeCounter(), Now: func() time.Time { return now }}

	ok, err := l.Allow(context.Background(), "x", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(context.Background(), "x", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	ok, err = l.Allow(context.Background(), "x", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new window starts a fresh counter")
}

func TestAllowUnconfiguredTableAllowsAll(t *testing.T) {
	t.Setenv("RATE_LIMIT_TABLE", "")
	l := &Limiter{DDB: newFakeCounter()}

	ok, err := l.Allow(context.Background(), "x", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAllowPropagatesStoreError(t *testing.T) {
	t.Setenv("RATE_LIMIT_TABLE", "limits")
	f := newFakeCounter()
	f.err = errors.New("throttled")
	l := &Limiter{DDB: f}

	_, err := l.Allow(context.Background(), "x", 1, time.Minute)
	require.Error(t, err)
}
