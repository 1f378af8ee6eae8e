package pull

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDDB is an in-memory table keyed by PK|SK, good enough for the
// GetItem/PutItem surface the stores use.
type fakeDDB struct {
	mu     sync.Mutex
	items  map[string]map[string]ddbtypes.AttributeValue
	putErr error
	getErr error
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func itemKey(attrs map[string]ddbtypes.AttributeValue) string {
	pk, sk := "", ""
	if v, ok := attrs["PK"].(*ddbtypes.AttributeValueMemberS); ok {
		pk = v.Value
	}
	if v, ok := attrs["SK"].(*ddbtypes.AttributeValueMemberS); ok {
		sk = v.Value
	}
	return pk + "|" + sk
}

func (f *fakeDDB) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}
