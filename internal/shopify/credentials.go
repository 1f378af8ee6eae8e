package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"microsegment/internal/db"
	"microsegment/internal/security"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ShopCredential mirrors the DynamoDB item for an installed shop.
// PK = SHOP#<domain>, SK = CREDENTIAL.
type ShopCredential struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	Shop           string `dynamodbav:"Shop"`
	AccessTokenEnc string `dynamodbav:"AccessTokenEnc"`
	Scope          string `dynamodbav:"Scope"`
	Installed      bool   `dynamodbav:"Installed"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UninstalledAt  string `dynamodbav:"UninstalledAt,omitempty"`
}

type CredentialsAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type CredentialStore struct {
	DDB CredentialsAPI
}

// ErrShopNotFound means no credential record exists for the shop.
var ErrShopNotFound = errors.New("shop not connected")

func credKey(shop string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: "SHOP#" + shop},
		"SK": &ddbtypes.AttributeValueMemberS{Value: "CREDENTIAL"},
	}
}

func (s *CredentialStore) table() (string, error) {
	t := strings.TrimSpace(db.ShopsTableName())
	if t == "" {
		return "", fmt.Errorf("SHOPIFY_SHOPS_TABLE not set")
	}
	return t, nil
}

// Save encrypts the access token and persists the credential record.
func (s *CredentialStore) Save(ctx context.Context, shop, accessToken, scope string) error {
	tbl, err := s.table()
	if err != nil {
		return err
	}
	key, err := security.TokenKey()
	if err != nil {
		return err
	}
	enc, err := security.EncryptToken(key, accessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}

	cred := ShopCredential{
		PK:             "SHOP#" + shop,
		SK:             "CREDENTIAL",
		Shop:           shop,
		AccessTokenEnc: enc,
		Scope:          scope,
		Installed:      true,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	item, err := attributevalue.MarshalMap(cred)
	if err != nil {
		return err
	}
	_, err = s.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tbl),
		Item:      item,
	})
	return err
}

// AccessToken loads and decrypts the stored token for a shop.
func (s *CredentialStore) AccessToken(ctx context.Context, shop string) (string, *ShopCredential, error) {
	cred, err := s.Get(ctx, shop)
	if err != nil {
		return "", nil, err
	}
	if !cred.Installed {
		return "", nil, fmt.Errorf("shop %s is not installed", shop)
	}
	key, err := security.TokenKey()
	if err != nil {
		return "", nil, err
	}
	token, err := security.DecryptToken(key, cred.AccessTokenEnc)
	if err != nil {
		return "", nil, fmt.Errorf("decrypt access token: %w", err)
	}
	return token, cred, nil
}

func (s *CredentialStore) Get(ctx context.Context, shop string) (*ShopCredential, error) {
	tbl, err := s.table()
	if err != nil {
		return nil, err
	}
	out, err := s.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tbl),
		Key:       credKey(shop),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrShopNotFound, shop)
	}
	var cred ShopCredential
	if err := attributevalue.UnmarshalMap(out.Item, &cred); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cred.AccessTokenEnc) == "" {
		return nil, fmt.Errorf("no access token on record for %s", shop)
	}
	return &cred, nil
}

// MarkUninstalled flips the installed flag, keeping the record for audit.
func (s *CredentialStore) MarkUninstalled(ctx context.Context, shop string) error {
	tbl, err := s.table()
	if err != nil {
		return err
	}
	cred, err := s.Get(ctx, shop)
	if err != nil {
		return err
	}
	cred.Installed = false
	cred.UninstalledAt = time.Now().UTC().Format(time.RFC3339)
	item, err := attributevalue.MarshalMap(cred)
	if err != nil {
		return err
	}
	_, err = s.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tbl),
		Item:      item,
	})
	return err
}

// Delete removes the credential entirely (shop/redact).
func (s *CredentialStore) Delete(ctx context.Context, shop string) error {
	tbl, err := s.table()
	if err != nil {
		return err
	}
	_, err = s.DDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(tbl),
		Key:       credKey(shop),
	})
	return err
}
