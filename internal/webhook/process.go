package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/db"
	"microsegment/internal/queue"
	"microsegment/internal/shopify"
)

const (
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
	TopicAppUninstalled       = "app/uninstalled"
)

// Event is the message published for each verified webhook delivery.
type Event struct {
	Topic      string          `json:"topic"`
	Shop       string          `json:"shop"`
	WebhookID  string          `json:"webhook_id"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt string          `json:"received_at"`
}

type DedupeAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ClaimWebhook records the webhook ID with a conditional put so a redelivered
// webhook is processed at most once. Returns (isDuplicate, error).
func ClaimWebhook(ctx context.Context, ddb DedupeAPI, webhookID, shopDomain, topic string) (bool, error) {
	tbl := db.WebhookDedupeTableName()
	if tbl == "" || webhookID == "" {
		// Not configured; don't block processing.
		return false, nil
	}

	// Keep dedupe records for 7 days.
	exp := time.Now().UTC().Add(7 * 24 * time.Hour).Unix()

	_, err := ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tbl),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("WH#%s", webhookID)},
			"Shop":      &types.AttributeValueMemberS{Value: shopDomain},
			"Topic":     &types.AttributeValueMemberS{Value: topic},
			"CreatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
			"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", exp)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return true, nil
		}
		return false, fmt.Errorf("dedupe put: %w", err)
	}
	return false, nil
}

// ReleaseWebhook removes a dedupe claim so a redelivery of the same webhook
// can be processed again.
func ReleaseWebhook(ctx context.Context, ddb DedupeAPI, webhookID string) error {
	tbl := db.WebhookDedupeTableName()
	if tbl == "" || webhookID == "" {
		return nil
	}

	_, err := ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(tbl),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("WH#%s", webhookID)},
		},
	})
	if err != nil {
		return fmt.Errorf("dedupe delete: %w", err)
	}
	return nil
}

// Alerter publishes operational notifications; nil disables alerting.
type Alerter interface {
	PublishJSON(ctx context.Context, v any) error
}

// Processor applies the side effects of verified webhook events.
type Processor struct {
	Creds  *shopify.CredentialStore
	Alerts Alerter
}

func (p *Processor) Handle(ctx context.Context, ev Event) error {
	logger := log.WithFields(log.Fields{
		"topic": ev.Topic,
		"shop":  ev.Shop,
	})

	switch ev.Topic {
	case TopicAppUninstalled:
		if err := p.Creds.MarkUninstalled(ctx, ev.Shop); err != nil {
			if errors.Is(err, shopify.ErrShopNotFound) {
				logger.Warn("uninstall webhook for unknown shop")
				return nil
			}
			return fmt.Errorf("mark uninstalled: %w", err)
		}
		logger.Info("app uninstalled, credential disabled")
		p.alert(ctx, ev, "app uninstalled")

	case TopicShopRedact:
		if err := p.Creds.Delete(ctx, ev.Shop); err != nil {
			return fmt.Errorf("shop redact: %w", err)
		}
		logger.Info("shop data redacted")

	case TopicCustomersRedact, TopicCustomersDataRequest:
		// No customer PII is stored outside pull results, which expire on
		// their own. Acknowledge and record the request.
		logger.Info("GDPR webhook acknowledged")

	default:
		logger.WithField("webhook_id", ev.WebhookID).Warn("unhandled webhook topic")
	}
	return nil
}

// Consume runs the full pipeline for one queued delivery: unwrap, validate,
// claim the webhook ID, then apply side effects. A claim made for a delivery
// whose processing fails is released again, so the queue's redelivery is
// processed instead of being dropped as a duplicate.
func Consume(ctx context.Context, ddb DedupeAPI, proc *Processor, body string) error {
	var ev Event
	if err := json.Unmarshal([]byte(queue.UnwrapSQSBody(body)), &ev); err != nil {
		return fmt.Errorf("unmarshal webhook event: %w", err)
	}
	if ev.Topic == "" || ev.Shop == "" {
		return fmt.Errorf("incomplete webhook event")
	}

	dup, err := ClaimWebhook(ctx, ddb, ev.WebhookID, ev.Shop, ev.Topic)
	if err != nil {
		return err
	}
	if dup {
		log.WithFields(log.Fields{"shop": ev.Shop, "topic": ev.Topic, "webhook_id": ev.WebhookID}).
			Info("duplicate webhook skipped")
		return nil
	}

	if err := proc.Handle(ctx, ev); err != nil {
		if relErr := ReleaseWebhook(ctx, ddb, ev.WebhookID); relErr != nil {
			log.WithError(relErr).WithField("webhook_id", ev.WebhookID).
				Error("failed to release dedupe claim")
		}
		return err
	}
	return nil
}

func (p *Processor) alert(ctx context.Context, ev Event, reason string) {
	if p.Alerts == nil {
		return
	}
	if err := p.Alerts.PublishJSON(ctx, map[string]string{
		"reason": reason,
		"shop":   ev.Shop,
		"topic":  ev.Topic,
	}); err != nil {
		log.WithError(err).Warn("alert publish failed")
	}
}
