package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/appconfig"
	"microsegment/internal/queue"
	"microsegment/internal/webhook"
)

type EventPublisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// WebhookReceiver verifies Shopify webhook deliveries and hands them to the
// worker queue. Shopify expects a fast 2xx; all real work happens async.
type WebhookReceiver struct {
	Events EventPublisher
}

func NewWebhookReceiver(cfg aws.Config) (*WebhookReceiver, error) {
	pub, err := queue.NewPublisher(sns.NewFromConfig(cfg), "WEBHOOK_EVENTS_TOPIC_ARN")
	if err != nil {
		return nil, err
	}
	return &WebhookReceiver{Events: pub}, nil
}

func (h *WebhookReceiver) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.RequestContext.HTTP.Method != "POST" {
		return errResp(405, "method not allowed")
	}

	topic := header(req, "x-shopify-topic")
	shop := header(req, "x-shopify-shop-domain")
	hmacB64 := header(req, "x-shopify-hmac-sha256")
	webhookID := header(req, "x-shopify-webhook-id")

	if topic == "" || shop == "" || hmacB64 == "" {
		return errResp(400, "missing shopify webhook headers")
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return errResp(400, "invalid body encoding")
		}
		body = decoded
	}

	secret, err := appconfig.ShopifyAPISecret(ctx)
	if err != nil {
		return errResp(500, "shopify api secret unavailable")
	}
	if !webhook.VerifyWebhookHMAC(body, secret, hmacB64) {
		log.WithFields(log.Fields{"shop": shop, "topic": topic}).Warn("webhook hmac verification failed")
		return errResp(401, "invalid hmac")
	}

	ev := webhook.Event{
		Topic:      topic,
		Shop:       shop,
		WebhookID:  webhookID,
		Payload:    json.RawMessage(body),
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Events.PublishJSON(ctx, ev); err != nil {
		// Verified but not enqueued. Shopify redelivers on non-2xx, and the
		// dedupe table makes redelivery safe, so ask for a retry.
		log.WithError(err).WithFields(log.Fields{"shop": shop, "topic": topic}).Error("webhook publish failed")
		return errResp(500, "failed to enqueue webhook")
	}

	return jsonResp(200, map[string]any{"ok": true})
}

func header(req events.APIGatewayV2HTTPRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
