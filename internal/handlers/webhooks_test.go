package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microsegment/internal/webhook"
)

type capturePublisher struct {
	events []webhook.Event
	err    error
}

func (p *capturePublisher) PublishJSON(ctx context.Context, v any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, v.(webhook.Event))
	return nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body []byte, headers map[string]string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{
		RawPath: "/webhooks",
		Headers: headers,
		Body:    string(body),
	}
	req.RequestContext.HTTP.Method = "POST"
	return req
}

func TestWebhookAcceptedAndPublished(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "shpss_secret")

	body := []byte(`{"id":42,"domain":"demo.myshopify.com"}`)
	pub := &capturePublisher{}
	h := &WebhookReceiver{Events: pub}

	resp, err := h.Handle(context.Background(), webhookRequest(body, map[string]string{
		"x-shopify-topic":       "app/uninstalled",
		"x-shopify-shop-domain": "demo.myshopify.com",
		"x-shopify-hmac-sha256": sign(body, "shpss_secret"),
		"x-shopify-webhook-id":  "wh-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, "app/uninstalled", ev.Topic)
	assert.Equal(t, "demo.myshopify.com", ev.Shop)
	assert.Equal(t, "wh-1", ev.WebhookID)
	assert.JSONEq(t, string(body), string(ev.Payload))
}

func TestWebhookHeaderLookupIsCaseInsensitive(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "shpss_secret")

	body := []byte(`{}`)
	pub := &capturePublisher{}
	h := &WebhookReceiver{Events: pub}

	resp, err := h.Handle(context.Background(), webhookRequest(body, map[string]string{
		"X-Shopify-Topic":       "shop/redact",
		"X-Shopify-Shop-Domain": "demo.myshopify.com",
		"X-Shopify-Hmac-Sha256": sign(body, "shpss_secret"),
	}))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	require.Len(t, pub.events, 1)
}

func TestWebhookBase64EncodedBody(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "shpss_secret")

	body := []byte(`{"id":7}`)
	pub := &capturePublisher{}
	h := &WebhookReceiver{Events: pub}

	req := webhookRequest(nil, map[string]string{
		"x-shopify-topic":       "customers/redact",
		"x-shopify-shop-domain": "demo.myshopify.com",
		"x-shopify-hmac-sha256": sign(body, "shpss_secret"),
	})
	req.Body = base64.StdEncoding.EncodeToString(body)
	req.IsBase64Encoded = true

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	require.Len(t, pub.events, 1)
	assert.JSONEq(t, string(body), string(pub.events[0].Payload))
}

func TestWebhookMissingHeaders(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "shpss_secret")
	h := &WebhookReceiver{Events: &capturePublisher{}}

	resp, err := h.Handle(context.Background(), webhookRequest([]byte(`{}`), map[string]string{
		"x-shopify-topic": "app/uninstalled",
	}))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestWebhookInvalidHMAC(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "shpss_secret")

	body := []byte(`{"id":42}`)
	pub := &capturePublisher{}
	h := &WebhookReceiver{Events: pub}

	resp, err := h.Handle(context.Background(), webhookRequest(body, map[string]string{
		"x-shopify-topic":       "app/uninstalled",
		"x-shopify-shop-domain": "demo.myshopify.com",
		"x-shopify-hmac-sha256": sign(body, "wrong-secret"),
	}))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
	assert.Empty(t, pub.events, "unverified payloads must not be published")
}

func TestWebhookPublishFailureAsksForRetry(t *testing.T) {
	t.Setenv("SHOPIFY_API_SECRET", "shpss_secret")

	body := []byte(`{"id":42}`)
	pub := &capturePublisher{err: errors.New("sns down")}
	h := &WebhookReceiver{Events: pub}

	resp, err := h.Handle(context.Background(), webhookRequest(body, map[string]string{
		"x-shopify-topic":       "app/uninstalled",
		"x-shopify-shop-domain": "demo.myshopify.com",
		"x-shopify-hmac-sha256": sign(body, "shpss_secret"),
	}))
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)
}

func TestWebhookRejectsNonPost(t *testing.T) {
	h := &WebhookReceiver{Events: &capturePublisher{}}
	req := webhookRequest(nil, nil)
	req.RequestContext.HTTP.Method = "GET"

	resp, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 405, resp.StatusCode)
}
