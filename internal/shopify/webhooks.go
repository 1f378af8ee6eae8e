package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Topics every install must subscribe to: the GDPR set plus uninstall.
var RequiredWebhookTopics = []string{
	"customers/data_request",
	"customers/redact",
	"shop/redact",
	"app/uninstalled",
}

type webhookCreateReq struct {
	Webhook struct {
		Address string `json:"address"`
		Topic   string `json:"topic"`
		Format  string `json:"format"`
	} `json:"webhook"`
}

// RegisterWebhook creates a webhook subscription over the REST Admin API
// pointing at our receiver endpoint.
func (c *Client) RegisterWebhook(ctx context.Context, shop, accessToken, topic, address string) error {
	var endpoint string
	if c.BaseURL != "" {
		endpoint = c.BaseURL + "/admin/api/" + c.APIVersion + "/webhooks.json"
	} else {
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/webhooks.json", shop, c.APIVersion)
	}

	var payload webhookCreateReq
	payload.Webhook.Address = address
	payload.Webhook.Topic = topic
	payload.Webhook.Format = "json"

	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	res, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("create webhook %s failed: http %d: %s", topic, res.StatusCode, string(raw))
	}
	return nil
}

// RegisterRequiredWebhooks subscribes the shop to every required topic.
// Partial failure is tolerated; failed topics are reported for logging.
func (c *Client) RegisterRequiredWebhooks(ctx context.Context, shop, accessToken, callbackURL string) (created []string, failed []map[string]string) {
	for _, t := range RequiredWebhookTopics {
		if err := c.RegisterWebhook(ctx, shop, accessToken, t, callbackURL); err != nil {
			failed = append(failed, map[string]string{"topic": t, "error": err.Error()})
			continue
		}
		created = append(created, t)
	}
	return created, failed
}
