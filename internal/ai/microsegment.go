package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	log "github.com/sirupsen/logrus"
)

type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

const defaultMaxTokens = 2000

// Client runs micro-segmentation prompts against Claude on Bedrock.
type Client struct {
	Bedrock   BedrockAPI
	ModelID   string
	MaxTokens int
}

func NewClient(bedrock BedrockAPI) (*Client, error) {
	modelID := strings.TrimSpace(os.Getenv("BEDROCK_MODEL_ID"))
	if modelID == "" {
		return nil, fmt.Errorf("missing env BEDROCK_MODEL_ID")
	}
	return &Client{Bedrock: bedrock, ModelID: modelID, MaxTokens: defaultMaxTokens}, nil
}

// ProcessProduct extracts segmentation attributes from a single product.
// Up to two image URLs from the product payload are passed along with the
// prompt text; the model works from the URLs and the structured details.
func (c *Client) ProcessProduct(ctx context.Context, product map[string]any) (map[string]any, error) {
	details := map[string]any{
		"title":        product["title"],
		"description":  product["description"],
		"handle":       product["handle"],
		"product_type": product["product_type"],
		"tags":         product["tags"],
		"options":      product["options"],
	}
	detailsJSON, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal product details: %w", err)
	}

	urls := imageURLs(product, 2)
	urlBlock := "(none)"
	if len(urls) > 0 {
		urlBlock = strings.Join(urls, "\n")
	}

	prompt := fmt.Sprintf(productUserPrompt, string(detailsJSON), urlBlock)
	text, err := c.invoke(ctx, productSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return parseModelJSON(text)
}

// ProcessOrderHistory profiles a customer from their order history.
func (c *Client) ProcessOrderHistory(ctx context.Context, history map[string]any) (map[string]any, error) {
	historyJSON, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal order history: %w", err)
	}

	prompt := fmt.Sprintf(orderHistoryUserPrompt, string(historyJSON))
	text, err := c.invoke(ctx, orderHistorySystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return parseModelJSON(text)
}

// AnalyzeStorePreview identifies high-value market segments and product
// categories from a store's public details.
func (c *Client) AnalyzeStorePreview(ctx context.Context, details any) (map[string]any, error) {
	detailsJSON, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal store details: %w", err)
	}

	prompt := fmt.Sprintf(storePreviewUserPrompt, string(detailsJSON))
	text, err := c.invoke(ctx, storePreviewSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return parseModelJSON(text)
}

func (c *Client) invoke(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        c.maxTokens(),
		"temperature":       0.0,
		"system":            system,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
				},
			},
		},
	}

	body, _ := json.Marshal(payload)

	out, err := c.Bedrock.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock InvokeModel: %w", err)
	}

	var raw struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(out.Body, &raw); err != nil {
		return "", fmt.Errorf("bedrock response unmarshal: %w", err)
	}

	var text string
	for _, part := range raw.Content {
		if part.Type == "text" {
			text += part.Text
		}
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return defaultMaxTokens
}

var jsonOutputRe = regexp.MustCompile(`(?s)<JSON_OUTPUT>(.*?)</JSON_OUTPUT>`)

// parseModelJSON accepts either a bare JSON object or one wrapped in
// <JSON_OUTPUT></JSON_OUTPUT> tags.
func parseModelJSON(text string) (map[string]any, error) {
	candidate := text
	if m := jsonOutputRe.FindStringSubmatch(text); m != nil {
		candidate = m[1]
	}

	jsonStr := extractFirstJSONObject(candidate)
	if jsonStr == "" {
		return nil, fmt.Errorf("model did not return JSON object")
	}

	var res map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &res); err != nil {
		log.WithField("raw", truncate(jsonStr, 400)).Warn("model JSON parse failed")
		return nil, fmt.Errorf("model JSON parse failed: %w", err)
	}
	return res, nil
}

func imageURLs(product map[string]any, limit int) []string {
	images, ok := product["images"].([]any)
	if !ok {
		return nil
	}
	var urls []string
	for _, img := range images {
		m, ok := img.(map[string]any)
		if !ok {
			continue
		}
		src, _ := m["src"].(string)
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			urls = append(urls, src)
		}
		if len(urls) == limit {
			break
		}
	}
	return urls
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// extractFirstJSONObject finds the first balanced {...} block.
func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
