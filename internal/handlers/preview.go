package handlers

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/ai"
	"microsegment/internal/preview"
)

// analyzeStorePreview verifies a public store URL, scrapes its homepage, and
// returns AI market-segment insights alongside the scraped details. AI
// failures degrade to a partial result rather than an error response.
func analyzeStorePreview(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	input, err := requestJSON(req)
	if err != nil {
		return errResp(400, "invalid json body")
	}
	storeURL, _ := input["store_url"].(string)
	storeURL = strings.TrimSpace(storeURL)
	if storeURL == "" {
		return errResp(400, "store_url is required")
	}

	fetcher := preview.NewFetcher()
	if !fetcher.Verify(ctx, storeURL) {
		return errResp(400, "invalid or unverified store url")
	}

	info, err := fetcher.Fetch(ctx, storeURL)
	if err != nil {
		// Verification passed, so serve whatever was extracted.
		log.WithError(err).WithField("url", storeURL).Warn("store page scrape incomplete")
	}

	analysis := map[string]any{
		"high_value_segments": []any{},
		"product_categories":  []any{},
		"ai_status":           "success",
		"ai_error":            nil,
	}
	status, message := "SUCCESS", "store details and AI analysis fetched successfully"

	insights, aiErr := storeInsights(ctx, info)
	if aiErr != nil {
		log.WithError(aiErr).WithField("url", storeURL).Error("store preview analysis failed")
		analysis["ai_status"] = "failed"
		analysis["ai_error"] = aiErr.Error()
		status, message = "PARTIAL_SUCCESS", "store details fetched; AI analysis failed"
	} else {
		if v, ok := insights["high_value_segments"]; ok {
			analysis["high_value_segments"] = v
		}
		if v, ok := insights["product_categories"]; ok {
			analysis["product_categories"] = v
		}
	}

	return jsonResp(200, map[string]any{
		"store_preview_details": info,
		"ai_analysis":           analysis,
		"status":                status,
		"message":               message,
	})
}

func storeInsights(ctx context.Context, info *preview.StoreInfo) (map[string]any, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client, err := ai.NewClient(bedrockruntime.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return client.AnalyzeStorePreview(ctx, info)
}
