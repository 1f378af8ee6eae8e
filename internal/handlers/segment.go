package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	bedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/ai"
)

// SegmentHandler exposes the micro-segmentation model over HTTP. Both
// endpoints are synchronous; callers batch on their side.
func SegmentHandler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if req.RequestContext.HTTP.Method != "POST" {
		return errResp(405, "method not allowed")
	}

	switch req.RawPath {
	case "/ai/products/process":
		return processSegment(ctx, req, func(c *ai.Client, input map[string]any) (map[string]any, error) {
			return c.ProcessProduct(ctx, input)
		})
	case "/ai/orders/process":
		return processSegment(ctx, req, func(c *ai.Client, input map[string]any) (map[string]any, error) {
			return c.ProcessOrderHistory(ctx, input)
		})
	case "/instant-preview/analyze-store":
		return analyzeStorePreview(ctx, req)
	default:
		return errResp(404, "not found")
	}
}

func processSegment(ctx context.Context, req events.APIGatewayV2HTTPRequest, run func(*ai.Client, map[string]any) (map[string]any, error)) (events.APIGatewayV2HTTPResponse, error) {
	input, err := requestJSON(req)
	if err != nil {
		return errResp(400, "invalid json body")
	}
	if len(input) == 0 {
		return errResp(400, "empty request body")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return errResp(500, "failed to init aws config")
	}
	client, err := ai.NewClient(bedrockruntime.NewFromConfig(awsCfg))
	if err != nil {
		return errResp(500, "model not configured")
	}

	result, err := run(client, input)
	if err != nil {
		log.WithError(err).Error("segmentation failed")
		return errResp(502, "model invocation failed")
	}
	return jsonResp(200, result)
}

func requestJSON(req events.APIGatewayV2HTTPRequest) (map[string]any, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, err
		}
		body = decoded
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	return m, nil
}
