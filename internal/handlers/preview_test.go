package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewRequest(body string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{
		RawPath: "/instant-preview/analyze-store",
		Body:    body,
	}
	req.RequestContext.HTTP.Method = "POST"
	return req
}

func TestAnalyzeStorePreviewRejectsBadInput(t *testing.T) {
	resp, err := SegmentHandler(context.Background(), previewRequest("not json"))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	resp, err = SegmentHandler(context.Background(), previewRequest(`{"store_url":"  "}`))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestAnalyzeStorePreviewRejectsUnreachableStore(t *testing.T) {
	resp, err := SegmentHandler(context.Background(), previewRequest(`{"store_url":"http://127.0.0.1:1/nope"}`))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestAnalyzeStorePreviewDegradesWhenModelUnavailable(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("BEDROCK_MODEL_ID", "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html lang="en"><head><title>Acme Outfitters</title></head><body></body></html>`))
	}))
	defer srv.Close()

	resp, err := SegmentHandler(context.Background(), previewRequest(fmt.Sprintf(`{"store_url":%q}`, srv.URL)))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var out struct {
		Status  string `json:"status"`
		Details struct {
			Name string `json:"name"`
		} `json:"store_preview_details"`
		Analysis struct {
			AIStatus string `json:"ai_status"`
			AIError  string `json:"ai_error"`
		} `json:"ai_analysis"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	assert.Equal(t, "PARTIAL_SUCCESS", out.Status)
	assert.Equal(t, "Acme Outfitters", out.Details.Name)
	assert.Equal(t, "failed", out.Analysis.AIStatus)
	assert.NotEmpty(t, out.Analysis.AIError)
}
