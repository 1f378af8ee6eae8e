package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/db"
	"microsegment/internal/pull"
	"microsegment/internal/queue"
	"microsegment/internal/ratelimit"
	"microsegment/internal/shopify"
)

const (
	pullStartLimit  = 100
	pullStartWindow = 60 * time.Second
)

// allowPullStart fails open: a broken limiter store must not block pulls.
func allowPullStart(ctx context.Context, limiter *ratelimit.Limiter, shop string) bool {
	ok, err := limiter.Allow(ctx, "pull:"+shop, pullStartLimit, pullStartWindow)
	if err != nil {
		log.WithError(err).WithField("shop", shop).Warn("rate limiter unavailable")
		return true
	}
	return ok
}

// DataPullHandler routes bulk pull starts, status checks, and result reads.
func DataPullHandler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := strings.TrimSuffix(req.RawPath, "/")
	method := req.RequestContext.HTTP.Method

	switch {
	case path == "/data-pull/start":
		if method != "POST" {
			return errResp(405, "method not allowed")
		}
		return startPullAll(ctx, req)

	case strings.HasPrefix(path, "/data-pull/status/"):
		if method != "GET" {
			return errResp(405, "method not allowed")
		}
		return pullStatus(ctx, strings.TrimPrefix(path, "/data-pull/status/"))

	case strings.HasPrefix(path, "/data-pull/results/"):
		if method != "GET" {
			return errResp(405, "method not allowed")
		}
		return pullResults(ctx, req, strings.TrimPrefix(path, "/data-pull/results/"))

	case strings.HasPrefix(path, "/data-pull/"):
		if method != "POST" {
			return errResp(405, "method not allowed")
		}
		return startPullOne(ctx, req, strings.TrimPrefix(path, "/data-pull/"))

	case path == "/shopify/data/transactions":
		if method != "GET" {
			return errResp(405, "method not allowed")
		}
		return orderTransactions(ctx, req)

	case strings.HasPrefix(path, "/shopify/data/"):
		if method != "GET" {
			return errResp(405, "method not allowed")
		}
		return syncDataFetch(ctx, req, strings.TrimPrefix(path, "/shopify/data/"))

	default:
		return errResp(404, "not found")
	}
}

func newCoordinator(ctx context.Context) (*pull.Coordinator, *ratelimit.Limiter, error) {
	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return nil, nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	pub, err := queue.NewPublisher(sns.NewFromConfig(awsCfg), "PULL_TASKS_TOPIC_ARN")
	if err != nil {
		return nil, nil, err
	}

	coord := &pull.Coordinator{
		Jobs:  &pull.JobStore{DDB: ddb},
		Queue: pub,
	}
	return coord, ratelimit.NewLimiter(ddb), nil
}

func requireInstalledShop(ctx context.Context, rawShop string) (string, int, string) {
	shop, err := shopify.NormalizeShopDomain(rawShop)
	if err != nil {
		return "", 400, "invalid shop (expected like your-store.myshopify.com)"
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return "", 500, "failed to init dynamodb"
	}
	creds := &shopify.CredentialStore{DDB: ddb}
	cred, err := creds.Get(ctx, shop)
	if err != nil {
		if errors.Is(err, shopify.ErrShopNotFound) {
			return "", 404, "shop is not connected"
		}
		return "", 500, "credential lookup failed"
	}
	if !cred.Installed {
		return "", 404, "shop is not connected"
	}
	return shop, 0, ""
}

func startPullAll(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	shop, status, msg := requireInstalledShop(ctx, req.QueryStringParameters["shop"])
	if status != 0 {
		return errResp(status, msg)
	}

	coord, limiter, err := newCoordinator(ctx)
	if err != nil {
		return errResp(500, "failed to init pull coordinator")
	}
	if !allowPullStart(ctx, limiter, shop) {
		return errResp(429, "too many pull requests for this shop")
	}

	job, err := coord.PullAll(ctx, shop)
	if err != nil {
		return errResp(500, "failed to start pull")
	}

	return jsonResp(202, map[string]any{
		"job_id":   job.JobID,
		"shop":     job.Shop,
		"state":    job.State,
		"sub_jobs": job.SubJobs,
	})
}

func startPullOne(ctx context.Context, req events.APIGatewayV2HTTPRequest, resource string) (events.APIGatewayV2HTTPResponse, error) {
	if _, ok := pull.ResourceByName(resource); !ok {
		return errResp(404, "unknown resource")
	}

	shop, status, msg := requireInstalledShop(ctx, req.QueryStringParameters["shop"])
	if status != 0 {
		return errResp(status, msg)
	}

	coord, limiter, err := newCoordinator(ctx)
	if err != nil {
		return errResp(500, "failed to init pull coordinator")
	}
	if !allowPullStart(ctx, limiter, shop) {
		return errResp(429, "too many pull requests for this shop")
	}

	job, err := coord.PullOne(ctx, shop, resource)
	if err != nil {
		return errResp(500, "failed to start pull")
	}

	return jsonResp(202, map[string]any{
		"job_id":   job.JobID,
		"shop":     job.Shop,
		"resource": job.Resource,
		"state":    job.State,
	})
}

func pullStatus(ctx context.Context, jobID string) (events.APIGatewayV2HTTPResponse, error) {
	if jobID == "" || strings.Contains(jobID, "/") {
		return errResp(400, "invalid job id")
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return errResp(500, "failed to init dynamodb")
	}

	jobs := &pull.JobStore{DDB: ddb}
	job, err := jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, pull.ErrJobNotFound) {
			return errResp(404, "job not found")
		}
		return errResp(500, "job lookup failed")
	}

	resp := map[string]any{
		"job_id":     job.JobID,
		"shop":       job.Shop,
		"state":      job.State,
		"phase":      job.Phase,
		"count":      job.Count,
		"updated_at": job.UpdatedAt,
	}
	if job.Resource != "" {
		resp["resource"] = job.Resource
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	if len(job.SubJobs) > 0 {
		resp["sub_jobs"] = job.SubJobs
	}
	return jsonResp(200, resp)
}

func pullResults(ctx context.Context, req events.APIGatewayV2HTTPRequest, rest string) (events.APIGatewayV2HTTPResponse, error) {
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errResp(400, "expected /data-pull/results/{shop}/{job_id}")
	}
	shop, jobID := parts[0], parts[1]

	resource := strings.TrimSpace(req.QueryStringParameters["type"])
	if _, ok := pull.ResourceByName(resource); !ok {
		return errResp(400, "type must be one of customers, products, orders")
	}

	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return errResp(500, "failed to init dynamodb")
	}

	cache := &pull.ResultCache{DDB: ddb}
	payload, err := cache.Get(ctx, resource, shop, jobID)
	if err != nil {
		if errors.Is(err, pull.ErrNotFound) {
			return errResp(404, "result not found or expired")
		}
		return errResp(500, "result lookup failed")
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: 200,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: string(payload),
	}, nil
}
