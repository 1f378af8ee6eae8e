package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/appconfig"
	"microsegment/internal/db"
	"microsegment/internal/pull"
	"microsegment/internal/queue"
	"microsegment/internal/shopify"
)

func handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		// Fail whole batch (infra issue)
		return events.SQSEventResponse{}, err
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}

	runner := &pull.Runner{
		Shopify: shopify.NewClient(appconfig.ShopifyAPIVersion()),
		Jobs:    &pull.JobStore{DDB: ddb},
		Cache:   &pull.ResultCache{DDB: ddb},
		Archive: pull.NewArchive(s3.NewFromConfig(awsCfg)),
		TTL:     time.Duration(appconfig.PullResultTTLSeconds()) * time.Second,
	}
	creds := &shopify.CredentialStore{DDB: ddb}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, rec := range sqsEvent.Records {
		if err := processOne(ctx, runner, creds, rec.Body); err != nil {
			log.WithError(err).WithField("message_id", rec.MessageId).Error("pull task failed, will retry")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func processOne(ctx context.Context, runner *pull.Runner, creds *shopify.CredentialStore, body string) error {
	var msg pull.TaskMessage
	if err := json.Unmarshal([]byte(queue.UnwrapSQSBody(body)), &msg); err != nil {
		return fmt.Errorf("unmarshal task message: %w", err)
	}
	if msg.JobID == "" || msg.Shop == "" || msg.Resource == "" {
		return fmt.Errorf("incomplete task message: %+v", msg)
	}

	job, err := runner.Jobs.Get(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", msg.JobID, err)
	}

	token, _, err := creds.AccessToken(ctx, msg.Shop)
	if err != nil {
		// No usable credential; record the failure and drop the message.
		log.WithError(err).WithField("shop", msg.Shop).Warn("no access token for pull job")
		job.Error = "shop credential unavailable"
		return runner.Jobs.SetPhase(ctx, job, pull.JobStateFailure, pull.PhaseDone)
	}

	result, err := runner.Run(ctx, job, token)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"job_id":   msg.JobID,
		"shop":     msg.Shop,
		"resource": msg.Resource,
		"success":  result.Success,
		"count":    result.Count,
	}).Info("pull task finished")
	return nil
}

func main() {
	lambda.Start(handler)
}
