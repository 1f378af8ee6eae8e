package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/db"
	"microsegment/internal/queue"
	"microsegment/internal/shopify"
	"microsegment/internal/webhook"
)

func handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	ddb, err := db.NewDynamoClient(ctx)
	if err != nil {
		return events.SQSEventResponse{}, err
	}

	proc := &webhook.Processor{
		Creds: &shopify.CredentialStore{DDB: ddb},
	}
	// Operational alerts are optional.
	if awsCfg, err := config.LoadDefaultConfig(ctx); err == nil {
		if pub, err := queue.NewPublisher(sns.NewFromConfig(awsCfg), "ALERTS_TOPIC_ARN"); err == nil {
			proc.Alerts = pub
		}
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, rec := range sqsEvent.Records {
		if err := webhook.Consume(ctx, ddb, proc, rec.Body); err != nil {
			log.WithError(err).WithField("message_id", rec.MessageId).Error("webhook processing failed, will retry")
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}
