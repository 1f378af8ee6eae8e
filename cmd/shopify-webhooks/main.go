package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	log "github.com/sirupsen/logrus"

	"microsegment/internal/handlers"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	h, err := handlers.NewWebhookReceiver(cfg)
	if err != nil {
		log.Fatalf("init webhook receiver: %v", err)
	}

	lambda.Start(h.Handle)
}
