package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher pushes JSON messages onto an SNS topic. The worker queues are
// SQS subscriptions of that topic, so the API process and the workers share
// nothing but the queue and the tables.
type Publisher struct {
	SNS      SNSAPI
	TopicArn string
}

func NewPublisher(client SNSAPI, topicEnv string) (*Publisher, error) {
	arn := strings.TrimSpace(os.Getenv(topicEnv))
	if arn == "" {
		return nil, fmt.Errorf("%s not set", topicEnv)
	}
	return &Publisher{SNS: client, TopicArn: arn}, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.SNS.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.TopicArn),
		Message:  aws.String(string(b)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// UnwrapSQSBody returns the inner message for queues subscribed without raw
// message delivery, where SQS sees the SNS notification envelope.
func UnwrapSQSBody(body string) string {
	var envelope struct {
		Type    string `json:"Type"`
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil &&
		envelope.Type == "Notification" && envelope.Message != "" {
		return envelope.Message
	}
	return body
}
