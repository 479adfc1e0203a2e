package main

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const prefix = "orders/"

var (
	uploads  *s3.Client
	queue    = sqs.NewFromConfig(aws.Config{})
	queueURL = os.Getenv("QUEUE")
)

func init() {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		panic(err)
	}
	uploads = s3.NewFromConfig(cfg)
}

func handle(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		if record.Body == "" {
			continue
		}
		if err := store(ctx, record.Body); err != nil {
			return err
		}
	}
	_, err := queue.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(strings.ToUpper(event.Records[0].Body)),
	})
	return err
}

func main() {
	lambda.Start(handle)
}
