package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func store(ctx context.Context, body string) error {
	var order map[string]string
	if err := json.Unmarshal([]byte(body), &order); err != nil {
		return err
	}
	_, err := uploads.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(os.Getenv("BUCKET")),
		Key:    aws.String(prefix + order["id"]),
		Body:   strings.NewReader(body),
	})
	if err != nil {
		return err
	}
	_, err = http.Post("https://audit.example.com", "text/plain", strings.NewReader(order["id"]))
	return err
}
