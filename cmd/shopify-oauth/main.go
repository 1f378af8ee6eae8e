package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"microsegment/internal/handlers"
)

func main() {
	lambda.Start(handlers.OAuthHandler)
}
