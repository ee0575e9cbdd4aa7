package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/awslabs/aws-lambda-go-api-proxy/gorillamux"
	"github.com/jordanharrington/visualgate/internal/config"
	"github.com/jordanharrington/visualgate/internal/logging"
	"github.com/jordanharrington/visualgate/internal/server"
)

func main() {
	cfg, err := config.Load(os.Getenv("VISUALGATE_CONFIG"), os.LookupEnv, nil)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Lambda collects stderr; file rotation does not apply here.
	logger, _, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: "json"})
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	r, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("failed to create router: %v", err)
	}

	adapter := gorillamux.New(r)
	lambda.Start(func(ctx context.Context, req core.SwitchableAPIGatewayRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
