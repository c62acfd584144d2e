package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-chat-orderflow/internal/aws"
	"github.com/imrishuroy/go-chat-orderflow/internal/config"
	"github.com/imrishuroy/go-chat-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-chat-orderflow/internal/logging"
	"github.com/imrishuroy/go-chat-orderflow/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	p, err := newProcessor(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to init worker", zap.Error(err))
	}

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":1,"correlation_id":"local-1"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		if len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local message failed", zap.Any("failures", resp.BatchItemFailures))
		}
		return
	}

	lambda.Start(p.Handle)
}

func newProcessor(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Processor, error) {
	if cfg.Store.Backend == config.BackendFile {
		return NewProcessor(store.NewFileStore(cfg.ConfirmedFile()), nil, nil, logger), nil
	}

	clients, err := aws.NewAWSClients(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		return nil, err
	}
	return NewProcessor(
		store.NewDynamoStore(clients.DynamoDB, cfg.Store.ConfirmedTable),
		idempotency.NewStore(clients.DynamoDB, cfg.Store.IdempotencyTable, cfg.IdempotencyWindow()),
		aws.NewMetrics(clients.CloudWatch, cfg.AWS.MetricsNamespace),
		logger,
	), nil
}
