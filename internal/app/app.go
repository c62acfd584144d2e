// Package app wires configuration into the stores, oracle and assembler
// shared by the api and orderctl binaries.
package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-chat-orderflow/internal/assembly"
	"github.com/imrishuroy/go-chat-orderflow/internal/aws"
	"github.com/imrishuroy/go-chat-orderflow/internal/config"
	"github.com/imrishuroy/go-chat-orderflow/internal/extraction"
	"github.com/imrishuroy/go-chat-orderflow/internal/history"
	"github.com/imrishuroy/go-chat-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-chat-orderflow/internal/store"
)

// App holds the wired components.
type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	Assembler   *assembly.Assembler
	History     history.Store
	Idempotency *idempotency.Store // nil with the file backend
	Metrics     *aws.Metrics       // nil when AWS is not configured
	Clients     *aws.AWSClients    // nil when AWS is not configured
}

// New builds an App from cfg. A nil oracle means the Gemini oracle configured
// by cfg.LLM.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, oracle extraction.Oracle) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	if cfg.Store.Backend == config.BackendDynamoDB || cfg.AWS.OrdersQueueURL != "" {
		clients, err := aws.NewAWSClients(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to init aws clients: %w", err)
		}
		a.Clients = clients
		a.Metrics = aws.NewMetrics(clients.CloudWatch, cfg.AWS.MetricsNamespace)
	}

	drafts, confirmed, err := a.orderStores()
	if err != nil {
		return nil, err
	}

	if oracle == nil {
		client, err := extraction.NewGeminiClient(ctx, cfg.LLM.APIKey)
		if err != nil {
			return nil, err
		}
		oracle = extraction.NewGeminiOracle(client.Models, extraction.GeminiConfig{
			Model:   cfg.LLM.Model,
			Timeout: cfg.OracleTimeout(),
		}, logger)
	}

	opts := []assembly.Option{assembly.WithLogger(logger)}
	if a.Metrics != nil {
		opts = append(opts, assembly.WithMetrics(a.Metrics))
	}
	if a.Clients != nil && cfg.AWS.OrdersQueueURL != "" {
		opts = append(opts, assembly.WithPublisher(aws.NewPublisher(a.Clients.SQS, cfg.AWS.OrdersQueueURL)))
	}
	a.Assembler = assembly.New(oracle, drafts, confirmed, opts...)

	return a, nil
}

func (a *App) orderStores() (store.Store, store.Store, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		db := a.Clients.DynamoDB
		a.History = history.NewDynamoStore(db, cfg.Store.HistoryTable)
		a.Idempotency = idempotency.NewStore(db, cfg.Store.IdempotencyTable, cfg.IdempotencyWindow())
		return store.NewDynamoStore(db, cfg.Store.DraftsTable),
			store.NewDynamoStore(db, cfg.Store.ConfirmedTable),
			nil
	case config.BackendFile:
		if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		a.History = history.NewFileStore(cfg.HistoryFile())
		return store.NewFileStore(cfg.DraftsFile()),
			store.NewFileStore(cfg.ConfirmedFile()),
			nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
