package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-chat-orderflow/internal/aws"
	"github.com/imrishuroy/go-chat-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
	"github.com/imrishuroy/go-chat-orderflow/internal/store"
)

const defaultConcurrency = 4

// DispatchLedger records which orders have been dispatched so a redelivered
// SQS message is not handled twice. *idempotency.Store satisfies it.
type DispatchLedger interface {
	Claim(ctx context.Context, key, requestHash string) (bool, error)
	MarkDone(ctx context.Context, key string, orderID int64, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

type metricsRecorder interface {
	Count(ctx context.Context, name string, value float64, dimensions map[string]string) error
}

// Processor handles order_confirmed events from SQS.
type Processor struct {
	confirmed   store.Store
	ledger      DispatchLedger // optional
	metrics     metricsRecorder
	logger      *zap.Logger
	concurrency int
}

// NewProcessor creates a worker processor. ledger and metrics may be nil.
func NewProcessor(confirmed store.Store, ledger DispatchLedger, metrics metricsRecorder, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		confirmed:   confirmed,
		ledger:      ledger,
		metrics:     metrics,
		logger:      logger.Named("worker"),
		concurrency: defaultConcurrency,
	}
}

// Handle processes a batch concurrently and reports failed messages
// individually so SQS redelivers only those.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	p.logger.Info("received batch", zap.Int("messages", len(ev.Records)))

	var (
		mu       sync.Mutex
		failures []events.SQSBatchItemFailure
		g        errgroup.Group
	)
	g.SetLimit(p.concurrency)
	for _, rec := range ev.Records {
		g.Go(func() error {
			if err := p.processMessage(ctx, rec); err != nil {
				p.logger.Error("message failed", zap.String("message_id", rec.MessageId), zap.Error(err))
				mu.Lock()
				failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].ItemIdentifier < failures[j].ItemIdentifier })
	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg orders.ConfirmedEvent
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.OrderID <= 0 {
		return fmt.Errorf("invalid message body: missing order_id")
	}
	log := p.logger.With(zap.Int64("order_id", msg.OrderID), zap.String("correlation_id", msg.CorrelationID))

	key := "dispatch-" + strconv.FormatInt(msg.OrderID, 10)
	if p.ledger != nil {
		claimed, err := p.ledger.Claim(ctx, key, idempotency.HashRequest([]byte(key)))
		if err != nil {
			return fmt.Errorf("claim dispatch: %w", err)
		}
		if !claimed {
			log.Info("duplicate order_confirmed event")
			return nil
		}
	}

	if err := p.dispatch(ctx, msg.OrderID); err != nil {
		if p.ledger != nil {
			if mErr := p.ledger.MarkFailed(ctx, key, err.Error()); mErr != nil {
				log.Warn("mark dispatch failed", zap.Error(mErr))
			}
		}
		return err
	}

	if p.ledger != nil {
		resp := fmt.Sprintf(`{"order_id":%d,"status":"DISPATCHED"}`, msg.OrderID)
		if err := p.ledger.MarkDone(ctx, key, msg.OrderID, resp, 200); err != nil {
			return fmt.Errorf("mark dispatch done: %w", err)
		}
	}
	log.Info("order dispatched")
	return nil
}

func (p *Processor) dispatch(ctx context.Context, id int64) error {
	order, err := p.confirmed.LoadByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		return &orders.NotFoundError{OrderID: id}
	}
	if order.Status != orders.StatusConfirmed {
		return fmt.Errorf("order %d has status %s, want %s", id, order.Status, orders.StatusConfirmed)
	}

	if p.metrics != nil {
		dims := map[string]string{"Items": strconv.Itoa(len(order.Items))}
		if err := p.metrics.Count(ctx, aws.MetricOrdersDispatched, 1, dims); err != nil {
			p.logger.Warn("metric failed", zap.Error(err))
		}
	}
	return nil
}
