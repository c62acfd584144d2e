// Package assembly turns a stream of customer messages into order records.
// It owns the draft/confirmed state machine: extract, merge, gate on
// completeness, and commit.
package assembly

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	awsclient "github.com/imrishuroy/go-chat-orderflow/internal/aws"
	"github.com/imrishuroy/go-chat-orderflow/internal/extraction"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
	"github.com/imrishuroy/go-chat-orderflow/internal/store"
)

// EventPublisher sends a message to the order queue. *aws.Publisher satisfies it.
type EventPublisher interface {
	SendMessage(ctx context.Context, body string, attrs map[string]string) error
}

// MetricsRecorder records a counter. *aws.Metrics satisfies it.
type MetricsRecorder interface {
	Count(ctx context.Context, name string, value float64, dimensions map[string]string) error
}

// Assembler processes messages against a draft store and commits complete
// drafts to a confirmed store.
//
// Writes to drafts are serialized by draftMu and writes to confirmed by
// confirmedMu; when both are held, draftMu is taken first. The oracle is
// never called with a lock held.
type Assembler struct {
	oracle    extraction.Oracle
	drafts    store.Store
	confirmed store.Store

	draftMu     sync.Mutex
	confirmedMu sync.Mutex

	publisher EventPublisher
	metrics   MetricsRecorder
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithPublisher publishes an order_confirmed event after each new commit.
func WithPublisher(p EventPublisher) Option {
	return func(a *Assembler) { a.publisher = p }
}

// WithMetrics records counters for extraction failures, completions and commits.
func WithMetrics(m MetricsRecorder) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.nowFunc = now }
}

// New returns an Assembler over the given oracle and stores.
func New(oracle extraction.Oracle, drafts, confirmed store.Store, opts ...Option) *Assembler {
	a := &Assembler{
		oracle:    oracle,
		drafts:    drafts,
		confirmed: confirmed,
		logger:    zap.NewNop(),
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("assembler")
	return a
}

// Process extracts a fragment from message, merges it into the draft named by
// orderID (or a new draft when orderID is nil), persists it, and returns the
// next conversational step.
//
// Errors: *orders.NotFoundError for an unknown id, orders.ErrAlreadyConfirmed
// when the id has been committed, *extraction.ExtractionError when the oracle
// fails. On any error the draft store is left untouched.
func (a *Assembler) Process(ctx context.Context, message string, orderID *int64) (Result, error) {
	var prior *orders.OrderRecord
	if orderID != nil {
		rec, err := a.openDraft(ctx, *orderID)
		if err != nil {
			return Result{}, err
		}
		prior = rec
	}

	frag, err := a.oracle.Extract(ctx, message, prior)
	if err != nil {
		a.count(ctx, awsclient.MetricExtractionFailures)
		a.logger.Warn("extraction failed", zap.Int64p("order_id", orderID), zap.Error(err))
		return Result{}, err
	}

	rec, c, err := a.apply(ctx, orderID, frag)
	if err != nil {
		return Result{}, err
	}

	if c.IsComplete {
		a.count(ctx, awsclient.MetricOrdersCompleted)
	}
	a.logger.Info("draft updated",
		zap.Int64("order_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.Int("missing", len(c.MissingFields)))
	return resultFor(rec, c), nil
}

// openDraft loads the draft for id and rejects ids that are unknown or
// already committed.
func (a *Assembler) openDraft(ctx context.Context, id int64) (*orders.OrderRecord, error) {
	done, err := a.confirmed.LoadByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load confirmed order %d: %w", id, err)
	}
	if done != nil {
		return nil, orders.ErrAlreadyConfirmed
	}
	rec, err := a.drafts.LoadByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load draft %d: %w", id, err)
	}
	if rec == nil {
		return nil, &orders.NotFoundError{OrderID: id}
	}
	return rec, nil
}

// apply merges frag into the current draft under draftMu. The draft is re-read
// inside the lock so a concurrent message on the same order is not lost.
func (a *Assembler) apply(ctx context.Context, orderID *int64, frag orders.Fragment) (orders.OrderRecord, orders.Completeness, error) {
	a.draftMu.Lock()
	defer a.draftMu.Unlock()

	now := a.nowFunc().UTC()

	base := orders.OrderRecord{CreatedAt: now}
	if orderID != nil {
		current, err := a.openDraft(ctx, *orderID)
		if err != nil {
			return orders.OrderRecord{}, orders.Completeness{}, err
		}
		base = *current
	}

	rec := orders.Merge(base, frag)
	c := orders.CheckCompleteness(rec)
	rec.Status = orders.StatusFor(c)
	rec.UpdatedAt = now

	if orderID == nil {
		floor, err := a.confirmedFloor(ctx)
		if err != nil {
			return orders.OrderRecord{}, orders.Completeness{}, err
		}
		saved, err := a.drafts.Append(ctx, rec, floor)
		if err != nil {
			return orders.OrderRecord{}, orders.Completeness{}, fmt.Errorf("create draft: %w", err)
		}
		return saved, c, nil
	}
	if err := a.drafts.Upsert(ctx, rec); err != nil {
		return orders.OrderRecord{}, orders.Completeness{}, fmt.Errorf("save draft %d: %w", rec.ID, err)
	}
	return rec, c, nil
}

// confirmedFloor is the lowest id a new draft may take. Drafts can be cleared
// while their confirmed copies stay, so ids must also clear the confirmed
// store. Callers hold draftMu, which every confirmed write also holds.
func (a *Assembler) confirmedFloor(ctx context.Context) (int64, error) {
	done, err := a.confirmed.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load confirmed orders: %w", err)
	}
	return store.MaxID(done) + 1, nil
}

// Confirm commits the draft id to the confirmed store. Confirming an id that
// is already committed returns the stored confirmed copy unchanged.
//
// Errors: *orders.NotFoundError when no draft exists, *orders.ValidationError
// when the draft is not complete.
func (a *Assembler) Confirm(ctx context.Context, id int64) (orders.OrderRecord, error) {
	rec, created, err := a.commit(ctx, id)
	if err != nil {
		return orders.OrderRecord{}, err
	}
	if created {
		a.count(ctx, awsclient.MetricOrdersConfirmed)
		a.publishConfirmed(ctx, rec)
		a.logger.Info("order confirmed", zap.Int64("order_id", rec.ID))
	}
	return rec, nil
}

func (a *Assembler) commit(ctx context.Context, id int64) (orders.OrderRecord, bool, error) {
	a.draftMu.Lock()
	defer a.draftMu.Unlock()
	a.confirmedMu.Lock()
	defer a.confirmedMu.Unlock()

	existing, err := a.confirmed.LoadByID(ctx, id)
	if err != nil {
		return orders.OrderRecord{}, false, fmt.Errorf("load confirmed order %d: %w", id, err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	draft, err := a.drafts.LoadByID(ctx, id)
	if err != nil {
		return orders.OrderRecord{}, false, fmt.Errorf("load draft %d: %w", id, err)
	}
	if draft == nil {
		return orders.OrderRecord{}, false, &orders.NotFoundError{OrderID: id}
	}

	c := orders.CheckCompleteness(*draft)
	if !c.IsComplete {
		return orders.OrderRecord{}, false, &orders.ValidationError{OrderID: id, MissingFields: c.MissingFields}
	}

	now := a.nowFunc().UTC()
	rec := draft.Clone()
	rec.Status = orders.StatusConfirmed
	rec.UpdatedAt = now
	rec.ConfirmedAt = &now

	if err := a.confirmed.Upsert(ctx, rec); err != nil {
		return orders.OrderRecord{}, false, fmt.Errorf("save confirmed order %d: %w", id, err)
	}
	return rec, true, nil
}

// publishConfirmed is best effort; the commit already happened.
func (a *Assembler) publishConfirmed(ctx context.Context, rec orders.OrderRecord) {
	if a.publisher == nil {
		return
	}
	evt := orders.ConfirmedEvent{
		OrderID:       rec.ID,
		CorrelationID: uuid.NewString(),
		ConfirmedAt:   *rec.ConfirmedAt,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		a.logger.Error("marshal confirmed event", zap.Error(err))
		return
	}
	attrs := map[string]string{
		"event_type":     orders.EventOrderConfirmed,
		"order_id":       strconv.FormatInt(rec.ID, 10),
		"correlation_id": evt.CorrelationID,
	}
	if err := a.publisher.SendMessage(ctx, string(body), attrs); err != nil {
		a.count(ctx, awsclient.MetricPublishFailures)
		a.logger.Error("publish order_confirmed failed",
			zap.Int64("order_id", rec.ID),
			zap.String("correlation_id", evt.CorrelationID),
			zap.Error(err))
	}
}

// Drafts lists every draft in id order.
func (a *Assembler) Drafts(ctx context.Context) ([]orders.OrderRecord, error) {
	return a.drafts.LoadAll(ctx)
}

// ConfirmedOrders lists every committed order in id order.
func (a *Assembler) ConfirmedOrders(ctx context.Context) ([]orders.OrderRecord, error) {
	return a.confirmed.LoadAll(ctx)
}

// ClearDrafts removes every draft. Confirmed orders are kept.
func (a *Assembler) ClearDrafts(ctx context.Context) error {
	a.draftMu.Lock()
	defer a.draftMu.Unlock()
	return a.drafts.Clear(ctx)
}

func (a *Assembler) count(ctx context.Context, name string) {
	if a.metrics == nil {
		return
	}
	if err := a.metrics.Count(ctx, name, 1, nil); err != nil {
		a.logger.Warn("metric failed", zap.String("metric", name), zap.Error(err))
	}
}
