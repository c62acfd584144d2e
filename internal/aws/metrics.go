package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names emitted by the service.
const (
	MetricExtractionFailures = "ExtractionFailures"
	MetricOrdersCompleted    = "OrdersCompleted"
	MetricOrdersConfirmed    = "OrdersConfirmed"
	MetricOrdersDispatched   = "OrdersDispatched"
	MetricPublishFailures    = "PublishFailures"
)

// Metrics publishes counters to CloudWatch. A nil *Metrics is a no-op so
// callers can run without CloudWatch locally.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics bound to a namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		CloudWatch: cw,
		Namespace:  namespace,
		nowFunc:    time.Now,
	}
}

// Count records value under name with optional string dimensions.
func (m *Metrics) Count(ctx context.Context, name string, value float64, dimensions map[string]string) error {
	if m == nil || m.CloudWatch == nil {
		return nil
	}
	now := time.Now
	if m.nowFunc != nil {
		now = m.nowFunc
	}
	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Unit:       cwtypes.StandardUnitCount,
		Value:      &value,
		Timestamp:  timePtr(now()),
	}
	for k, v := range dimensions {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: awsString(k), Value: awsString(v)})
	}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.Namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
