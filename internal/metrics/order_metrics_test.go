package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewOrderMetricsWithRegisterer(t *testing.T) {
	metrics := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("NewOrderMetricsWithRegisterer should not return nil")
	}

	if metrics.ordersCreated == nil {
		t.Error("ordersCreated counter vec should not be nil")
	}

	if metrics.ordersRejected == nil {
		t.Error("ordersRejected counter vec should not be nil")
	}

	if metrics.writeFailures == nil {
		t.Error("writeFailures counter vec should not be nil")
	}

	if metrics.compensations == nil {
		t.Error("compensations counter vec should not be nil")
	}

	if metrics.submitDuration == nil {
		t.Error("submitDuration histogram should not be nil")
	}
}

func TestNewOrderMetricsWithRegisterer_ReusesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	if first.ordersCreated != second.ordersCreated {
		t.Error("expected ordersCreated collector to be reused on re-registration")
	}
	if first.submitDuration != second.submitDuration {
		t.Error("expected submitDuration collector to be reused on re-registration")
	}
}

func TestRecordOrderCreated(t *testing.T) {
	metrics := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderCreated("atomic")
	metrics.RecordOrderCreated("atomic")
	metrics.RecordOrderCreated("degraded")

	if got := counterValue(t, metrics.ordersCreated, "atomic"); got != 2.0 {
		t.Errorf("expected atomic counter value 2.0, got %f", got)
	}
	if got := counterValue(t, metrics.ordersCreated, "degraded"); got != 1.0 {
		t.Errorf("expected degraded counter value 1.0, got %f", got)
	}
}

func TestRecordOrderRejected(t *testing.T) {
	metrics := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderRejected("below_minimum")
	metrics.RecordOrderRejected("empty_cart")
	metrics.RecordOrderRejected("below_minimum")

	if got := counterValue(t, metrics.ordersRejected, "below_minimum"); got != 2.0 {
		t.Errorf("expected below_minimum counter value 2.0, got %f", got)
	}
	if got := counterValue(t, metrics.ordersRejected, "empty_cart"); got != 1.0 {
		t.Errorf("expected empty_cart counter value 1.0, got %f", got)
	}
}

func TestRecordWriteFailureAndCompensation(t *testing.T) {
	metrics := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordWriteFailure("items_insert")
	metrics.RecordCompensation("succeeded")
	metrics.RecordCompensation("failed")

	if got := counterValue(t, metrics.writeFailures, "items_insert"); got != 1.0 {
		t.Errorf("expected items_insert failure counter 1.0, got %f", got)
	}
	if got := counterValue(t, metrics.compensations, "succeeded"); got != 1.0 {
		t.Errorf("expected compensation succeeded counter 1.0, got %f", got)
	}
	if got := counterValue(t, metrics.compensations, "failed"); got != 1.0 {
		t.Errorf("expected compensation failed counter 1.0, got %f", got)
	}
}

func TestRecordSubmitDuration(t *testing.T) {
	metrics := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordSubmitDuration(250 * time.Millisecond)
	metrics.RecordSubmitDuration(750 * time.Millisecond)

	metric := &dto.Metric{}
	if err := metrics.submitDuration.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", metric.Histogram.GetSampleCount())
	}
	if metric.Histogram.GetSampleSum() != 1.0 {
		t.Errorf("expected sample sum 1.0, got %f", metric.Histogram.GetSampleSum())
	}
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, label string) float64 {
	t.Helper()

	metric := &dto.Metric{}
	if err := vec.WithLabelValues(label).Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}
