package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики конвейера оформления заказов.
type OrderMetrics struct {
	// Счётчики исходов
	ordersCreated  *prometheus.CounterVec
	ordersRejected *prometheus.CounterVec
	writeFailures  *prometheus.CounterVec

	// Компенсации fallback-пути
	compensations *prometheus.CounterVec

	// Гистограмма времени оформления
	submitDuration prometheus.Histogram
}

// NewOrderMetrics создаёт новый экземпляр метрик оформления.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики с явным registerer (для тестов).
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return newOrderMetricsWithRegisterer(registerer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_orders_created_total",
			Help: "Total number of orders persisted, grouped by write mode.",
		}, []string{"mode"}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_orders_rejected_total",
			Help: "Total number of submissions rejected by validation, grouped by reason.",
		}, []string{"reason"}),
		writeFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_order_write_failures_total",
			Help: "Total number of storage write failures, grouped by stage.",
		}, []string{"stage"}),
		compensations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "oms_order_compensations_total",
			Help: "Total number of compensating deletes on the degraded write path, grouped by result.",
		}, []string{"result"}),
		submitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "oms_order_submit_duration_seconds",
			Help:    "Duration of order submissions in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик сохранённых заказов для данного режима записи.
func (m *OrderMetrics) RecordOrderCreated(mode string) {
	m.ordersCreated.WithLabelValues(mode).Inc()
}

// RecordOrderRejected увеличивает счётчик отклонённых отправок.
func (m *OrderMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordWriteFailure увеличивает счётчик сбоев записи на данном шаге.
func (m *OrderMetrics) RecordWriteFailure(stage string) {
	m.writeFailures.WithLabelValues(stage).Inc()
}

// RecordCompensation фиксирует исход компенсирующего удаления.
func (m *OrderMetrics) RecordCompensation(result string) {
	m.compensations.WithLabelValues(result).Inc()
}

// RecordSubmitDuration записывает время оформления заказа.
func (m *OrderMetrics) RecordSubmitDuration(duration time.Duration) {
	m.submitDuration.Observe(duration.Seconds())
}
