package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/messaging/kafka"
	"github.com/seongnamsijang/oms/internal/metrics"
)

const aggregateTypeOrder = "order"

// Confirmation — результат успешного оформления заказа.
type Confirmation struct {
	Order domain.Order
	// Mode показывает, каким путём заказ был сохранён:
	// атомарной процедурой или деградированной двухшаговой записью.
	Mode domain.WriteMode
}

// Service — серверная сторона оформления заказа: валидация, атомарная
// запись с fallback-компенсацией и постановка события в outbox.
type Service struct {
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	minOrder int64
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox подключает transactional outbox для событий order.created.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = outbox }
}

// WithMinOrder переопределяет порог минимальной суммы заказа.
func WithMinOrder(minOrder int64) Option {
	return func(s *Service) {
		if minOrder > 0 {
			s.minOrder = minOrder
		}
	}
}

// WithMetrics подключает метрики конвейера (nil = без метрик, для тестов).
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService конструирует сервис оформления с зависимостями.
func NewService(orders domain.OrderRepository, logger *log.Entry, options ...Option) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	s := &Service{
		orders:   orders,
		logger:   logger,
		minOrder: DefaultMinOrder,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// MinOrder возвращает действующий порог минимальной суммы.
func (s *Service) MinOrder() int64 {
	return s.minOrder
}

// Submit проводит заказ через валидацию и атомарную запись.
//
// Валидация — чистая предпроверка: до первого обращения к хранилищу ни одна
// строка не записывается. Запись сначала идёт атомарным путём; при
// недоступности процедуры (или её сбое по причинам, не связанным с политикой
// минимальной суммы) сервис деградирует до двухшаговой записи с компенсацией.
func (s *Service) Submit(req domain.OrderRequest) (Confirmation, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordSubmitDuration(time.Since(start))
		}
	}()

	if verr := Validate(req, s.minOrder); verr != nil {
		if s.metrics != nil {
			s.metrics.RecordOrderRejected(string(verr.Reason))
		}
		return Confirmation{}, verr
	}

	order := buildOrder(req)

	persisted, mode, err := s.write(order)
	if err != nil {
		if verr, ok := domain.AsValidation(err); ok {
			// Политику отвергла сама база — тот же вид ошибки, что и у валидатора.
			if s.metrics != nil {
				s.metrics.RecordOrderRejected(string(verr.Reason))
			}
			return Confirmation{}, verr
		}
		return Confirmation{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(string(mode))
	}
	s.logger.WithFields(log.Fields{
		"order_id":     persisted.ID,
		"total_amount": persisted.TotalAmount,
		"items":        len(persisted.Items),
		"write_mode":   string(mode),
	}).Info("заказ оформлен")

	s.enqueueOrderEvent(kafka.EventTypeOrderCreated, persisted, mode)

	return Confirmation{Order: persisted, Mode: mode}, nil
}

// GetOrder возвращает сохранённый заказ для экрана подтверждения.
func (s *Service) GetOrder(id int64) (domain.Order, error) {
	return s.orders.Get(id)
}

// write реализует роль atomic order writer: предпочтительный путь,
// затем явная деградация. Вызывающий код ветвится по структурному
// результату, а не по содержимому текста ошибки.
func (s *Service) write(order domain.Order) (domain.Order, domain.WriteMode, error) {
	persisted, err := s.orders.CreateAtomic(order)
	if err == nil {
		return persisted, domain.WriteModeAtomic, nil
	}
	if _, ok := domain.AsValidation(err); ok {
		return domain.Order{}, domain.WriteModeAtomic, err
	}

	// Деградация — осознанный запасной режим: предупреждаем в логе,
	// но пользователю сбой атомарного пути не показываем.
	s.logger.WithError(err).Warn("атомарный путь записи недоступен, переходим на двухшаговый fallback")
	if s.metrics != nil {
		s.metrics.RecordWriteFailure("atomic")
	}

	persisted, err = s.orders.CreateTwoStep(order)
	if err != nil {
		s.reportTwoStepFailure(order, err)
		return domain.Order{}, domain.WriteModeDegraded, fmt.Errorf("degraded order write: %w", err)
	}
	return persisted, domain.WriteModeDegraded, nil
}

func (s *Service) reportTwoStepFailure(order domain.Order, err error) {
	stage := "order_insert"
	if errors.Is(err, domain.ErrItemsInsertFailed) {
		stage = "items_insert"
	}
	if s.metrics != nil {
		s.metrics.RecordWriteFailure(stage)
	}

	if !errors.Is(err, domain.ErrItemsInsertFailed) {
		return
	}

	var comp *domain.CompensationError
	if errors.As(err, &comp) {
		// Заказ-сирота остался в базе: чиним не автоматически,
		// а через cmd/reconcile по этому сигналу.
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":     comp.OrderID,
			"total_amount": order.TotalAmount,
		}).Error("компенсирующее удаление не удалось: заказ-сирота требует ручной сверки")
		if s.metrics != nil {
			s.metrics.RecordCompensation("failed")
		}
		orphan := order
		orphan.ID = comp.OrderID
		s.enqueueOrderEvent(kafka.EventTypeOrderOrphaned, orphan, domain.WriteModeDegraded)
		return
	}

	if s.metrics != nil {
		s.metrics.RecordCompensation("succeeded")
	}
}

// enqueueOrderEvent ставит событие заказа в outbox. Best-effort: сбой
// постановки логируется, но никогда не валит уже сохранённый заказ.
func (s *Service) enqueueOrderEvent(eventType kafka.EventType, order domain.Order, mode domain.WriteMode) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.StoreID,
		order.TotalAmount, len(order.Items), string(order.Status), string(mode))
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).Warn("failed to marshal order event")
		return
	}

	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: aggregateTypeOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
	}
}

func buildOrder(req domain.OrderRequest) domain.Order {
	items := make([]domain.OrderItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, domain.OrderItem{
			MenuID:    line.MenuID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return domain.Order{
		CustomerID:      req.CustomerID,
		StoreID:         req.StoreID,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		TotalAmount:     req.Total(),
		Status:          domain.OrderStatusPendingPayment,
		Items:           items,
		CreatedAt:       time.Now().UTC(),
	}
}
