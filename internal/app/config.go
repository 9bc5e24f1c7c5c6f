package app

import (
	"os"
	"strconv"
	"strings"

	"github.com/seongnamsijang/oms/internal/service/order"
)

// Config описывает настройки запуска приложения.
type Config struct {
	// HTTPAddr — адрес API оформления заказов.
	HTTPAddr string
	// MetricsAddr — адрес /metrics и health-проверок.
	MetricsAddr string
	// PostgresDSN включает PostgreSQL-хранилище; пустое значение означает
	// in-memory стек для локальной разработки.
	PostgresDSN string
	// KafkaBrokers включает публикацию событий из outbox; пустой список
	// оставляет события в outbox.
	KafkaBrokers []string
	// MinOrder — порог минимальной суммы заказа в вонах.
	MinOrder int64
}

// DefaultConfig возвращает базовую конфигурацию.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		MinOrder:    order.DefaultMinOrder,
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения поверх значений
// по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("OMS_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("OMS_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("OMS_POSTGRES_DSN")); v != "" {
		cfg.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("OMS_MIN_ORDER")); v != "" {
		if minOrder, err := strconv.ParseInt(v, 10, 64); err == nil && minOrder > 0 {
			cfg.MinOrder = minOrder
		}
	}

	return cfg
}
