// Команда reconcile находит заказы-сироты: строки orders без единой
// позиции, оставшиеся после неудавшейся компенсации двухэтапной записи.
// По умолчанию работает в режиме dry-run и только перечисляет находки.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/storage/postgres"
)

const (
	defaultTimeout = 60 * time.Second
	defaultLimit   = 100
)

type config struct {
	dsn     string
	limit   int
	execute bool
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fail("reconcile failed: %v", err)
	}
}

func readConfig() (config, error) {
	var cfg config

	flag.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: OMS_POSTGRES_DSN)")
	flag.IntVar(&cfg.limit, "limit", defaultLimit, "max number of orphaned orders to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "delete found orphans; default is dry-run")
	flag.Parse()

	if strings.TrimSpace(cfg.dsn) == "" {
		cfg.dsn = strings.TrimSpace(os.Getenv("OMS_POSTGRES_DSN"))
	}
	if cfg.dsn == "" {
		return config{}, fmt.Errorf("OMS_POSTGRES_DSN (or -dsn) is required")
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0")
	}

	return cfg, nil
}

func run(ctx context.Context, cfg config) error {
	store, err := postgres.Open(ctx, cfg.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	repo := postgres.NewOrderRepository(store, 0)

	orphans, err := repo.FindOrphaned(cfg.limit)
	if err != nil {
		return fmt.Errorf("find orphaned orders: %w", err)
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":  mode,
		"found": len(orphans),
		"limit": cfg.limit,
	}).Info("orphan scan finished")

	var deleted int
	for _, orphan := range orphans {
		entry := log.WithFields(log.Fields{
			"order_id":     orphan.ID,
			"store_id":     orphan.StoreID,
			"total_amount": orphan.TotalAmount,
			"created_at":   orphan.CreatedAt.Format(time.RFC3339),
		})

		if !cfg.execute {
			entry.Info("orphaned order found")
			continue
		}

		if err := repo.Delete(orphan.ID); err != nil {
			if errors.Is(err, domain.ErrOrderNotFound) {
				entry.Warn("orphaned order already removed")
				continue
			}
			return fmt.Errorf("delete orphaned order %d: %w", orphan.ID, err)
		}
		deleted++
		entry.Info("orphaned order deleted")
	}

	if cfg.execute {
		log.WithField("deleted", deleted).Info("reconcile finished")
	}
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
