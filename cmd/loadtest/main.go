package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seongnamsijang/oms/internal/client"
	"github.com/seongnamsijang/oms/internal/domain"
)

const (
	defaultMenuID    = int64(1)
	defaultUnitPrice = int64(7000)
	defaultQty       = int64(2)
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	storeID     int64
	menuID      int64
	unitPrice   int64
	qty         int64
	belowMinPct int
	customerTag string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	TotalRequests   int64            `json:"total_requests"`
	Created         int64            `json:"created"`
	Rejected        int64            `json:"rejected"`
	Failed          int64            `json:"failed"`
	ErrorRate       float64          `json:"error_rate"`
	RPS             float64          `json:"rps"`
	Outcomes        map[string]int64 `json:"outcomes"`
	LatencyMs       latencySummary   `json:"latency_ms"`
}

// collector собирает исходы и латентности запросов из всех воркеров.
type collector struct {
	mu        sync.Mutex
	outcomes  map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{outcomes: make(map[string]int64)}
}

func (c *collector) record(outcome string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[outcome]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	outcomesCopy := make(map[string]int64, len(c.outcomes))
	var total, created, rejected, failed int64
	for outcome, count := range c.outcomes {
		outcomesCopy[outcome] = count
		total += count
		switch outcome {
		case "created":
			created += count
		case "rejected":
			rejected += count
		default:
			failed += count
		}
	}

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		TotalRequests:   total,
		Created:         created,
		Rejected:        rejected,
		Failed:          failed,
		ErrorRate:       ratio(failed, total),
		Outcomes:        outcomesCopy,
		LatencyMs:       buildLatencySummary(c.latencies),
	}
	if duration > 0 {
		result.RPS = float64(total) / duration.Seconds()
	}
	return result
}

func parseConfig() (config, error) {
	var cfg config
	var durationValue string
	var timeoutValue string

	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "order service base URL")
	flag.IntVar(&cfg.total, "total", 400, "total requests in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 30s, 5m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	flag.StringVar(&timeoutValue, "timeout", "5s", "per-request timeout")
	flag.Int64Var(&cfg.storeID, "store-id", 1, "target store id")
	flag.Int64Var(&cfg.menuID, "menu-id", defaultMenuID, "menu item id")
	flag.Int64Var(&cfg.unitPrice, "unit-price", defaultUnitPrice, "unit price in KRW")
	flag.Int64Var(&cfg.qty, "qty", defaultQty, "quantity per line")
	flag.IntVar(&cfg.belowMinPct, "below-min-rate", 0, "percent of requests deliberately below the order minimum (0..100)")
	flag.StringVar(&cfg.customerTag, "customer-tag", "load", "customer id prefix")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	if strings.TrimSpace(cfg.baseURL) == "" {
		return cfg, errors.New("url is required")
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.qty <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	if cfg.unitPrice <= 0 {
		return cfg, errors.New("unit-price must be > 0")
	}
	if cfg.belowMinPct < 0 || cfg.belowMinPct > 100 {
		return cfg, errors.New("below-min-rate must be between 0 and 100")
	}
	if strings.TrimSpace(cfg.customerTag) == "" {
		return cfg, errors.New("customer-tag is required")
	}

	return cfg, nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	apiClient := client.New(cfg.baseURL,
		client.WithHTTPClient(&http.Client{Timeout: cfg.timeout}),
	)

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var failures int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := runRequest(apiClient, cfg, id, runID, col); err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	result := col.buildReport(startedAt, duration)

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.Failed > 0 {
		os.Exit(1)
	}
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runRequest оформляет один заказ и классифицирует исход. Отказы валидации
// на преднамеренно заниженных заказах считаются ожидаемыми, не ошибками.
func runRequest(apiClient *client.Client, cfg config, index int, runID string, col *collector) error {
	qty := cfg.qty
	if shouldGoBelowMinimum(index, cfg.belowMinPct) {
		qty = 1
	}

	req := domain.OrderRequest{
		CustomerID:      fmt.Sprintf("%s-%s-%d", cfg.customerTag, runID, index),
		StoreID:         cfg.storeID,
		CustomerPhone:   "010-0000-0000",
		DeliveryAddress: fmt.Sprintf("성남시 수정구 테스트로 %d", index+1),
		Lines: []domain.CartLine{
			{MenuID: cfg.menuID, Quantity: qty, UnitPrice: cfg.unitPrice},
		},
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	_, err := apiClient.CreateOrder(ctx, req)
	latency := time.Since(start)

	if err == nil {
		col.record("created", latency)
		return nil
	}
	if _, ok := domain.AsValidation(err); ok {
		col.record("rejected", latency)
		return nil
	}

	switch {
	case errors.Is(err, client.ErrServerFailure):
		col.record("server_failure", latency)
		return err
	case errors.Is(err, client.ErrMalformedResponse):
		col.record("malformed_response", latency)
		return err
	default:
		if apiErr, ok := client.AsAPIError(err); ok {
			col.record(fmt.Sprintf("http_%d", apiErr.StatusCode), latency)
			return err
		}
		col.record("transport_error", latency)
		return err
	}
}

func shouldGoBelowMinimum(index, rate int) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 100 {
		return true
	}
	return index%100 < rate
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Load test summary")
	fmt.Printf("url=%s total=%d created=%d rejected=%d failed=%d error_rate=%.4f\n",
		cfg.baseURL,
		result.TotalRequests,
		result.Created,
		result.Rejected,
		result.Failed,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)
	fmt.Printf("latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min,
		result.LatencyMs.Avg,
		result.LatencyMs.P50,
		result.LatencyMs.P95,
		result.LatencyMs.P99,
		result.LatencyMs.Max,
	)

	outcomes := make([]string, 0, len(result.Outcomes))
	for name := range result.Outcomes {
		outcomes = append(outcomes, name)
	}
	sort.Strings(outcomes)
	for _, name := range outcomes {
		fmt.Printf("%s: %d\n", name, result.Outcomes[name])
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
