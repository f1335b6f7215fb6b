// Package main is the entry point for the testdeck orchestrator. It wires
// the store, queue, resource pool, scheduler, and HTTP API into one
// process.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"testdeck/internal/config"
	"testdeck/internal/executor"
	"testdeck/internal/logger"
	"testdeck/internal/observability"
	"testdeck/internal/pool"
	"testdeck/internal/queue"
	"testdeck/internal/scheduler"
	"testdeck/internal/server"
	"testdeck/internal/store"
	memorystore "testdeck/internal/store/memory"
	postgresstore "testdeck/internal/store/postgres"
	redisstore "testdeck/internal/store/redis"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting (postgres store only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()
	ctx := context.Background()

	jobStore, err := openStore(ctx, cfg.StoreURL, *migrateFlag)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer jobStore.Close()

	// Tracing
	shutdownTracer, err := observability.InitTracer(ctx, "testdeck-orchestrator", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	devicePool, err := pool.NewFromSpec(cfg.PoolSpec)
	if err != nil {
		log.Fatalf("Failed to build device pool: %v", err)
	}

	jobQueue := queue.New(jobStore, slogger, queue.Config{
		MaxRetries:      cfg.MaxRetries,
		DefaultPriority: cfg.DefaultPriority,
		DefaultTarget:   cfg.DefaultTarget,
	})

	// Observable gauge that scans the store only when scraped.
	meter := otel.Meter("testdeck-orchestrator")
	_, err = meter.Int64ObservableGauge("testdeck.queue.waiting",
		metric.WithDescription("Jobs currently queued or scheduled"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			stats, err := jobQueue.Stats(ctx)
			if err != nil {
				log.Printf("Failed to read queue stats: %v", err)
				return nil // Don't crash metrics scrape on store error
			}
			obs.Observe(int64(stats.Waiting))
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register queue depth metric: %v", err)
	}

	exec, err := buildExecutor(cfg)
	if err != nil {
		log.Fatalf("Failed to build executor: %v", err)
	}

	sched := scheduler.New(jobStore, jobQueue, devicePool, exec, slogger, scheduler.Config{
		TickInterval: cfg.TickInterval,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := sched.Run(runCtx); err != nil && err != context.Canceled {
			log.Printf("Scheduler stopped: %v", err)
		}
	}()

	srv := server.New(server.Config{
		Port:           cfg.HTTPPort,
		RateLimit:      cfg.RateLimit,
		RateLimitBurst: cfg.RateLimitBurst,
	}, jobQueue, devicePool, jobStore, slogger, metricsHandler)

	go func() {
		log.Printf("Testdeck orchestrator starting on :%d", cfg.HTTPPort)
		if err := srv.Run(runCtx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}

// openStore selects the JobStore backend by URL scheme.
func openStore(ctx context.Context, url string, migrate bool) (store.JobStore, error) {
	switch {
	case redisstore.IsRedisURL(url):
		s, err := redisstore.Open(url)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		s, err := postgresstore.New(ctx, url)
		if err != nil {
			return nil, err
		}
		if migrate {
			log.Println("Running database migrations...")
			if err := postgresstore.Migrate(s.DB()); err != nil {
				return nil, err
			}
			log.Println("Migrations completed successfully")
		}
		return s, nil
	case strings.HasPrefix(url, "memory://"):
		return memorystore.New(), nil
	default:
		return nil, &store.ValidationError{Field: "store_url", Reason: "unknown scheme"}
	}
}

func buildExecutor(cfg *config.Config) (executor.Executor, error) {
	switch cfg.Executor {
	case "docker":
		log.Printf("Using docker executor (image: %s)", cfg.ExecutorImage)
		return executor.NewDocker(cfg.ExecutorImage, cfg.ExecutorTimeout)
	default:
		log.Println("Using simulated executor")
		return executor.NewSimulated(), nil
	}
}
