// cmd/broker-daemon/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"demand-broker/internal/channels/api"
	"demand-broker/internal/common/aws"
	"demand-broker/internal/common/config"
	"demand-broker/internal/common/database"
	"demand-broker/internal/common/logger"
	"demand-broker/internal/common/observability"
	"demand-broker/internal/geocoder"
	"demand-broker/internal/matching"
	"demand-broker/internal/notify"
	"demand-broker/internal/parser"
	"demand-broker/internal/scheduler"
	"demand-broker/internal/storage"
	"demand-broker/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	zapLog.Info("Starting broker daemon...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init delivery clients ---
	var emailSender notify.EmailSender
	if cfg.Integrations.AWS.SES.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		emailSender = sesClient
		zapLog.Info("SES client initialized")
	}

	var smsSender notify.SMSSender
	if cfg.Integrations.AWS.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Integrations.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		smsSender = snsClient
		zapLog.Info("SNS client initialized")
	}

	notifier := notify.NewGateway(
		emailSender, smsSender,
		cfg.Integrations.AWS.SES.FromEmail,
		cfg.Integrations.AWS.SNS.DefaultSMSSenderID,
		log,
	)

	// --- Init deferred-task broker (optional) ---
	var sched scheduler.Scheduler
	if cfg.Scheduler.BrokerAddress != "" {
		zeebe, err := scheduler.NewZeebe(&scheduler.ClientConfig{
			GatewayAddress:         cfg.Scheduler.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      time.Duration(cfg.Scheduler.Timeout) * time.Millisecond,
			RequestTimeout:         time.Duration(cfg.Scheduler.RequestTimeout) * time.Millisecond,
		}, log)
		if err != nil {
			zapLog.Fatal("task broker failed", zap.Error(err))
		}
		defer zeebe.Close()
		sched = zeebe
		zapLog.Info("Task broker connected successfully")
	} else {
		zapLog.Warn("no task broker configured, deferred tasks are dropped")
	}

	geo := geocoder.NewHTTPGeocoder(
		cfg.Geocoder.BaseURL,
		time.Duration(cfg.Geocoder.Timeout)*time.Millisecond,
		rdb,
		time.Duration(cfg.Geocoder.CacheTTL)*time.Second,
		log,
	)

	store := storage.NewPostgres(pg)
	engine := workflow.NewEngine(
		store,
		storage.NewRedisSequencer(rdb),
		matching.NewEngine(store, log),
		notifier,
		sched,
		geo,
		parser.NewPatternCache(),
		log,
	)

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := http.ListenAndServe(cfg.Metrics.Address, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Inbound envelope loop ---
	go func() {
		interval := time.Duration(cfg.Inbound.PollInterval) * time.Millisecond
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				drainInbound(ctx, rdb, cfg.Inbound.Queue, engine, obs, zapLog)
			}
		}
	}()

	// --- Expired-demand sweep ---
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Sweep.Interval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := engine.ExpireDemands(ctx)
				if err != nil {
					zapLog.Error("expiration sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					zapLog.Info("expired demands cancelled", zap.Int("count", n))
				}
			}
		}
	}()

	zapLog.Info("Broker daemon ready",
		zap.String("queue", cfg.Inbound.Queue),
		zap.String("environment", cfg.App.Environment),
	)

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	cancel()

	zapLog.Info("Broker daemon stopped gracefully")
}

// drainInbound empties the inbound queue, processing one envelope at a
// time. A malformed payload is logged and skipped, never retried.
func drainInbound(ctx context.Context, rdb *database.RedisClient, queue string, engine *workflow.Engine, obs *observability.Observability, log *zap.Logger) {
	for {
		payload, err := rdb.LPop(ctx, queue)
		if err == redis.Nil {
			return
		}
		if err != nil {
			log.Error("inbound queue read failed", zap.Error(err))
			return
		}

		env, err := api.Decode([]byte(payload))
		if err != nil {
			obs.RecordCommandProcessed(ctx, "rejected")
			log.Warn("invalid inbound envelope dropped", zap.Error(err))
			continue
		}

		started := time.Now()
		status := "success"
		if err := engine.Dispatch(ctx, env); err != nil {
			// Dispatch already replied to the sender where possible.
			status = "failure"
			log.Warn("command processing failed",
				zap.String("source", env.Source),
				zap.Error(err),
			)
		}
		obs.RecordCommandProcessed(ctx, status)
		obs.RecordCommandDuration(ctx, time.Since(started), status)
	}
}
