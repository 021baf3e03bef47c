// Package main 异步生成任务执行器入口（task-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inkwell-ai-api/internal/config"
	"inkwell-ai-api/internal/generation"
	"inkwell-ai-api/internal/generation/contextcache"
	"inkwell-ai-api/internal/infrastructure/llm"
	"inkwell-ai-api/internal/infrastructure/messaging"
	"inkwell-ai-api/internal/infrastructure/persistence/postgres"
	"inkwell-ai-api/internal/infrastructure/persistence/redis"
	"inkwell-ai-api/internal/taskqueue"
	"inkwell-ai-api/internal/worker"
	"inkwell-ai-api/pkg/logger"
	"inkwell-ai-api/pkg/tracer"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const snapshotCacheTTL = time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting task-worker", "env", cfg.App.Env)

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "task-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to init redis", err)
	}
	defer func() { _ = redisClient.Close() }()

	taskRepo := postgres.NewTaskRepository(pgClient)
	snapshots := redis.NewSnapshotCache(redisClient, snapshotCacheTTL)

	ctxCache := contextcache.New(cfg.Cache.Context.Capacity, cfg.Cache.Context.TTL)
	invoker := generation.NewInvoker(
		llm.NewEinoFactory(cfg),
		generation.WithContextCache(ctxCache),
	)
	retrier := generation.NewRetrier(retryPolicyFromConfig(cfg.Generation.Retry))

	// mode=auto 时先把任务转发给上游共享生成服务，失败再本地兜底
	var remote generation.RemoteRunner
	if cfg.Generation.Mode == generation.ModeAuto && cfg.TaskQueue.BaseURL != "" {
		remote = taskqueue.NewRunner(
			taskqueue.NewClient(cfg.TaskQueue.BaseURL, cfg.TaskQueue.RequestTimeout),
			cfg.TaskQueue.PollInterval,
			cfg.TaskQueue.PollMaxAttempts,
		)
	}
	engine := generation.NewEngine(cfg.Generation.Mode, remote, invoker, retrier)

	consumer := messaging.NewConsumer(redisClient.Redis(), messaging.ConsumerConfig{
		Stream:       messaging.StreamGeneration,
		Group:        messaging.ConsumerGroupTaskWorker,
		ConsumerName: consumerName(),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	w := worker.New(consumer, taskRepo, engine, snapshots)
	if err := w.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start worker", err)
	}
	log.Info("task-worker started", "stream", string(messaging.StreamGeneration))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	w.Stop()
	log.Info("worker exited")
}

func retryPolicyFromConfig(cfg config.RetryConfig) generation.RetryPolicy {
	policy := generation.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay > 0 {
		policy.BaseDelay = cfg.BaseDelay
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.RateLimitMultiplier > 0 {
		policy.RateLimitMultiplier = cfg.RateLimitMultiplier
	}
	return policy
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "task-worker-" + uuid.NewString()[:8]
	}
	return "task-worker-" + host
}
