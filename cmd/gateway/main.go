package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/xela07ax/strictgate/internal/audit"
	"github.com/xela07ax/strictgate/internal/cache"
	"github.com/xela07ax/strictgate/internal/engine"
	"github.com/xela07ax/strictgate/internal/gateway"
	"github.com/xela07ax/strictgate/internal/infra"
	"github.com/xela07ax/strictgate/internal/infra/auth"
	"github.com/xela07ax/strictgate/internal/integrity"
	"github.com/xela07ax/strictgate/internal/processors"
	"github.com/xela07ax/strictgate/internal/repository/postgres"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if cfg.Database.URL == "" {
		log.Fatal("database.url (или DATABASE_URL) is required")
	}
	eventRepo := postgres.NewEventRepo(cfg.Database.URL)
	// Проверяем соединение с таймаутом
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := eventRepo.Ping(pingCtx); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	pingCancel()

	// Журнал обработки: данные летят в базу пачками
	trail := audit.NewTrail(eventRepo, logger, cfg.Engine.AuditBufferSize, cfg.Engine.AuditFlushInterval)
	trail.Start()

	// Контекст жизненного цикла фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Control Plane: здоровье процессоров
	health := engine.NewHealthManager(rdb, logger)
	if err := health.Init(appCtx); err != nil {
		logger.Warn("health manager init failed, starting cold")
	}
	go health.StartListener(appCtx)

	if known, err := eventRepo.RecentDegraded(appCtx, time.Hour); err == nil && len(known) > 0 {
		if err := health.Warmup(appCtx, known); err != nil {
			logger.Warn("health warmup failed")
		}
	}

	// 4. Метрики
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				metrics.AuditBufferFill.Set(float64(trail.BufferFill()))
			}
		}
	}()

	// 5. Процессоры: реестр бэкендов + обвязка надежности
	registry := processors.NewRegistry()
	openaiP := processors.NewOpenAIProcessor(cfg.Processors.OpenAIAPIKey, cfg.Processors.OpenAIModel, logger)
	groqP := processors.NewGroqProcessor(cfg.Processors.GroqAPIKey, cfg.Processors.GroqModel, logger)
	ollamaP := processors.NewOllamaProcessor(cfg.Processors.OllamaURL, cfg.Processors.OllamaModel, logger)
	for name, p := range map[string]processors.Processor{
		"openai": openaiP, "groq": groqP, "ollama": ollamaP,
	} {
		if err := registry.Register(name, p); err != nil {
			log.Fatalf("failed to register processor %s: %v", name, err)
		}
	}

	// Выбор облачного провайдера — явное решение конфигурации
	var cloudRaw processors.Processor
	var cloudInv processors.Invoker
	switch cfg.Processors.CloudProvider {
	case "groq":
		cloudRaw, cloudInv = groqP, groqP
	case "openai", "":
		cloudRaw, cloudInv = openaiP, openaiP
	default:
		log.Fatalf("unknown cloud provider: %q", cfg.Processors.CloudProvider)
	}

	relOpts := func(name string) engine.ReliabilityOptions {
		return engine.ReliabilityOptions{
			Name:        name,
			RateLimit:   rate.Limit(cfg.Engine.RateLimit),
			Burst:       cfg.Engine.RateBurst,
			MaxFailures: cfg.Engine.CBMaxFails,
		}
	}
	cloud := engine.NewReliableProcessor(cloudRaw, cloudInv, integrity.ProcessorCloud, relOpts("cloud"), metrics)
	local := engine.NewReliableProcessor(ollamaP, ollamaP, integrity.ProcessorLocal, relOpts("local"), metrics)

	failoverCfg, err := integrity.NewFailoverConfig(integrity.FailoverConfigParams{
		CloudFailureProbability: cfg.Engine.CloudFailureProbability,
		LocalFailureProbability: cfg.Engine.LocalFailureProbability,
		EnableFailover:          cfg.Engine.EnableFailover,
		FailoverTimeoutMs:       cfg.Engine.FailoverTimeoutMs,
	})
	if err != nil {
		log.Fatalf("invalid failover configuration: %v", err)
	}

	manager := engine.NewManager(cloud, local, failoverCfg, health, metrics, logger)

	// 6. Auth (опционально) — ошибки ключей фатальны до старта сервера
	var validator auth.TokenValidator
	if cfg.Auth.Enabled {
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			log.Fatalf("auth enabled but public key unusable: %v", err)
		}
		validator = auth.NewBaseValidator(pubKey)
	}

	// 7. HTTP Server
	cacheClient := cache.New(rdb, cfg.Redis.CacheTTL, metrics.CacheOps, logger)
	srvGateway := gateway.NewServer(cfg, logger, manager, health, cacheClient, trail, validator, reg)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srvGateway.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("strictgate started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-stop // Ждем сигнал
	log.Print("strictgate stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown failed: %+v", err)
	}

	cancel()      // Останавливаем фоновых слушателей
	trail.Stop()  // Дожидаемся финального сброса журнала
	log.Print("strictgate exited properly")
}
