package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/db"
	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/judge/controller"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/runner"
	"codejudge/internal/judge/sandbox/workdir"
	"codejudge/internal/judge/service"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfigPath = "configs/judge_service.yaml"
	limiterSweepEvery = time.Minute
	healthTimeout     = 2 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// pinger is satisfied by every backing store the health check looks at.
type pinger interface {
	Ping(ctx context.Context) error
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		return fmt.Errorf("init database failed: %w", err)
	}
	defer func() {
		_ = mysqlDB.Close()
	}()
	conn := mysqlDB.Conn()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis failed: %w", err)
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
	if err != nil {
		return fmt.Errorf("init kafka failed: %w", err)
	}
	defer func() {
		_ = mqClient.Close()
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observer.NewPrometheusRecorder(registry)

	langRepo, err := config.NewLocalRepository(appCfg.Languages)
	if err != nil {
		return fmt.Errorf("load languages failed: %w", err)
	}
	sandboxes, err := workdir.NewManager(appCfg.Judge.WorkRoot, workdir.WithTracker(metrics))
	if err != nil {
		return fmt.Errorf("init sandbox root failed: %w", err)
	}
	jobRunner := runner.NewRunnerWithObserver(engine.NewEngine(appCfg.Judge.toEngineConfig()), metrics)

	statusRepo := repository.NewStatusRepository(redisCache, appCfg.Status.TTL)
	worker := sandbox.NewWorker(
		jobRunner,
		langRepo,
		sandboxes,
		repository.NewTestCaseRepository(conn),
		sandbox.WithCompileTimeout(appCfg.Judge.CompileTimeout),
		sandbox.WithMetrics(metrics),
	)
	worker.SetStatusReporter(statusRepo)

	problems := repository.NewCachedProblemRepository(
		repository.NewProblemRepository(conn),
		redisCache,
		appCfg.Problem.TTL,
		appCfg.Problem.EmptyTTL,
	)
	judgeSvc, err := service.NewService(service.Config{
		Grader:         worker,
		Languages:      langRepo,
		Problems:       problems,
		Submissions:    repository.NewSubmissionRepository(conn),
		Results:        repository.NewResultRepository(conn),
		StatusRepo:     statusRepo,
		Publisher:      repository.NewMQStatusEventPublisher(mqClient, appCfg.Status.FinalTopic),
		Queue:          repository.NewMQJudgeQueue(mqClient, appCfg.Kafka.SubmitTopic, appCfg.Kafka.MaxRetries),
		Conn:           conn,
		MaxCodeBytes:   appCfg.Judge.MaxCodeBytes,
		SubmitInterval: appCfg.Status.SubmitInterval,
		WorkerTimeout:  appCfg.Worker.Timeout,
		StatusTimeout:  appCfg.Status.Timeout,
		WorkerPoolSize: appCfg.Worker.PoolSize,
		SlotWait:       appCfg.Worker.SlotWait,
	})
	if err != nil {
		return fmt.Errorf("init judge service failed: %w", err)
	}

	if err := mqClient.Subscribe(ctx, appCfg.Kafka.SubmitTopic, judgeSvc.HandleMessage, appCfg.Kafka.subscribeOptions()); err != nil {
		return fmt.Errorf("subscribe kafka failed: %w", err)
	}
	if err := mqClient.Start(); err != nil {
		return fmt.Errorf("start kafka consumer failed: %w", err)
	}
	defer func() {
		_ = mqClient.Stop()
	}()

	limiter := commonmw.NewRateLimiter(appCfg.Server.RateLimit)
	httpServer := buildHTTPServer(appCfg, judgeSvc, limiter, registry, map[string]pinger{
		"mysql": mysqlDB,
		"redis": redisCache,
		"kafka": mqClient,
	})
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		logger.Info(ctx, "judge http server started", zap.String("addr", appCfg.Server.Addr))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(limiterSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "shutting down judge service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "http server shutdown failed", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func buildHTTPServer(appCfg *AppConfig, svc *service.Service, limiter *commonmw.RateLimiter, registry *prometheus.Registry, deps map[string]pinger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware(commonmw.TraceContextConfig{
		AllowUserIDHeader: appCfg.Server.TrustUserIDHeader,
	}))
	router.Use(commonmw.AccessLog())

	router.GET("/healthz", healthHandler(deps))
	if appCfg.Metrics.Enabled {
		router.GET(appCfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1/judge")
	api.Use(limiter.Middleware())
	controller.NewJudgeController(svc).Register(api)

	return &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
}

func healthHandler(deps map[string]pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		report := make(map[string]string, len(deps))
		healthy := true
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				report[name] = err.Error()
				healthy = false
				continue
			}
			report[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.Response{
				Code:    appErr.ServiceUnavailable,
				Message: "Service unavailable",
				Data:    report,
			})
			return
		}
		response.Success(c, report)
	}
}
