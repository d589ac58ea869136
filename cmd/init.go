package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Builder-Lawyers/stack-deployer/internal/application"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/commands"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/interfaces"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/processors"
	"github.com/Builder-Lawyers/stack-deployer/internal/application/query"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/config"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/db"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/db/repo"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/dynamo"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/logging"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/metrics"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/orchestration"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/queue"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/storage"
	"github.com/Builder-Lawyers/stack-deployer/internal/infra/template"
	poller "github.com/Builder-Lawyers/stack-deployer/internal/presentation/queue"
	"github.com/Builder-Lawyers/stack-deployer/internal/presentation/rest"
	"github.com/Builder-Lawyers/stack-deployer/internal/presentation/scheduler"
	dbs "github.com/Builder-Lawyers/stack-deployer/pkg/db"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func Init() {
	cfg, err := config.Load()
	if err != nil {
		log.Panicf("invalid configuration: %v", err)
	}
	logging.Setup(cfg.Log)
	ctx := context.Background()

	// AWS
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Panic("can't load aws config", err)
	}

	// Store
	store, pool := initStore(ctx, cfg.Store, awsCfg)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Template
	var files template.FileGetter
	if cfg.Template.Source == config.TemplateSourceS3 {
		files = storage.NewStorage(awsCfg, cfg.Template.Bucket)
	}
	tmpl, err := template.Load(ctx, cfg.Template, files)
	if err != nil {
		log.Panicf("failed to load template: %v", err)
	}

	fifo := queue.NewFifoQueueFromConfig(awsCfg, cfg.Queue)
	orchestrator := orchestration.NewCloudFormation(awsCfg).WithRateLimit(cfg.Orchestrator.RateLimit)

	handlers := &application.Handlers{
		Intake:          commands.NewIntake(store, fifo, cfg.Queue.GroupID, m),
		DeployClient:    processors.NewDeployClient(orchestrator, store, fifo, tmpl, cfg.Queue.MaxReceiveCount, m),
		GetClientStatus: query.NewGetClientStatus(store, orchestrator),
	}

	app := fiber.New(fiber.Config{
		IdleTimeout: 5 * time.Second,
	})
	app.Use(recover.New())
	rest.RegisterHandlers(app, rest.NewServer(handlers, registry))

	deployPoller := poller.NewDeployRequestsPoller(fifo, handlers.DeployClient, cfg.Queue)
	deployPoller.Start(ctx)

	var monitor *scheduler.DeadLetterMonitor
	if cfg.Queue.DeadLetterURL != "" {
		monitor = scheduler.NewDeadLetterMonitor(fifo, m.DeadLetterDepth, cfg.DeadLetterMonitor)
		go monitor.Start(ctx)
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Panic(err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	_ = <-c
	fmt.Println("Gracefully shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error shutting down http server", "err", err)
	}
	deployPoller.Stop()
	if monitor != nil {
		monitor.Stop()
	}

	fmt.Println("Running cleanup tasks...")

	if pool != nil {
		pool.Close()
	}
	fmt.Println("Fiber was successfully shutdown.")
}

func initStore(ctx context.Context, cfg config.StoreConfig, awsCfg aws.Config) (interfaces.ClientStore, *pgxpool.Pool) {
	if cfg.Driver == config.StoreDriverDynamo {
		return dynamo.NewClientStoreFromConfig(awsCfg, cfg.Table), nil
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Panic(err)
	}
	if err = db.Migrate(cfg.DatabaseURL); err != nil {
		log.Panicf("failed to prepare db: %v", err)
	}
	return repo.NewClientStore(dbs.NewUoWFactory(pool)), pool
}
