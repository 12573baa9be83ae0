package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/analogfan/marketplace-backend/api/routes"
	"github.com/analogfan/marketplace-backend/internal/inventory"
	"github.com/analogfan/marketplace-backend/internal/notifications"
	"github.com/analogfan/marketplace-backend/internal/orders"
	"github.com/analogfan/marketplace-backend/internal/shipments"
	sendcloudwebhook "github.com/analogfan/marketplace-backend/internal/webhooks/sendcloud"
	"github.com/analogfan/marketplace-backend/pkg/carrier"
	"github.com/analogfan/marketplace-backend/pkg/config"
	"github.com/analogfan/marketplace-backend/pkg/db"
	"github.com/analogfan/marketplace-backend/pkg/logger"
	"github.com/analogfan/marketplace-backend/pkg/migrate"
	"github.com/analogfan/marketplace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := carrier.NewSendcloudClient(cfg.Carrier)
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier client", err)
		os.Exit(1)
	}

	var mailer notifications.Dispatcher
	if cfg.Mail.Configured() {
		smtpDispatcher, err := notifications.NewSMTPDispatcher(cfg.Mail)
		if err != nil {
			logg.Error(context.Background(), "failed to create mail dispatcher", err)
			os.Exit(1)
		}
		mailer = smtpDispatcher
	} else {
		logg.Warn(context.Background(), "smtp not configured, transactional mail disabled")
		mailer = notifications.NoopDispatcher{Logger: logg}
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	shipmentsRepo := shipments.NewRepository(dbClient.DB())

	orchestrator, err := shipments.NewOrchestrator(shipments.OrchestratorParams{
		Repo:      shipmentsRepo,
		Orders:    ordersRepo,
		TxRunner:  dbClient,
		Inventory: inventory.NewAdjuster(),
		Gateway:   gateway,
		Mailer:    mailer,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment orchestrator", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      ordersRepo,
		TxRunner:  dbClient,
		Fulfiller: orchestrator,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	shipmentsSvc, err := shipments.NewService(shipments.ServiceParams{
		Repo:         shipmentsRepo,
		Orders:       ordersRepo,
		Orchestrator: orchestrator,
		Gateway:      gateway,
		Cache:        redisClient,
		CacheTTL:     cfg.Tracking.CacheTTL,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment service", err)
		os.Exit(1)
	}

	webhookSvc, err := sendcloudwebhook.NewService(sendcloudwebhook.ServiceParams{
		Shipments: shipmentsRepo,
		Orders:    ordersRepo,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, ordersSvc, shipmentsSvc, webhookSvc),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
