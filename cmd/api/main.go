package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/crewpay/payments-api/internal/application/auth"
	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/internal/infrastructure/compliance"
	"github.com/crewpay/payments-api/internal/infrastructure/grants"
	"github.com/crewpay/payments-api/internal/infrastructure/notify"
	infrapdf "github.com/crewpay/payments-api/internal/infrastructure/pdf"
	"github.com/crewpay/payments-api/internal/infrastructure/postgres"
	"github.com/crewpay/payments-api/internal/infrastructure/provider"
	httpRouter "github.com/crewpay/payments-api/internal/interfaces/http"
	"github.com/crewpay/payments-api/pkg/config"
	"github.com/crewpay/payments-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("starting application")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("PostgreSQL connection")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	allocationRepo := postgres.NewEquityAllocationRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	clock := payments.SystemClock{}
	providerClient := provider.NewClient(cfg.Payments.ProviderBaseURL, cfg.Payments.ProviderAPIKey, log)
	taxChecker := compliance.NewClient(cfg.Payments.ComplianceBaseURL, log)
	grantService := grants.NewService(companyRepo, log)
	notifier := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	defer notifier.Close()

	submitUC := payments.NewSubmitInvoiceUseCase(txRunner, companyRepo, allocationRepo, clock)
	consolidationUC := payments.NewConsolidationUseCase(
		txRunner, invoiceRepo, providerClient, taxChecker, grantService, notifier, log, clock,
	)
	approvalUC := payments.NewApprovalUseCase(txRunner, taxChecker, consolidationUC, notifier, clock)
	queryUC := payments.NewInvoiceQueryUseCase(invoiceRepo, companyRepo, allocationRepo, taxChecker, txRunner, clock)
	pdfUC := payments.NewPDFUseCase(invoiceRepo, companyRepo, userRepo, infrapdf.NewMarotoPDFGenerator())
	authUC := auth.NewAuthUseCase(userRepo, companyRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "CrewPay API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:          authUC,
		SubmitUC:        submitUC,
		QueryUC:         queryUC,
		ApprovalUC:      approvalUC,
		ConsolidationUC: consolidationUC,
		PDFUC:           pdfUC,
		JWTSecret:       cfg.JWT.Secret,
		WebhookSecret:   cfg.Payments.WebhookSecret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	log.Info().Msg("application stopped")
}
