package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/proposal-studio/internal/ai"
	"github.com/ignatzorin/proposal-studio/internal/config"
	"github.com/ignatzorin/proposal-studio/internal/content"
	"github.com/ignatzorin/proposal-studio/internal/db"
	httpHandlers "github.com/ignatzorin/proposal-studio/internal/http/handlers"
	httpRouter "github.com/ignatzorin/proposal-studio/internal/http/router"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/mailer"
	"github.com/ignatzorin/proposal-studio/internal/payments"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/service"
	"github.com/ignatzorin/proposal-studio/internal/storage"
	"github.com/ignatzorin/proposal-studio/internal/telemetry"
	"github.com/ignatzorin/proposal-studio/internal/ws"
)

// version задаётся при сборке через -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel)
	if !cfg.IsProduction() {
		logger.SetTextFormatter()
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		logger.Log.WithError(err).Warn("main: трассировка не запущена")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка подключения к базе")
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn); err != nil {
		logger.Log.WithError(err).Fatal("main: ошибка миграций")
	}

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось подготовить файловое хранилище")
	}

	renderer, err := content.NewRenderer()
	if err != nil {
		logger.Log.WithError(err).Fatal("main: не удалось загрузить шаблоны документов")
	}

	// Внешние провайдеры.
	var writer service.CopyWriter
	if provider, err := ai.NewProvider(ctx, cfg.AI); err != nil {
		logger.Log.WithError(err).Warn("main: AI провайдер не настроен, генерация текста отключена")
	} else {
		writer = ai.NewWriter(provider)
	}
	mail := mailer.New(cfg.Email)
	stripeGateway := payments.NewStripeGateway(cfg.Stripe)
	paypalClient := payments.NewPayPalClient(cfg.PayPal)

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	mediaRepo := repository.NewMediaRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	proposalRepo := repository.NewProposalRepository(dbConn)
	templateRepo := repository.NewProposalTemplateRepository(dbConn)
	brandKitRepo := repository.NewBrandKitRepository(dbConn)
	shareRepo := repository.NewShareRepository(dbConn)
	signatureRepo := repository.NewSignatureRepository(dbConn)
	paymentLinkRepo := repository.NewPaymentLinkRepository(dbConn)
	subscriptionRepo := repository.NewSubscriptionRepository(dbConn)
	webhookEventRepo := repository.NewWebhookEventRepository(dbConn)
	webhookRepo := repository.NewWebhookRepository(dbConn)
	analyticsRepo := repository.NewAnalyticsRepository(dbConn)

	links := service.Links{AppURL: cfg.PublicAppURL, APIURL: cfg.PublicAPIURL}
	cache := service.NewCacheService()
	defer cache.Close()

	// Вебсокеты.
	notificationService := service.NewNotificationService(notificationRepo)
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	// Исходящие вебхуки пользователей.
	dispatcher := service.NewWebhookDispatcher(webhookRepo, &http.Client{Timeout: 10 * time.Second})
	webhookService := service.NewWebhookService(webhookRepo, dispatcher, cfg.IsProduction())

	// Сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, mediaRepo, tokenManager)
	mediaService := service.NewMediaService(mediaRepo, blobs, cfg.Storage.MaxUploadSizeMB<<20)
	brandKitService := service.NewBrandKitService(brandKitRepo, mediaRepo)
	analyticsService := service.NewAnalyticsService(analyticsRepo, proposalRepo, notificationRepo, cache)
	documents := service.NewDocumentBuilder(renderer, signatureRepo, paymentLinkRepo, userRepo, blobs)

	paymentLinkService := service.NewPaymentLinkService(paymentLinkRepo, proposalRepo, nil, stripeGateway, paypalClient, links)
	billingService := service.NewBillingService(subscriptionRepo, webhookEventRepo, stripeGateway, paypalClient, paymentLinkService, userRepo, links, cfg.IsProduction())
	billingService.SetHub(hub)
	billingService.SetCache(cache)

	shareService := service.NewShareService(shareRepo, proposalRepo, signatureRepo, paymentLinkRepo, documents, analyticsService, cfg.Share.DefaultTTL, cfg.Share.MaxTTL)
	shareService.SetHub(hub)
	shareService.SetDispatcher(dispatcher)
	shareService.SetCache(cache)

	proposalService := service.NewProposalService(proposalRepo, signatureRepo, templateRepo, brandKitRepo, userRepo, documents, links, cfg.Limits.FreeProposals)
	proposalService.SetShares(shareService)
	proposalService.SetEvents(analyticsService)
	proposalService.SetMailer(mail)
	proposalService.SetSubscriptions(billingService)
	proposalService.SetDispatcher(dispatcher)
	proposalService.SetCache(cache)

	signatureService := service.NewSignatureService(signatureRepo, proposalRepo, shareService, blobs, userRepo, links)
	signatureService.SetEvents(analyticsService)
	signatureService.SetMailer(mail)
	signatureService.SetHub(hub)
	signatureService.SetDispatcher(dispatcher)
	signatureService.SetCache(cache)

	paymentLinkService.SetSubscriptions(billingService)
	paymentLinkService.SetEvents(analyticsService)
	paymentLinkService.SetHub(hub)
	paymentLinkService.SetDispatcher(dispatcher)
	paymentLinkService.SetCache(cache)

	templateService := service.NewProposalTemplateService(templateRepo, proposalRepo, cache)
	seedService := service.NewSeedService(templateRepo, cache)
	aiService := service.NewAIService(writer)

	if cfg.SeedTemplates {
		result, err := seedService.SeedSystemTemplates(ctx)
		if err != nil {
			logger.Log.WithError(err).Error("main: не удалось заполнить системные шаблоны")
		} else {
			logger.Log.WithField("created", result.Created).WithField("updated", result.Updated).Info("main: системные шаблоны обновлены")
		}
	}

	// HTTP хэндлеры.
	h := httpRouter.Handlers{
		Health:        httpHandlers.NewHealthHandler(dbConn, version),
		Auth:          httpHandlers.NewAuthHandler(authService),
		Profile:       httpHandlers.NewProfileHandler(authService),
		Proposals:     httpHandlers.NewProposalHandler(proposalService, analyticsService),
		Shares:        httpHandlers.NewShareHandler(shareService),
		Signatures:    httpHandlers.NewSignatureHandler(signatureService),
		BrandKits:     httpHandlers.NewBrandKitHandler(brandKitService),
		Media:         httpHandlers.NewMediaHandler(mediaService, cfg.Storage.MaxUploadSizeMB<<20),
		Webhooks:      httpHandlers.NewWebhookHandler(webhookService),
		PaymentLinks:  httpHandlers.NewPaymentLinkHandler(paymentLinkService),
		Billing:       httpHandlers.NewBillingHandler(billingService),
		AI:            httpHandlers.NewAIHandler(aiService),
		Templates:     httpHandlers.NewProposalTemplateHandler(templateService),
		Notifications: httpHandlers.NewNotificationHandler(notificationService),
		Dashboard:     httpHandlers.NewDashboardHandler(analyticsService),
		WS:            httpHandlers.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Seed:          httpHandlers.NewSeedHandler(seedService),
	}

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, h, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	}()

	logger.Log.WithField("port", cfg.HTTPPort).WithField("version", version).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Log.WithError(err).Fatal("main: сервер завершился с ошибкой")
	}

	// ListenAndServe возвращается сразу, а обработчики ещё дорабатывают в Shutdown.
	<-shutdownDone

	// Дожидаемся доставки вебхуков, поставленных в очередь до остановки.
	dispatcher.Shutdown()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Log.WithError(err).Warn("main: ошибка остановки трассировки")
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		logger.Log.WithError(err).Error("main: ошибка закрытия базы")
	}
}
