package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/eventstore"
	"storefront/internal/infra/mail"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	repo "storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

func main() {
	logger := log.New("storefront")
	logger.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}"}`)

	//.envは無くてもよい（本番は環境変数）
	if err := godotenv.Load(); err != nil {
		logger.Infof(".env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(logLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatalf("db: %v", err)
	}
	if cfg.DBAutoMigrate {
		if err := db.Migrate(gormDB); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}

	//webhookの重複排除（REDIS_URLが無ければ無効）
	var events repo.WebhookEventStore = eventstore.Noop{}
	if cfg.RedisURL != "" {
		rdb, err := eventstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		events = eventstore.NewRedisStore(rdb, eventstore.DefaultTTL)
	} else {
		logger.Warn("REDIS_URL is not set; webhook events are not de-duplicated")
	}

	//Repository（GORM実装）生成
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	roleRepo := infraRepo.NewUserRoleGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//外部サービス
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeCurrency, cfg.StripeAllowedCountries)
	verifier := payment.NewStripeWebhookVerifier(cfg.StripeWebhookSecret, logger)
	mailer := mail.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom, cfg.SiteURL, logger)
	clock := usecase.SystemClock{}

	//Usecase生成
	cartUC := usecase.NewCartUsecase(cartRepo, productRepo, txm, logger)
	checkoutUC := usecase.NewCheckoutUsecase(productRepo, txm, gateway, validator.NewCheckoutValidator(), clock, logger)
	webhookUC := usecase.NewWebhookUsecase(verifier, orderRepo, orderItemRepo, events, cartUC, mailer, logger)
	orderUC := usecase.NewOrderUsecase(txm)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, auditRepo, mailer, clock, logger)

	//Handler生成
	srv := server.New(cfg, logger, server.Handlers{
		Checkout:   handler.NewCheckoutHandler(checkoutUC, orderUC),
		Webhook:    handler.NewWebhookHandler(webhookUC),
		Cart:       handler.NewCartHandler(cartUC),
		Orders:     handler.NewOrderHandler(orderUC),
		AdminOrder: handler.NewAdminOrderHandler(adminOrderUC),
	}, roleRepo)

	//Server起動
	if err := srv.Run(ctx); err != nil {
		logger.Fatalf("server: %v", err)
	}
}

func logLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
