package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement/internal/api"
	"settlement/internal/api/middleware"
	"settlement/internal/config"
	"settlement/internal/ledger"
	"settlement/internal/pubsub"
	"settlement/internal/repository"
	"settlement/internal/service"
	"settlement/internal/websocket"
	"settlement/migrations"
	"settlement/pkg/utils"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}).WithComponent("main")
	defer log.Sync()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", utils.Err(err), utils.String("dsn", cfg.Database.DSNWithoutPassword()))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = migrations.Apply(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		log.Fatal("failed to apply migrations", utils.Err(err))
	}
	log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Идентификатор экземпляра: метка origin в pub/sub и владелец резервов UTXO
	instanceID := uuid.NewString()

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	// Инициализация репозиториев
	txManager := repository.NewTxManager(db)
	offerRepo := repository.NewOfferRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	issuanceRepo := repository.NewIssuanceRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	investorRepo := repository.NewICOInvestorRepository(db)
	portfolioRepo := repository.NewPortfolioAddressRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// WebSocket hub и доставка уведомлений между экземплярами
	hub := websocket.NewHub(cfg.Security.AllowedOrigins)
	go hub.Run()

	notificationService := service.NewNotificationService(notificationRepo)
	notificationService.SetWebSocketHub(hub)

	var subscriber *pubsub.Subscriber
	if rdb != nil {
		notificationService.SetPublisher(pubsub.NewPublisher(rdb, cfg.Redis.NotifyChannel, instanceID))

		subscriber = pubsub.NewSubscriber(rdb, cfg.Redis.NotifyChannel, instanceID, hub)
		if err := subscriber.Start(context.Background()); err != nil {
			log.Fatal("failed to subscribe to notifications channel", utils.Err(err))
		}
	}

	// Инициализация сервисов
	validator := service.NewQuantityValidator(issuanceRepo, orderRepo)
	transactionService := service.NewTransactionService(transactionRepo, issuanceRepo, txManager)
	offerService := service.NewOfferService(offerRepo, orderRepo, transactionService, validator, notificationService)
	orderService := service.NewOrderService(orderRepo, validator)

	ledgerClient := ledger.NewClient(ledger.ClientConfig{
		URL:           cfg.Ledger.URL,
		User:          cfg.Ledger.User,
		Password:      cfg.Ledger.Password,
		Timeout:       cfg.Ledger.Timeout,
		RateLimit:     cfg.Ledger.RateLimit,
		RetryAttempts: cfg.Ledger.RetryAttempts,
	})
	defer ledgerClient.Close()

	var (
		payoutService *service.PayoutService
		payouts       service.PayoutTrigger
	)
	if cfg.Payout.Enabled {
		payoutService, err = initPayouts(cfg, rdb, instanceID, ledgerClient, investorRepo, transactionService)
		if err != nil {
			log.Fatal("failed to initialize payouts", utils.Err(err))
		}
		payouts = payoutService
	} else {
		log.Warn("ICO payouts disabled")
	}

	portfolioService := service.NewPortfolioAddressService(portfolioRepo, payouts)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		OfferService:            offerService,
		OrderService:            orderService,
		TransactionService:      transactionService,
		PortfolioAddressService: portfolioService,
		NotificationService:     notificationService,
		Hub:                     hub,
		Auth:                    middleware.NewInternalAuth(cfg.Security.InternalTokenHash),
		AllowedOrigins:          cfg.Security.AllowedOrigins,
		RateLimit:               cfg.Server.RateLimit,
		RateBurst:               cfg.Server.RateBurst,
	}
	if cfg.Security.InternalTokenHash == "" {
		log.Warn("INTERNAL_TOKEN_HASH is empty, all requests are treated as external")
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(deps)

	// HTTP сервер
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск сервера в отдельной горутине
	go func() {
		log.Info("starting server", utils.String("addr", server.Addr), utils.String("instance", instanceID))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", utils.Err(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", utils.Err(err))
	}

	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			log.Warn("error closing notifications subscriber", utils.Err(err))
		}
	}
	hub.Stop()

	// Дожидаемся выплат, уже отправленных в узел
	if payoutService != nil {
		if err := payoutService.Wait(ctx); err != nil {
			log.Warn("payouts still running at shutdown", utils.Err(err))
		}
	}

	log.Info("server exited")
}

// initPayouts собирает сервис выплат: ключ источника, резервирование UTXO
func initPayouts(
	cfg *config.Config,
	rdb *redis.Client,
	instanceID string,
	ledgerClient *ledger.Client,
	investors *repository.ICOInvestorRepository,
	transactions service.TransactionStore,
) (*service.PayoutService, error) {
	builder, err := ledger.NewBuilder(cfg.Payout.SourceWIF)
	if err != nil {
		return nil, fmt.Errorf("payout source key: %w", err)
	}

	derived, err := builder.SourceAddress(cfg.Ledger.Network)
	if err != nil {
		return nil, err
	}
	if derived != cfg.Payout.SourceAddress {
		return nil, fmt.Errorf("PAYOUT_SOURCE_ADDRESS %s does not match source key (%s)", cfg.Payout.SourceAddress, derived)
	}

	var reserver ledger.Reserver
	if rdb != nil {
		reserver = ledger.NewRedisReserver(rdb, cfg.Redis.ReservationTTL, instanceID)
	} else {
		reserver = ledger.NewMemoryReserver(cfg.Redis.ReservationTTL)
	}

	return service.NewPayoutService(investors, ledgerClient, builder, transactions, reserver, service.PayoutConfig{
		SourceAddress: cfg.Payout.SourceAddress,
		Network:       cfg.Ledger.Network,
		Fee:           cfg.Payout.Fee,
		Threshold:     cfg.Payout.Threshold,
	}), nil
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
