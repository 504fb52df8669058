package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"wallet_ledger/internal/api"
	"wallet_ledger/internal/autocancel"
	"wallet_ledger/internal/clock"
	"wallet_ledger/internal/config"
	"wallet_ledger/internal/db"
	"wallet_ledger/internal/deposit"
	"wallet_ledger/internal/events"
	"wallet_ledger/internal/logger"
	"wallet_ledger/internal/metrics"
	"wallet_ledger/internal/payment"
	"wallet_ledger/internal/rollover"
	"wallet_ledger/internal/settings"
	"wallet_ledger/internal/settlement"
	"wallet_ledger/internal/wallet"
	"wallet_ledger/internal/withdrawal"
)

func main() {
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		logger.InitLogger("info").Fatalf("invalid configuration: %v", err)
	}
	log := logger.InitLogger(cfg.LogLevel)

	database, err := db.ConnectDb(cfg.DBConnStr, log)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.Migrate(database, log); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	clk := clock.RealClock{}

	hub := events.NewHub()
	publisher := events.Multi{hub}
	if cfg.KafkaBrokers != "" {
		kafkaPublisher := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.KafkaTopic)
		defer kafkaPublisher.Close()
		publisher = append(publisher, kafkaPublisher)
		log.WithField("topic", cfg.KafkaTopic).Info("publishing wallet events to kafka")
	}

	walletService := wallet.NewService(wallet.NewWalletRepositoryImpl(database, clk))
	rolloverEvents := rollover.NewEventRepository(database)
	rolloverService := rollover.NewService(walletService, rolloverEvents)

	settingsService := settings.NewService(
		settings.NewRepository(database),
		settings.NewRescaler(walletService, m, log),
		publisher,
		log,
	)

	processor := settlement.NewProcessor(
		walletService,
		rolloverEvents,
		settlement.NewRepository(),
		publisher,
		m,
		log,
		settlement.Options{Dedupe: cfg.SettlementDedupe},
	)

	depositService := deposit.NewService(
		deposit.NewRepository(database),
		walletService,
		settingsService,
		payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPITimeout, log),
		publisher,
		m,
		clk,
		log,
	)
	withdrawalService := withdrawal.NewService(
		withdrawal.NewRepository(database),
		walletService,
		settingsService,
		publisher,
		m,
		clk,
		log,
	)

	var webhook api.WebhookVerifier
	if cfg.PaymentWebhookSecret != "" {
		w, err := payment.NewWebhook(cfg.PaymentWebhookSecret)
		if err != nil {
			log.Fatalf("invalid PAYMENT_WEBHOOK_SECRET: %v", err)
		}
		webhook = w
	} else {
		log.Warn("PAYMENT_WEBHOOK_SECRET not set, payment webhook disabled")
	}

	var locker autocancel.Locker
	if cfg.RedisAddr != "" {
		rdb, err := autocancel.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		locker = autocancel.NewRedisLocker(rdb, autocancel.LockTTL(cfg.AutoCancelInterval))
	}
	sweeper := autocancel.NewSweeper(depositService, withdrawalService, locker, autocancel.Config{
		Timeout:  cfg.AutoCancelTimeout,
		Interval: cfg.AutoCancelInterval,
		Batch:    cfg.AutoCancelBatch,
	}, clk, m, log)

	router := api.NewRouter(api.Deps{
		Wallets:     walletService,
		Rollover:    rolloverService,
		Provider:    processor,
		Deposits:    depositService,
		Withdrawals: withdrawalService,
		Settings:    settingsService,
		Webhook:     webhook,
		Stream:      hub,
		Log:         log,
	})
	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsServer := metrics.NewServer(cfg.MetricsAddr, reg, func(ctx context.Context) error {
		sqlDB, err := database.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("api listening on %s", cfg.HTTPAddr)
		return serve(apiServer)
	})
	g.Go(func() error {
		log.Infof("metrics listening on %s", cfg.MetricsAddr)
		return serve(metricsServer)
	})
	g.Go(func() error {
		return sweeper.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Errorf("server stopped with error: %v", err)
		os.Exit(1)
	}
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
