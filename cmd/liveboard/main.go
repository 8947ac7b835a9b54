// Liveboard — доска доставки поверх POS API.
//
// Процесс держит синхронизированную коллекцию открытых заказов
// (polling + push-события RabbitMQ или NATS), выполняет действия
// оператора, собирает отчёты по водителям и отдаёт всё это через HTTP API.
//
// Использование:
//
//	liveboard [-config liveboard.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Liveboard/internal/api"
	"github.com/shaiso/Liveboard/internal/config"
	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/events"
	"github.com/shaiso/Liveboard/internal/kitchen"
	"github.com/shaiso/Liveboard/internal/mq"
	"github.com/shaiso/Liveboard/internal/natsbus"
	"github.com/shaiso/Liveboard/internal/orders"
	"github.com/shaiso/Liveboard/internal/posapi"
	"github.com/shaiso/Liveboard/internal/report"
	"github.com/shaiso/Liveboard/internal/repo"
	"github.com/shaiso/Liveboard/internal/scheduler"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("LIVEBOARD_CONFIG"), "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.NewLogger(telemetry.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	logger.Info("starting liveboard", "board", cfg.Board, "pos", cfg.POS.BaseURL)

	if err := run(cfg, logger); err != nil {
		logger.Error("liveboard failed", "error", err)
		os.Exit(1)
	}

	logger.Info("stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres опционален: без него нет тёплого старта и архива отчётов
	var (
		snapshots orders.SnapshotRepo
		archive   *repo.ReportRepo
		leader    scheduler.Leader
	)
	if cfg.Database.URL != "" {
		pool, err := connectDatabase(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("connected to database")

		snapshots = repo.NewSnapshotRepo(pool, cfg.Board)
		archive = repo.NewReportRepo(pool)

		lock := repo.NewAdvisoryLock(pool, repo.SchedulerLockKey)
		defer lock.Release(context.Background())
		leader = lock
	}

	// POS API
	pos := posapi.New(posapi.Config{
		BaseURL:    cfg.POS.BaseURL,
		Timeout:    cfg.POS.Timeout,
		OrderTypes: orderTypes(cfg.POS.OrderTypes),
		Logger:     logger,
	})

	rules := kitchen.NewRulesCache(pos, cfg.Kitchen.Drinks, cfg.Kitchen.RulesTTL, logger)

	// Push-транспорт: источник событий и оповещение соседних досок
	source, notifier, closeTransport, err := connectTransport(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	engine := orders.New(orders.Config{
		Source:       pos,
		Actions:      pos,
		Rules:        rules,
		Snapshots:    snapshots,
		Notifier:     notifier,
		PollInterval: cfg.Orders.PollInterval,
		HydrateLimit: cfg.Orders.HydrateLimit,
		SettleDelay:  cfg.Orders.SettleDelay,
		SettleWindow: cfg.Orders.SettleWindow,
		Logger:       logger,
	})

	aggCfg := report.Config{
		Source:  pos,
		Limit:   cfg.Reports.Limit,
		MaxDays: cfg.Reports.MaxDays,
		Logger:  logger,
	}
	if archive != nil {
		aggCfg.Archive = archive
	}
	reports := report.New(aggCfg)

	sched, err := scheduler.New(scheduler.Config{
		Reports:     reports,
		ReportCron:  cfg.Reports.Cron,
		DriverIDs:   cfg.Reports.DriverIDs,
		Refresher:   engine,
		RefreshCron: cfg.Orders.RefreshCron,
		Leader:      leader,
		Timezone:    cfg.Reports.Timezone,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	// Запуск
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()
	defer reports.Stop()

	router := events.NewRouter(events.RouterConfig{
		Refresher:    engine,
		Remover:      engine.Store(),
		Debounce:     cfg.Events.Debounce,
		ConnectDelay: cfg.Events.ConnectDelay,
		Logger:       logger,
	})
	defer router.Close()

	if source != nil {
		go func() {
			if err := router.Run(ctx, source); err != nil {
				logger.Error("push events stopped", "error", err)
			}
		}()
	}

	// HTTP API
	handlerCfg := api.Config{
		Engine:  engine,
		Reports: reports,
		Logger:  logger,
	}
	if archive != nil {
		handlerCfg.Archive = archive
	}
	handler := api.NewHandler(handlerCfg)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		return err
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	return nil
}

func connectDatabase(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := repo.NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// connectTransport подключает выбранный push-транспорт.
// Для транспорта none источник и notifier — nil.
func connectTransport(cfg config.EventsConfig, logger *slog.Logger) (events.Source, orders.Notifier, func(), error) {
	switch cfg.Transport {
	case config.TransportAMQP:
		conn, err := mq.NewConnection(cfg.AMQPURL, "liveboard", logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := mq.SetupTopology(context.Background(), conn); err != nil {
			conn.Close()
			return nil, nil, nil, err
		}
		logger.Debug("rabbitmq topology ready", "topology", mq.TopologyInfo())

		consumer := mq.NewEventConsumer(conn, logger, mq.ConsumerConfig{Prefetch: cfg.Prefetch})
		return consumer, mq.NewPublisher(conn, logger), func() { conn.Close() }, nil

	case config.TransportNATS:
		bus, err := natsbus.Connect(natsbus.Config{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.SubjectPrefix,
			Logger:        logger,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		// Bus закрывает Router.Run
		return bus, bus, func() {}, nil

	default:
		logger.Info("push events disabled, relying on polling")
		return nil, nil, func() {}, nil
	}
}

func orderTypes(names []string) []domain.OrderType {
	types := make([]domain.OrderType, 0, len(names))
	for _, name := range names {
		if t, ok := domain.ParseOrderType(name); ok {
			types = append(types, t)
		}
	}
	return types
}
