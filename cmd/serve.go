package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/reminder/internal/config"
	"github.com/jmehdipour/reminder/internal/db"
	httpSrv "github.com/jmehdipour/reminder/internal/http"
	"github.com/jmehdipour/reminder/internal/integration"
	"github.com/jmehdipour/reminder/internal/kafka"
	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		mysqlDB, err := db.MySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.Redis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.ClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		if chDB != nil {
			defer func() {
				_ = chDB.Close()
			}()
		}

		publisher, closePublisher, err := newPublisher(cmd.Context(), cfg, mysqlDB)
		if err != nil {
			return err
		}
		defer closePublisher()

		server := httpSrv.NewServer(cfg, mysqlDB, chDB, redisClient, publisher)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

// newPublisher picks where integration events go: straight to Kafka after a
// command commits, or into the outbox table within the command transaction
// for the relay worker.
func newPublisher(ctx context.Context, cfg config.Config, mysqlDB *sqlx.DB) (integration.Publisher, func(), error) {
	if cfg.Publisher.OutboxMode() {
		logger.Log.Info("publisher: outbox")
		return integration.NewOutboxPublisher(repository.NewOutboxRepository(mysqlDB)), func() {}, nil
	}

	kc := kafka.FromConfig(cfg.Kafka)
	tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := kafka.EnsureTopic(tctx, kc, kc.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		return nil, nil, fmt.Errorf("ensure topic: %w", err)
	}

	logger.Log.Info("publisher: direct", zap.String("topic", kc.Topic))
	p := kafka.NewProducerFromConfig(kc)
	return p, func() { _ = p.Close() }, nil
}
