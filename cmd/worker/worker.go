package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/reminder/internal/config"
	"github.com/jmehdipour/reminder/internal/db"
	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	// attach subcommands
	cmd.AddCommand(newProducerCmd())
	cmd.AddCommand(mailerCmd)
	cmd.AddCommand(consumerCmd)
	cmd.AddCommand(relayCmd)
	cmd.AddCommand(allCmd)

	return cmd
}

// deps holds the connections shared by the workers of one process. Stores
// other than MySQL are opened on first use.
type deps struct {
	cfg   config.Config
	log   *zap.Logger
	mysql *sqlx.DB

	ch      *sqlx.DB
	chOpen  bool
	rds     *redis.Client
	closers []func()
}

func loadDeps(cmd *cobra.Command) (*deps, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.MySQL(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}

	d := &deps{cfg: cfg, log: log, mysql: dbx}
	d.onClose(func() { _ = dbx.Close() })
	return d, nil
}

func (d *deps) onClose(fn func()) { d.closers = append(d.closers, fn) }

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	_ = d.log.Sync()
}

func (d *deps) redis() (*redis.Client, error) {
	if d.rds != nil {
		return d.rds, nil
	}
	rds, err := db.Redis(d.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	d.rds = rds
	d.onClose(func() { _ = rds.Close() })
	return rds, nil
}

// clickhouse returns nil when the delivery log is not configured.
func (d *deps) clickhouse() (*sqlx.DB, error) {
	if d.chOpen {
		return d.ch, nil
	}
	ch, err := db.ClickHouse(d.cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	d.ch, d.chOpen = ch, true
	if ch != nil {
		d.onClose(func() { _ = ch.Close() })
	}
	return ch, nil
}

// runner is one long-running worker loop.
type runner func(ctx context.Context) error

// builder wires a runner from the shared deps.
type builder func(d *deps) (runner, error)

// run builds every worker, then runs them until SIGINT/SIGTERM. The first
// worker to fail stops the others.
func run(cmd *cobra.Command, builders ...builder) error {
	d, err := loadDeps(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	runners := make([]runner, 0, len(builders))
	for _, b := range builders {
		r, err := b(d)
		if err != nil {
			return err
		}
		if r != nil {
			runners = append(runners, r)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		r := r
		g.Go(func() error { return r(ctx) })
	}
	return g.Wait()
}
