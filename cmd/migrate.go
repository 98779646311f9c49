package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmehdipour/reminder/internal/config"
	"github.com/jmehdipour/reminder/internal/db"
	"github.com/jmehdipour/reminder/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL schema and, when configured, the ClickHouse delivery log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.MySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		if _, err := sqlDB.Exec(migrations.MySQLInit); err != nil {
			return fmt.Errorf("exec mysql migration: %w", err)
		}
		log.Println(">> MySQL schema ready")

		chDB, err := db.ClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		if chDB == nil {
			log.Println(">> ClickHouse not configured, delivery log skipped")
			return nil
		}
		defer chDB.Close()

		// clickhouse-go runs one statement per Exec
		for _, stmt := range strings.Split(migrations.ClickHouseDeliveries, ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := chDB.ExecContext(context.Background(), stmt); err != nil {
				return fmt.Errorf("exec clickhouse migration: %w", err)
			}
		}
		log.Println(">> ClickHouse delivery log ready")
		return nil
	},
}
