package db

import (
	"github.com/jmehdipour/reminder/internal/config"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// MySQL opens the primary store from its config section.
func MySQL(c config.DatabaseConfig) (*sqlx.DB, error) {
	return NewMySQLConnection(c.DSN, MySQLOpts{
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	})
}

// ClickHouse returns (nil, nil) when no DSN is configured.
func ClickHouse(c config.DatabaseConfig) (*sqlx.DB, error) {
	return NewClickHouseConnection(ClickHouseOpts{
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		PingTimeout:     c.PingTimeout,
	})
}

func Redis(c config.RedisConfig) (*redis.Client, error) {
	return NewRedisClient(RedisOpts{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		PoolSize:     c.PoolSize,
	})
}
