// Package migrations embeds the SQL schema so the migrate command does not
// depend on the working directory.
package migrations

import _ "embed"

//go:embed 001_init.sql
var MySQLInit string

//go:embed clickhouse_001_deliveries.sql
var ClickHouseDeliveries string
