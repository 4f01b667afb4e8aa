package clickhouse

import "fmt"

// SignalTableDDL returns the statements creating the append-only signal table.
// Rows are only ever appended.
func SignalTableDDL(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    symbol      LowCardinality(String),
    ts          DateTime64(3, 'UTC'),
    close       Float64,
    sma_s       Nullable(Float64),
    sma_l       Nullable(Float64),
    buy_signal  UInt8,
    sell_signal UInt8,
    direction   LowCardinality(String),
    ingested_at DateTime64(3, 'UTC')
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (symbol, ts, ingested_at)`, database, table),
	}
}
