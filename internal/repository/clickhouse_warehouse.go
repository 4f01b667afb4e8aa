package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"MacoPull/internal/domain/models"
	domrepo "MacoPull/internal/domain/repository"
	pkgch "MacoPull/pkg/clickhouse"
	applogger "MacoPull/pkg/logger"
)

const warehouseChunkSize = 2000

var warehouseColumns = []string{
	"symbol", "ts", "close", "sma_s", "sma_l", "buy_signal", "sell_signal", "direction", "ingested_at",
}

// CHWarehouse appends signal rows to a ClickHouse MergeTree table.
type CHWarehouse struct {
	db    *sql.DB
	sq    squirrel.StatementBuilderType
	table string
	l     *applogger.Logger
}

var _ domrepo.WarehouseSink = (*CHWarehouse)(nil)

// NewCHWarehouse binds to database.table on the given client.
func NewCHWarehouse(ch *pkgch.Client, table string, l *applogger.Logger) *CHWarehouse {
	if l == nil {
		l = applogger.Nop()
	}
	fq := table
	if db := ch.Database(); db != "" && !strings.Contains(table, ".") {
		fq = db + "." + table
	}
	return &CHWarehouse{
		db:    ch.DB(),
		sq:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		table: fq,
		l:     l,
	}
}

func (w *CHWarehouse) Append(ctx context.Context, rows []models.WarehouseRow) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	for lo := 0; lo < len(rows); lo += warehouseChunkSize {
		hi := lo + warehouseChunkSize
		if hi > len(rows) {
			hi = len(rows)
		}
		q, args, err := w.insertQuery(rows[lo:hi])
		if err != nil {
			return fmt.Errorf("build warehouse insert: %w", err)
		}
		if _, err := w.db.ExecContext(ctx, q, args...); err != nil {
			w.l.Error("clickhouse append error",
				applogger.String("table", w.table),
				applogger.Int("rows", hi-lo),
				applogger.Error(err),
			)
			return fmt.Errorf("warehouse append: %w", err)
		}
	}
	w.l.Debug("clickhouse append ok",
		applogger.String("table", w.table),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

func (w *CHWarehouse) insertQuery(rows []models.WarehouseRow) (string, []interface{}, error) {
	ins := w.sq.Insert(w.table).Columns(warehouseColumns...)
	for _, r := range rows {
		ins = ins.Values(
			r.Symbol,
			r.TS.UTC(),
			r.Close,
			nullFloat(r.SMAS),
			nullFloat(r.SMAL),
			boolToUInt8(r.BuySignal),
			boolToUInt8(r.SellSignal),
			r.Direction,
			r.IngestedAt.UTC(),
		)
	}
	return ins.ToSql()
}

// Recent returns the latest rows for symbol, oldest first.
func (w *CHWarehouse) Recent(ctx context.Context, symbol string, limit int) ([]models.WarehouseRow, error) {
	q, args, err := w.recentQuery(symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("build warehouse select: %w", err)
	}
	rows, err := w.db.QueryContext(ctx, q, args...)
	if err != nil {
		w.l.Error("clickhouse recent query error",
			applogger.String("table", w.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("warehouse recent: %w", err)
	}
	defer rows.Close()

	out := make([]models.WarehouseRow, 0, limit)
	for rows.Next() {
		var (
			r          models.WarehouseRow
			smaS, smaL sql.NullFloat64
			buy, sell  uint8
		)
		if err := rows.Scan(&r.Symbol, &r.TS, &r.Close, &smaS, &smaL, &buy, &sell, &r.Direction, &r.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan warehouse row: %w", err)
		}
		r.SMAS = floatPtr(smaS)
		r.SMAL = floatPtr(smaL)
		r.BuySignal = buy == 1
		r.SellSignal = sell == 1
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (w *CHWarehouse) recentQuery(symbol string, limit int) (string, []interface{}, error) {
	if limit <= 0 {
		limit = 1
	}
	return w.sq.
		Select(warehouseColumns...).
		From(w.table).
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("ingested_at DESC").
		Limit(uint64(limit)).
		ToSql()
}

func (w *CHWarehouse) Close() error {
	return nil // connection owned by pkg/clickhouse.Client
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
