package clickhouse

import (
	"context"
	"fmt"
	"time"

	"aggregator/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Conn is the analytics-store client. One batch per flush: all rows of a
// drained buffer go into a single INSERT that succeeds or fails as a whole.
type Conn struct {
	conn driver.Conn
}

// Connect opens and pings the store. A failed ping at startup is fatal for
// the process, so the error is returned rather than retried here.
func Connect(ctx context.Context, cfg config.Config) (*Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.ClickHouseAddr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDB,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePass,
		},
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Conn{conn: conn}, nil
}

// Insert bulk-writes one batch of row structs into table. Rows are appended
// by their ch struct tags; Send commits the batch atomically.
func (c *Conn) Insert(ctx context.Context, table string, rows []any) error {
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("prepare batch %s: %w", table, err)
	}
	for _, row := range rows {
		if err := batch.AppendStruct(row); err != nil {
			return fmt.Errorf("append row %s: %w", table, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch %s: %w", table, err)
	}
	return nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
