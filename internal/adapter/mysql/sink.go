// Package mysql publishes facts to a MySQL table.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/Tiliavir/hamster-panel/internal/model"
)

// Table is the target table name.
const Table = "hamster_facts"

const createTable = `
CREATE TABLE IF NOT EXISTS hamster_facts (
  id           BIGINT       NOT NULL PRIMARY KEY,
  name         VARCHAR(255) NOT NULL,
  category     VARCHAR(255) NOT NULL DEFAULT '',
  description  TEXT         NOT NULL,
  tags         TEXT         NOT NULL,
  start        DATETIME(0)  NOT NULL,
  stop         DATETIME(0)  NULL,
  day          DATE         NULL,
  duration_sec BIGINT       NOT NULL,
  updated_at   DATETIME(6)  NOT NULL
) ENGINE=InnoDB;`

const upsertFact = `
INSERT INTO hamster_facts
  (id, name, category, description, tags, start, stop, day, duration_sec, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name=VALUES(name),
  category=VALUES(category),
  description=VALUES(description),
  tags=VALUES(tags),
  start=VALUES(start),
  stop=VALUES(stop),
  day=VALUES(day),
  duration_sec=VALUES(duration_sec),
  updated_at=VALUES(updated_at);
`

// Client writes facts to MySQL.
type Client struct {
	db  *sql.DB
	log *zap.SugaredLogger
	now func() time.Time
}

// NewClient opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true
func NewClient(ctx context.Context, dsn string, log *zap.SugaredLogger) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Client{db: db, log: log, now: time.Now}, nil
}

// Migrate creates the facts table when it does not exist yet.
func (c *Client) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("mysql: creating %s: %w", Table, err)
	}
	return nil
}

// SyncFacts upserts facts keyed by id. Open facts are stored with a NULL
// stop and the duration measured up to now.
func (c *Client) SyncFacts(ctx context.Context, facts []model.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, upsertFact)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := c.now()
	for _, f := range facts {
		if _, err := stmt.ExecContext(ctx, factArgs(f, now)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("mysql: upserting fact %d: %w", f.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	c.log.Infow("mysql sink upserted facts", "count", len(facts))
	return nil
}

// factArgs returns the upsert parameters for f in column order.
func factArgs(f model.Fact, now time.Time) []any {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	// Stored as JSON text for readability.
	tagsJSON, _ := json.Marshal(tags)

	var stop, day any
	end := now
	if f.End != nil {
		stop = f.End.UTC()
		end = *f.End
	}
	if !f.Date.IsZero() {
		day = f.Date.UTC().Format("2006-01-02")
	}
	dur := int64(end.Sub(f.Start) / time.Second)
	if dur < 0 {
		dur = 0
	}
	return []any{
		f.ID,
		f.Name,
		f.Category,
		f.Description,
		string(tagsJSON),
		f.Start.UTC(),
		stop,
		day,
		dur,
		now.UTC(),
	}
}

// Close closes the underlying DB.
func (c *Client) Close() error { return c.db.Close() }
