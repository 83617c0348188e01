package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SQL flavour of the connected database. Queries are written with "?"
// placeholders and rebound for postgres.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a DB_DRIVER value onto a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// rebind rewrites "?" placeholders into "$n" for postgres.
func (d Dialect) rebind(q string) string {
	if d != DialectPostgres {
		return q
	}

	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Initialize the database schema. The DDL is valid for both SQLite and Postgres.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createSubscriptionsQuery := `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL DEFAULT '',
		chef_id TEXT NOT NULL DEFAULT '',
		driver_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		start_date TEXT,
		created_at TEXT NOT NULL,
		duration_weeks INTEGER NOT NULL DEFAULT 0,
		duration_days INTEGER NOT NULL DEFAULT 0,
		frequency TEXT NOT NULL DEFAULT '',
		next_delivery_date TEXT,
		meal_plan_id TEXT NOT NULL DEFAULT '',
		meal_plan_title TEXT NOT NULL DEFAULT '',
		meal_plan_snapshot TEXT
	);
	`

	createSlotStatesQuery := `
	CREATE TABLE IF NOT EXISTS slot_states (
		subscription_id TEXT NOT NULL,
		slot_date TEXT NOT NULL,
		meal_time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		delivery_status TEXT NOT NULL DEFAULT '',
		order_status TEXT NOT NULL DEFAULT '',
		delegation_status TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (subscription_id, slot_date, meal_time)
	);
	`

	createChefIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_subscriptions_chef_status
	ON subscriptions(chef_id, status);
	`

	statements := []string{
		createSubscriptionsQuery,
		createSlotStatesQuery,
		createChefIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
