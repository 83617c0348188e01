package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
)

// SQL-backed implementation of the SlotStatusStore port.
// Rows are keyed by (subscription_id, slot_date, meal_time).
type SQLSlotStatusStore struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSQLSlotStatusStore(db *sql.DB, dialect Dialect) *SQLSlotStatusStore {
	return &SQLSlotStatusStore{DB: db, Dialect: dialect}
}

const upsertSlotStateQuery = `
	INSERT INTO slot_states (
		subscription_id, slot_date, meal_time, status, delivery_status,
		order_status, delegation_status, order_id, notes, updated_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (subscription_id, slot_date, meal_time) DO UPDATE SET
		status = EXCLUDED.status,
		delivery_status = EXCLUDED.delivery_status,
		order_status = EXCLUDED.order_status,
		delegation_status = EXCLUDED.delegation_status,
		order_id = EXCLUDED.order_id,
		updated_at = EXCLUDED.updated_at;
`

func (s *SQLSlotStatusStore) ListSlotStates(
	ctx context.Context,
	subscriptionID string,
) (_ map[domain.SlotKey]domain.SlotState, err error) {
	defer obs.Time(ctx, "slots.List")(&err)

	if s.DB == nil {
		return nil, errors.New("slot status store: db is nil")
	}

	q := s.Dialect.rebind(`
	SELECT
		slot_date,
		meal_time,
		status,
		delivery_status,
		order_status,
		delegation_status,
		order_id,
		notes,
		updated_at
	FROM slot_states
	WHERE subscription_id = ?;
	`)

	rows, err := s.DB.QueryContext(ctx, q, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list slot states: query slot_states table: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.SlotKey]domain.SlotState)
	for rows.Next() {
		var (
			st        domain.SlotState
			mealTime  string
			status    string
			updatedAt string
		)
		if err := rows.Scan(
			&st.Key.Date,
			&mealTime,
			&status,
			&st.DeliveryStatus,
			&st.OrderStatus,
			&st.DelegationStatus,
			&st.OrderID,
			&st.Notes,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("list slot states: scan rows: %w", err)
		}
		st.Key.SubscriptionID = subscriptionID
		st.Key.MealTime = domain.MealTime(mealTime)
		st.Status = domain.Status(status)
		if t, ok := parseStoredTime(updatedAt, time.UTC); ok {
			st.UpdatedAt = t
		}
		out[st.Key] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slot states: row iteration: %w", err)
	}

	return out, nil
}

// CompareAndSetStatus writes next only while the stored status equals expected.
// An empty expected status creates the row when it does not exist yet.
func (s *SQLSlotStatusStore) CompareAndSetStatus(
	ctx context.Context,
	expected domain.Status,
	next domain.SlotState,
) (err error) {
	defer obs.Time(ctx, "slots.CompareAndSet")(&err)

	if s.DB == nil {
		return errors.New("slot status store: db is nil")
	}

	updatedAt := next.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	ts := updatedAt.UTC().Format(time.RFC3339Nano)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("compare and set slot %s: db begin: %w", next.Key, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.Dialect.rebind(`
	UPDATE slot_states
	SET status = ?,
		delivery_status = ?,
		order_status = ?,
		delegation_status = ?,
		order_id = ?,
		notes = ?,
		updated_at = ?
	WHERE subscription_id = ?
		AND slot_date = ?
		AND meal_time = ?
		AND status = ?;
	`),
		string(next.Status), next.DeliveryStatus, next.OrderStatus, next.DelegationStatus,
		next.OrderID, next.Notes, ts,
		next.Key.SubscriptionID, next.Key.Date, string(next.Key.MealTime), string(expected),
	)
	if err != nil {
		return fmt.Errorf("compare and set slot %s: update: %w", next.Key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compare and set slot %s: rows affected: %w", next.Key, err)
	}

	if n == 0 {
		if expected != "" {
			return domain.ErrConflict
		}

		res, err = tx.ExecContext(ctx, s.Dialect.rebind(`
		INSERT INTO slot_states (
			subscription_id, slot_date, meal_time, status, delivery_status,
			order_status, delegation_status, order_id, notes, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscription_id, slot_date, meal_time) DO NOTHING;
		`),
			next.Key.SubscriptionID, next.Key.Date, string(next.Key.MealTime),
			string(next.Status), next.DeliveryStatus, next.OrderStatus, next.DelegationStatus,
			next.OrderID, next.Notes, ts,
		)
		if err != nil {
			return fmt.Errorf("compare and set slot %s: insert: %w", next.Key, err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("compare and set slot %s: rows affected: %w", next.Key, err)
		}
		if n == 0 {
			return domain.ErrConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("compare and set slot %s: commit: %w", next.Key, err)
	}

	return nil
}
