package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
)

// SQL-backed implementation of the SubscriptionRepository port.
type SQLSubscriptionRepository struct {
	DB      *sql.DB
	Dialect Dialect

	// Location anchors bare calendar dates such as start_date. Nil means UTC.
	Location *time.Location
}

func NewSQLSubscriptionRepository(db *sql.DB, dialect Dialect, loc *time.Location) *SQLSubscriptionRepository {
	return &SQLSubscriptionRepository{DB: db, Dialect: dialect, Location: loc}
}

const selectSubscriptionColumns = `
	SELECT
		id,
		customer_id,
		chef_id,
		driver_id,
		status,
		start_date,
		created_at,
		duration_weeks,
		duration_days,
		frequency,
		next_delivery_date,
		meal_plan_id,
		meal_plan_title,
		meal_plan_snapshot
	FROM subscriptions
`

func (s *SQLSubscriptionRepository) GetSubscription(ctx context.Context, id string) (_ *domain.Subscription, err error) {
	defer obs.Time(ctx, "subscriptions.Get")(&err)

	if s.DB == nil {
		return nil, errors.New("sql subscription repository: DB is nil")
	}

	q := s.Dialect.rebind(selectSubscriptionColumns + ` WHERE id = ?;`)
	row := s.DB.QueryRowContext(ctx, q, id)

	sub, err := scanSubscription(row, s.Location)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %q: %w", id, err)
	}

	return sub, nil
}

func (s *SQLSubscriptionRepository) ListActiveSubscriptions(ctx context.Context) (_ []*domain.Subscription, err error) {
	defer obs.Time(ctx, "subscriptions.ListActive")(&err)

	q := s.Dialect.rebind(selectSubscriptionColumns + ` WHERE status = ? ORDER BY id;`)
	return s.list(ctx, "list active subscriptions", q, string(domain.SubscriptionActive))
}

func (s *SQLSubscriptionRepository) ListSubscriptionsByChef(ctx context.Context, chefID string) (_ []*domain.Subscription, err error) {
	defer obs.Time(ctx, "subscriptions.ListByChef")(&err)

	q := s.Dialect.rebind(selectSubscriptionColumns + ` WHERE chef_id = ? AND status = ? ORDER BY id;`)
	return s.list(ctx, "list chef subscriptions", q, chefID, string(domain.SubscriptionActive))
}

func (s *SQLSubscriptionRepository) list(ctx context.Context, op, q string, args ...any) ([]*domain.Subscription, error) {
	if s.DB == nil {
		return nil, errors.New("sql subscription repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query subscriptions table: %w", op, err)
	}
	defer rows.Close()

	subs := make([]*domain.Subscription, 0, 16)
	for rows.Next() {
		sub, err := scanSubscription(rows, s.Location)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: row iteration: %w", op, err)
	}

	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner, loc *time.Location) (*domain.Subscription, error) {
	var (
		sub               domain.Subscription
		status            string
		start, next, snap sql.NullString
		createdAt         string
		durWeeks, durDays int
	)

	if err := row.Scan(
		&sub.ID,
		&sub.CustomerID,
		&sub.ChefID,
		&sub.DriverID,
		&status,
		&start,
		&createdAt,
		&durWeeks,
		&durDays,
		&sub.Frequency,
		&next,
		&sub.MealPlanID,
		&sub.MealPlanTitle,
		&snap,
	); err != nil {
		return nil, err
	}

	sub.Status = domain.SubscriptionStatus(status)
	sub.DurationWeeks = durWeeks
	sub.DurationDays = durDays

	if t, ok := parseStoredTime(createdAt, loc); ok {
		sub.CreatedAt = t
	}
	if start.Valid {
		if t, ok := parseStoredTime(start.String, loc); ok {
			sub.StartDate = &t
		}
	}
	if next.Valid {
		if t, ok := parseStoredTime(next.String, loc); ok {
			sub.NextDeliveryDate = &t
		}
	}

	// An unreadable snapshot is treated as missing; the projector then
	// falls back to the synthetic schedule.
	if snap.Valid && strings.TrimSpace(snap.String) != "" {
		var s domain.MealPlanSnapshot
		if err := json.Unmarshal([]byte(snap.String), &s); err == nil {
			sub.Snapshot = &s
		}
	}

	return &sub, nil
}

// parseStoredTime accepts RFC 3339 timestamps and bare dates.
// Bare dates are read as midnight in loc.
func parseStoredTime(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(domain.DateLayout, v, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}
