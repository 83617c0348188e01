package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

type SlotStateSeed struct {
	Date             string `json:"date"`
	MealTime         string `json:"mealTime"`
	Status           string `json:"status"`
	DeliveryStatus   string `json:"deliveryStatus"`
	OrderStatus      string `json:"orderStatus"`
	DelegationStatus string `json:"delegationStatus"`
	OrderID          string `json:"orderId"`
}

type SubscriptionSeed struct {
	ID               string                   `json:"id"`
	CustomerID       string                   `json:"customerId"`
	ChefID           string                   `json:"chefId"`
	DriverID         string                   `json:"driverId"`
	Status           string                   `json:"status"`
	StartDate        string                   `json:"startDate"`
	CreatedAt        string                   `json:"createdAt"`
	DurationWeeks    int                      `json:"durationWeeks"`
	DurationDays     int                      `json:"durationDays"`
	Frequency        string                   `json:"frequency"`
	MealPlanID       string                   `json:"mealPlanId"`
	MealPlanTitle    string                   `json:"mealPlanTitle"`
	MealPlanSnapshot *domain.MealPlanSnapshot `json:"mealPlanSnapshot"`
	SlotStates       []SlotStateSeed          `json:"slotStates"`
}

// Populate the database with subscriptions and slot states from a JSON file.
func SeedFromJSON(db *sql.DB, dialect Dialect, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed subscriptions: read %q: %w", jsonPath, err)
	}

	var data []SubscriptionSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed subscriptions: parse json: %w", err)
	}

	for i, item := range data {
		if strings.TrimSpace(item.ID) == "" {
			return fmt.Errorf("seed subscriptions: item at index %d: id cannot be empty", i+1)
		}
		if item.Status == "" {
			data[i].Status = string(domain.SubscriptionActive)
		}
		if item.CreatedAt == "" {
			data[i].CreatedAt = time.Now().UTC().Format(time.RFC3339)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed subscriptions: begin tx: %w", err)
	}
	defer tx.Rollback()

	subStmt, err := tx.Prepare(dialect.rebind(`
	INSERT INTO subscriptions (
		id, customer_id, chef_id, driver_id, status, start_date, created_at,
		duration_weeks, duration_days, frequency, meal_plan_id, meal_plan_title,
		meal_plan_snapshot
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		customer_id = EXCLUDED.customer_id,
		chef_id = EXCLUDED.chef_id,
		driver_id = EXCLUDED.driver_id,
		status = EXCLUDED.status,
		start_date = EXCLUDED.start_date,
		created_at = EXCLUDED.created_at,
		duration_weeks = EXCLUDED.duration_weeks,
		duration_days = EXCLUDED.duration_days,
		frequency = EXCLUDED.frequency,
		meal_plan_id = EXCLUDED.meal_plan_id,
		meal_plan_title = EXCLUDED.meal_plan_title,
		meal_plan_snapshot = EXCLUDED.meal_plan_snapshot;
	`))
	if err != nil {
		return fmt.Errorf("seed subscriptions: prepare insert: %w", err)
	}
	defer subStmt.Close()

	slotStmt, err := tx.Prepare(dialect.rebind(upsertSlotStateQuery))
	if err != nil {
		return fmt.Errorf("seed subscriptions: prepare slot insert: %w", err)
	}
	defer slotStmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, s := range data {
		var snapshot sql.NullString
		if s.MealPlanSnapshot != nil {
			b, err := json.Marshal(s.MealPlanSnapshot)
			if err != nil {
				return fmt.Errorf("seed subscriptions: encode snapshot id=%s: %w", s.ID, err)
			}
			snapshot = sql.NullString{String: string(b), Valid: true}
		}

		var start sql.NullString
		if s.StartDate != "" {
			start = sql.NullString{String: s.StartDate, Valid: true}
		}

		if _, err := subStmt.Exec(
			s.ID, s.CustomerID, s.ChefID, s.DriverID, s.Status, start, s.CreatedAt,
			s.DurationWeeks, s.DurationDays, s.Frequency, s.MealPlanID, s.MealPlanTitle,
			snapshot,
		); err != nil {
			return fmt.Errorf("seed subscriptions: insert id=%s: %w", s.ID, err)
		}

		for _, st := range s.SlotStates {
			key, err := domain.NewSlotKey(s.ID, st.Date, domain.MealTime(st.MealTime))
			if err != nil {
				return fmt.Errorf("seed subscriptions: slot state id=%s: %w", s.ID, err)
			}
			if _, err := slotStmt.Exec(
				key.SubscriptionID, key.Date, string(key.MealTime),
				st.Status, st.DeliveryStatus, st.OrderStatus, st.DelegationStatus, st.OrderID, "", now,
			); err != nil {
				return fmt.Errorf("seed subscriptions: insert slot %s: %w", key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed subscriptions: commit tx: %w", err)
	}

	return nil
}
