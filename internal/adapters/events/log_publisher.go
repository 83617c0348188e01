package events

import (
	"context"
	"log/slog"

	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (l *LogPublisher) PublishDailyWorkloadCompleted(ctx context.Context, evt ports.DailyWorkloadCompleted) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "daily workload completed",
		"event_id", evt.EventID,
		"chef_id", evt.ChefID,
		"date", evt.Date,
		"meal_count", evt.MealCount,
	)
	return nil
}
