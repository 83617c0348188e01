package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/api/dto"
	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/services"
	"github.com/go-chi/chi/v5"
)

// TimelineService is the application surface the handlers drive.
type TimelineService interface {
	Authorize(ctx context.Context, caller domain.Caller, subscriptionID string) error
	Timeline(ctx context.Context, subscriptionID string) (*domain.Timeline, error)
	UpdateSlotStatus(ctx context.Context, caller domain.Caller, req services.UpdateSlotRequest) (*services.SlotUpdateResult, error)
	UpdateDayStatus(ctx context.Context, caller domain.Caller, subscriptionID, date, target string) (domain.BatchResult, error)
	Sync(ctx context.Context, subscriptionID string) (services.SyncResult, error)
}

type TimelineHandler struct {
	Service TimelineService
	Now     func() time.Time
}

func (h *TimelineHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Get returns the aggregated timeline, optionally limited to lookaheadDays from today.
func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	subID := strings.TrimSpace(chi.URLParam(r, "id"))
	if subID == "" {
		writeError(w, r, http.StatusBadRequest, "subscription id is required")
		return
	}

	lookahead := 0
	if raw := r.URL.Query().Get("lookaheadDays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "lookaheadDays must be an integer")
			return
		}
		lookahead = n
	}

	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if err := h.Service.Authorize(r.Context(), caller, subID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	t, err := h.Service.Timeline(r.Context(), subID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	t = services.FilterLookahead(t, h.now(), lookahead)
	writeJSON(w, r, http.StatusOK, dto.NewTimelineResponse(t))
}

// UpdateSlot moves one meal slot to the requested status.
func (h *TimelineHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req dto.UpdateSlotStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.Service.UpdateSlotStatus(r.Context(), caller, services.UpdateSlotRequest{
		SubscriptionID: chi.URLParam(r, "id"),
		Date:           chi.URLParam(r, "date"),
		MealTime:       domain.MealTime(chi.URLParam(r, "mealTime")),
		Target:         req.TargetStatus,
		Notes:          strings.TrimSpace(req.Notes),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.UpdateSlotStatusResponse{
		SubscriptionID:         res.Key.SubscriptionID,
		Date:                   res.Key.Date,
		MealTime:               string(res.Key.MealTime),
		AppliedStatus:          string(res.AppliedStatus),
		DailyWorkloadCompleted: res.DailyWorkloadCompleted,
		DriverAssignment:       res.DriverAssignment,
	})
}

// UpdateDay applies one status to every meal of a day and reports per-slot outcomes.
func (h *TimelineHandler) UpdateDay(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req dto.UpdateDayStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.Service.UpdateDayStatus(
		r.Context(), caller, chi.URLParam(r, "id"), chi.URLParam(r, "date"), req.TargetStatus,
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.UpdateDayStatusResponse{
		SubscriptionID:  res.SubscriptionID,
		Date:            res.Date,
		TargetStatus:    string(res.Target),
		PerSlotOutcomes: dto.NewSlotOutcomes(res.Outcomes),
		Applied:         res.Applied(),
		Summary:         res.Summary(),
	})
}

// Sync pulls upstream signals for one subscription and reconciles them now.
func (h *TimelineHandler) Sync(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}
	if caller.Role == domain.RoleCustomer {
		writeError(w, r, http.StatusForbidden, "customers may not trigger a sync")
		return
	}

	subID := chi.URLParam(r, "id")
	if err := h.Service.Authorize(r.Context(), caller, subID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := h.Service.Sync(r.Context(), subID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.SyncResponse{
		SubscriptionID: res.SubscriptionID,
		Replaced:       res.Replaced,
		Warnings:       res.Warnings,
	})
}
