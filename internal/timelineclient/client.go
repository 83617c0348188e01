// Package timelineclient is the Go client used by the customer, chef and
// driver apps to read meal timelines and request status changes.
package timelineclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/adapters/httpx"
	"github.com/Endgame-Tech/choma-sub014/internal/api/dto"
	"github.com/Endgame-Tech/choma-sub014/internal/domain"
)

// APIError is a non-2xx answer from the timeline service.
type APIError struct {
	StatusCode int
	Message    string
	Outcomes   []dto.SlotOutcomeResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("timeline service: %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	reads  *httpx.Client
	writes *httpx.Client
}

// New builds a client authenticated with a bearer token. Reads retry on
// transient failures; status writes are sent once.
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	reads, err := httpx.NewClient(baseURL, token, timeout)
	if err != nil {
		return nil, fmt.Errorf("timeline client: %w", err)
	}
	writes, err := httpx.NewClient(baseURL, token, timeout)
	if err != nil {
		return nil, fmt.Errorf("timeline client: %w", err)
	}
	writes.MaxAttempts = 1

	return &Client{reads: reads, writes: writes}, nil
}

// Timeline fetches and validates a subscription's timeline.
func (c *Client) Timeline(ctx context.Context, subscriptionID string, lookaheadDays int) (*domain.Timeline, error) {
	path := fmt.Sprintf("/subscriptions/%s/timeline", url.PathEscape(subscriptionID))
	if lookaheadDays > 0 {
		path += "?lookaheadDays=" + strconv.Itoa(lookaheadDays)
	}

	body, err := c.reads.Do(ctx, "fetch timeline", http.MethodGet, path, nil)
	if err != nil {
		return nil, apiError(err)
	}
	return ParseTimeline(subscriptionID, body)
}

// UpdateSlotStatus asks the service to move one slot to target.
func (c *Client) UpdateSlotStatus(
	ctx context.Context,
	key domain.SlotKey,
	target domain.Status,
	notes string,
) (*dto.UpdateSlotStatusResponse, error) {
	path := fmt.Sprintf("/subscriptions/%s/slots/%s/%s/status",
		url.PathEscape(key.SubscriptionID), url.PathEscape(key.Date), url.PathEscape(string(key.MealTime)))

	var res dto.UpdateSlotStatusResponse
	req := dto.UpdateSlotStatusRequest{TargetStatus: string(target), Notes: notes}
	if err := c.write(ctx, "update slot status", path, req, &res); err != nil {
		return nil, err
	}
	if _, err := domain.ParseStatus(res.AppliedStatus); err != nil {
		return nil, &domain.MalformedResponseError{Source: "slot update", Reason: "appliedStatus", Err: err}
	}
	return &res, nil
}

// UpdateDayStatus asks the service to move every meal of a day to target.
func (c *Client) UpdateDayStatus(
	ctx context.Context,
	subscriptionID string,
	date string,
	target domain.Status,
) (*dto.UpdateDayStatusResponse, error) {
	path := fmt.Sprintf("/subscriptions/%s/days/%s/status", url.PathEscape(subscriptionID), url.PathEscape(date))

	var res dto.UpdateDayStatusResponse
	req := dto.UpdateDayStatusRequest{TargetStatus: string(target)}
	if err := c.write(ctx, "update day status", path, req, &res); err != nil {
		return nil, err
	}
	for _, o := range res.PerSlotOutcomes {
		if _, err := domain.ParseStatus(o.To); err != nil {
			return nil, &domain.MalformedResponseError{Source: "day update", Reason: "outcome status", Err: err}
		}
	}
	return &res, nil
}

func (c *Client) write(ctx context.Context, op, path string, req, res any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}

	body, err := c.writes.Do(ctx, op, http.MethodPut, path, func() io.Reader {
		return bytes.NewReader(payload)
	})
	if err != nil {
		return apiError(err)
	}

	if err := json.Unmarshal(body, res); err != nil {
		return &domain.MalformedResponseError{Source: op, Reason: "invalid json", Err: err}
	}
	return nil
}

// apiError decodes the service's error body when the failure was an HTTP answer.
func apiError(err error) error {
	var se *httpx.StatusError
	if !errors.As(err, &se) {
		return err
	}

	var body dto.ErrorResponse
	if jerr := json.Unmarshal([]byte(se.Body), &body); jerr != nil || body.Error == "" {
		return &APIError{StatusCode: se.Code, Message: se.Body}
	}
	return &APIError{StatusCode: se.Code, Message: body.Error, Outcomes: body.PerSlotOutcomes}
}
