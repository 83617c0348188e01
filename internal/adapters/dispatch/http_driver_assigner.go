package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/adapters/httpx"
	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

// HTTPDriverAssigner asks the driver-assignment service to pick a driver
// for an order that is ready for pickup.
type HTTPDriverAssigner struct {
	client *httpx.Client
}

func NewHTTPDriverAssigner(client *httpx.Client) (*HTTPDriverAssigner, error) {
	if client == nil {
		return nil, errors.New("driver assigner: client is nil")
	}
	return &HTTPDriverAssigner{client: client}, nil
}

type assignmentDTO struct {
	OrderID    string `json:"orderId"`
	DriverID   string `json:"driverId"`
	DriverName string `json:"driverName"`
	ETA        string `json:"eta"`
}

func (d *HTTPDriverAssigner) RequestAssignment(ctx context.Context, orderID string) (_ *ports.DriverAssignment, err error) {
	defer obs.Time(ctx, "dispatch.RequestAssignment")(&err)

	if strings.TrimSpace(orderID) == "" {
		return nil, errors.New("request assignment: order id must be non-empty")
	}

	path := fmt.Sprintf("/orders/%s/assign-driver", url.PathEscape(orderID))
	body, err := d.client.Do(ctx, "request driver assignment", http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}

	return parseAssignment(orderID, body)
}

func parseAssignment(orderID string, body []byte) (*ports.DriverAssignment, error) {
	const source = "driver-assignment"

	var dto assignmentDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, &domain.MalformedResponseError{Source: source, Reason: "invalid json", Err: err}
	}
	if strings.TrimSpace(dto.DriverID) == "" {
		return nil, &domain.MalformedResponseError{Source: source, Reason: "missing driverId"}
	}

	out := &ports.DriverAssignment{
		OrderID:    orderID,
		DriverID:   dto.DriverID,
		DriverName: dto.DriverName,
	}
	if dto.ETA != "" {
		eta, err := time.Parse(time.RFC3339, dto.ETA)
		if err != nil {
			return nil, &domain.MalformedResponseError{Source: source, Reason: "invalid eta", Err: err}
		}
		out.ETA = eta
	}

	return out, nil
}
