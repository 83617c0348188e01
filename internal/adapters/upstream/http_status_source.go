package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Endgame-Tech/choma-sub014/internal/adapters/httpx"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
)

// HTTPStatusSource implements UpstreamStatusSource against the
// order-processing service's meal-status endpoint.
type HTTPStatusSource struct {
	client *httpx.Client
}

func NewHTTPStatusSource(client *httpx.Client) (*HTTPStatusSource, error) {
	if client == nil {
		return nil, errors.New("upstream status source: client is nil")
	}
	return &HTTPStatusSource{client: client}, nil
}

func (h *HTTPStatusSource) FetchSignals(ctx context.Context, subscriptionID string) (_ []ports.SlotSignals, err error) {
	defer obs.Time(ctx, "upstream.FetchSignals")(&err)

	if strings.TrimSpace(subscriptionID) == "" {
		return nil, errors.New("fetch signals: subscription id must be non-empty")
	}

	path := fmt.Sprintf("/subscriptions/%s/meal-statuses", url.PathEscape(subscriptionID))
	body, err := h.client.Do(ctx, "fetch meal statuses", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	return ParseMealStatuses(subscriptionID, body)
}
