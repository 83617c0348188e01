package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/domain"
	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
)

// StatusError is a non-2xx response from a collaborator.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// Client is a small JSON client for internal collaborators with
// retry on transient failures. It is safe for concurrent use.
type Client struct {
	session *http.Client
	baseURL string
	apiKey  string

	// MaxAttempts and Backoff tune doWithRetry; zero values use defaults.
	MaxAttempts int
	Backoff     time.Duration
}

func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("http client: base url is empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		session:     &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		apiKey:      apiKey,
		MaxAttempts: 4,
		Backoff:     200 * time.Millisecond,
	}, nil
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	path string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if id := obs.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// Do sends one request built by makeBody for each attempt and returns the
// response body. Transient failures (network errors, 429 and 5xx responses)
// are retried with exponential backoff while respecting ctx. A request that
// never reached the server fails with *domain.NetworkError.
func (c *Client) Do(
	ctx context.Context,
	op string,
	method string,
	path string,
	makeBody func() io.Reader,
) ([]byte, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var body io.Reader
		if makeBody != nil {
			body = makeBody()
		}
		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return nil, fmt.Errorf("%s: make request: %w", op, err)
		}

		resp, err := c.do(req)
		if err == nil {
			defer resp.Body.Close()
			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, &domain.NetworkError{Op: op, Err: err}
			}
			return b, nil
		}
		lastErr = err

		retry := false
		var he *StatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
			lastErr = &domain.NetworkError{Op: op, Err: err}
		}

		if !retry || attempt == maxAttempts {
			if he != nil {
				return nil, fmt.Errorf("%s: %w", op, lastErr)
			}
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}
