package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/cashbook/internal/common"
	json "github.com/bytedance/sonic"
)

const userAgent = "cashbook-rates/1.0"

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// doJSON sends a request and decodes a JSON response into out. Throttling
// and server errors are retryable; other failures are not.
func doJSON(ctx context.Context, client *http.Client, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return common.Permanent(fmt.Errorf("failed to marshal request: %w", err))
		}
		reader = strings.NewReader(string(payload))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", common.ErrRateLimit, url)
	case resp.StatusCode >= 500:
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: status %d from %s", common.ErrUpstream, resp.StatusCode, url),
			Retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return common.Permanent(fmt.Errorf("%w: status %d from %s: %s",
			common.ErrUpstream, resp.StatusCode, url, truncate(string(data), 200)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return common.Permanent(fmt.Errorf("failed to parse response from %s: %w", url, err))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
