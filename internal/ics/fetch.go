package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "schedwidget/internal/log"
)

const maxBody = 8 << 20

// Load reads an ICS payload from an http(s) URL or a local file path.
func Load(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, errors.New("ICS source is empty")
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "webcal://") {
		return Fetch(ctx, &http.Client{Timeout: 15 * time.Second}, src)
	}
	return os.ReadFile(src)
}

// Fetch downloads an ICS feed. webcal:// is treated as https://.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if strings.HasPrefix(url, "webcal://") {
		url = "https://" + strings.TrimPrefix(url, "webcal://")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	appLog.Info("ics fetch start", "url", redactURL(url))

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics fetch: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	appLog.Info("ics fetch success", "url", redactURL(url), "bytes", len(body))
	return body, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Private calendar links usually carry their secret in the path or query.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
