package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"hermes/internal/agent/ports"
	"hermes/internal/errors"
	"hermes/internal/logging"
)

const (
	fetchTimeout    = 10 * time.Second
	maxPageBytes    = 2 * 1024 * 1024
	fetchUserAgent  = "hermes-research/1.0"
	maxRedirectHops = 10
)

var _ ports.PageFetcher = (*Fetcher)(nil)

// Fetcher downloads page bodies while respecting robots.txt. Robots
// decisions are cached per host for the lifetime of the fetcher, which
// matches one run.
type Fetcher struct {
	httpClient *http.Client
	robots     *robotsCache
	logger     logging.Logger
}

// NewFetcher returns a fetcher with a fresh robots cache.
func NewFetcher(logger logging.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirectHops {
					return fmt.Errorf("stopped after %d redirects", maxRedirectHops)
				}
				return nil
			},
		},
		robots: newRobotsCache(),
		logger: logging.OrNop(logger),
	}
}

// ErrDisallowed marks URLs that robots.txt forbids.
var ErrDisallowed = errors.NewPermanentError(nil, "fetch disallowed by robots.txt")

// Fetch downloads the page body at url. Disallowed URLs return
// ErrDisallowed; transport failures are transient.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if !f.robots.Allowed(ctx, url) {
		f.logger.Debug("robots.txt disallows %s", url)
		return "", ErrDisallowed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewPermanentError(err, "invalid page url")
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", errors.NewTransientError(err, "page fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := fmt.Sprintf("page returned %d", resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", &errors.TransientError{StatusCode: resp.StatusCode, Message: failure}
		}
		return "", &errors.PermanentError{StatusCode: resp.StatusCode, Message: failure}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", errors.NewTransientError(err, "reading page body")
	}

	return string(body), nil
}
