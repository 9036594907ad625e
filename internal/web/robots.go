package web

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const robotsTimeout = 5 * time.Second

// robotsRules holds the Disallow prefixes for the wildcard user agent.
type robotsRules struct {
	disallow []string
}

func (r robotsRules) allowed(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, prefix := range r.disallow {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// parseRobots extracts the `User-agent: *` group's Disallow rules.
func parseRobots(body string) robotsRules {
	var rules robotsRules
	inAgentList := false
	groupApplies := false

	for _, line := range strings.Split(body, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		field = strings.ToLower(strings.TrimSpace(field))
		value = strings.TrimSpace(value)

		switch field {
		case "user-agent":
			// Consecutive agent lines share one group; an agent line
			// after rules opens a new group.
			if !inAgentList {
				groupApplies = false
				inAgentList = true
			}
			if value == "*" {
				groupApplies = true
			}
		case "disallow":
			inAgentList = false
			if groupApplies {
				rules.disallow = append(rules.disallow, value)
			}
		default:
			inAgentList = false
		}
	}
	return rules
}

// robotsCache resolves and caches per-host robots decisions for one run.
type robotsCache struct {
	httpClient *http.Client
	mu         sync.Mutex
	hosts      map[string]robotsRules
}

func newRobotsCache() *robotsCache {
	return &robotsCache{
		httpClient: &http.Client{Timeout: robotsTimeout},
		hosts:      make(map[string]robotsRules),
	}
}

// Allowed reports whether pageURL may be fetched. Unreachable or missing
// robots.txt permits everything for that host.
func (c *robotsCache) Allowed(ctx context.Context, pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return false
	}

	c.mu.Lock()
	rules, ok := c.hosts[parsed.Host]
	c.mu.Unlock()

	if !ok {
		rules = c.fetch(ctx, parsed.Scheme, parsed.Host)
		c.mu.Lock()
		c.hosts[parsed.Host] = rules
		c.mu.Unlock()
	}
	return rules.allowed(parsed.Path)
}

func (c *robotsCache) fetch(ctx context.Context, scheme, host string) robotsRules {
	robotsURL := scheme + "://" + host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return robotsRules{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return robotsRules{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return robotsRules{}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return robotsRules{}
	}
	return parseRobots(string(body))
}
