package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

var (
	errNotFound       = errors.New("page not found")
	errHostNotTrusted = errors.New("host is not in the trusted whitelist")
)

// trustedClient 只允許白名單主機的 HTTP 客戶端，每個主機各自限速
type trustedClient struct {
	client        *resty.Client
	allowed       map[string]bool
	ratePerSecond float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newTrustedClient(hosts []string, timeout time.Duration, retries int, userAgent string, ratePerSecond float64) *trustedClient {
	allowed := make(map[string]bool, len(hosts))
	hostnames := make([]string, 0, len(hosts))
	for _, h := range hosts {
		allowed[strings.ToLower(h)] = true
		if name, _, err := net.SplitHostPort(h); err == nil {
			h = name
		}
		hostnames = append(hostnames, strings.ToLower(h))
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(3*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, errHostNotTrusted)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5), resty.DomainCheckRedirectPolicy(hostnames...)).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &trustedClient{
		client:        client,
		allowed:       allowed,
		ratePerSecond: ratePerSecond,
		limiters:      make(map[string]*rate.Limiter),
	}
}

func (c *trustedClient) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[host]
	if !ok {
		limit := rate.Inf
		if c.ratePerSecond > 0 {
			limit = rate.Limit(c.ratePerSecond)
		}
		l = rate.NewLimiter(limit, 1)
		c.limiters[host] = l
	}
	return l
}

func (c *trustedClient) isAllowed(u *url.URL) bool {
	return c.allowed[strings.ToLower(u.Host)] || c.allowed[strings.ToLower(u.Hostname())]
}

// get 取得白名單內的網址，請求與最終網址的主機都必須可信
func (c *trustedClient) get(ctx context.Context, rawURL string, params map[string]string) (*resty.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if !c.isAllowed(u) {
		return nil, fmt.Errorf("%w: %s", errHostNotTrusted, u.Host)
	}

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u.Host, err)
	}

	if raw := resp.RawResponse; raw != nil && raw.Request != nil && !c.isAllowed(raw.Request.URL) {
		return nil, fmt.Errorf("%w: redirected to %s", errHostNotTrusted, raw.Request.URL.Host)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", u.Host, resp.StatusCode())
	}
	return resp, nil
}
