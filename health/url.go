package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// URLCheckConfig configures the URL health check.
type URLCheckConfig struct {
	// Interval is the sleep between periodic runs.
	// Default: 30 seconds
	Interval time.Duration

	// Timeout bounds both connection setup and the whole request, per URL.
	// Default: 10 seconds
	Timeout time.Duration

	// URLs are requested in order. Empty disables the check.
	URLs []string
}

// URLCheck verifies that every configured URL answers 200 within the timeout.
type URLCheck struct {
	config URLCheckConfig
	client *http.Client
}

// NewURLCheck creates a new URL health check.
func NewURLCheck(config URLCheckConfig) *URLCheck {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	urls := make([]string, len(config.URLs))
	copy(urls, config.URLs)
	config.URLs = urls

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   config.Timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &URLCheck{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// Name returns the name of this check.
func (c *URLCheck) Name() string {
	return "UrlCheck"
}

// Interval returns the sleep between periodic runs.
func (c *URLCheck) Interval() time.Duration {
	return c.config.Interval
}

// Timeout returns the per-URL timeout.
func (c *URLCheck) Timeout() time.Duration {
	return c.config.Timeout
}

// IsQuickCheck reports false: remote probes may take up to the timeout each.
func (c *URLCheck) IsQuickCheck() bool {
	return false
}

// IsEnabled reports whether any URL is configured.
func (c *URLCheck) IsEnabled() bool {
	return len(c.config.URLs) > 0
}

// Run requests each URL in order and fails on the first error, timeout or non-200 answer.
func (c *URLCheck) Run(ctx context.Context) error {
	for _, url := range c.config.URLs {
		if err := c.probe(ctx, url); err != nil {
			return err
		}
	}
	return nil
}

func (c *URLCheck) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &ProbeError{
			Target: url,
			Reason: fmt.Sprintf("failed to access %s: %v", url, err),
			Err:    err,
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &ProbeError{
			Target: url,
			Reason: fmt.Sprintf("failed to access %s: %v", url, err),
			Err:    err,
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return &ProbeError{
			Target: url,
			Reason: fmt.Sprintf("URL %s returned status %s", url, resp.Status),
			Err:    ErrUnexpectedStatus,
		}
	}
	return nil
}
