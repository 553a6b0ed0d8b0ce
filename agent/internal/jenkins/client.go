package jenkins

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gregjones/httpcache"

	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/health"
)

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient returns a client with the transport stack:
//  1. httpcache (conditional requests for unchanged job data)
//  2. authRoundTripper (basic or bearer credentials)
//  3. http.Transport with the source's TLS settings
func buildHTTPClient(cfg config.Jenkins) *http.Client {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: cfg.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	cache := httpcache.NewTransport(httpcache.NewMemoryCache())
	cache.Transport = &authRoundTripper{
		base: &http.Transport{TLSClientConfig: tlsCfg, Proxy: http.ProxyFromEnvironment},
		auth: cfg.Auth,
	}
	return &http.Client{
		Transport: cache,
		Timeout:   cfg.Timeout,
	}
}

// apiURL returns the JSON API address below a Jenkins object URL,
// restricted to tree.
func apiURL(objectURL, tree string) string {
	q := url.Values{}
	q.Set("tree", tree)
	return strings.TrimSuffix(objectURL, "/") + "/api/json?" + q.Encode()
}

// getJSON fetches u and decodes the body into out. Transport errors and 5xx
// responses are retried with exponential backoff, at most retries attempts
// in total. 404 maps to health.ErrNotFound.
func getJSON(ctx context.Context, client *http.Client, retries int, u string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("http get: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: %s", health.ErrNotFound, u))
		case resp.StatusCode >= 500:
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", u, err))
		}
		return nil
	}

	if retries < 1 {
		retries = 1
	}
	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		slog.Warn("jenkins: request failed, retrying",
			"url", u, "attempt", attempt, "of", retries, "wait", wait, "err", err)
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(retries-1)), ctx)
	return backoff.RetryNotify(op, bo, notify)
}

func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	return bo
}
