package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultTimeout = 5 * time.Second
	defaultRetries = 5

	// errTypeLinkButton is the Hue API error type for "link button not pressed".
	errTypeLinkButton = 101
)

// ErrLinkButton is returned by Register until the bridge link button is pressed.
var ErrLinkButton = errors.New("hue: press the link button on the bridge and retry within 30s")

// APIError is an error object returned in a Hue API response body.
type APIError struct {
	Type        int    `json:"type"`
	Address     string `json:"address"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hue api error %d at %s: %s", e.Type, e.Address, e.Description)
}

// Bridge is a client for the Philips Hue bridge REST API (v1).
type Bridge struct {
	base     string
	username string
	client   *http.Client
	retries  uint64

	mu        sync.Mutex
	reachable map[string]bool // last reported reachability per light id
}

// Option customises a Bridge.
type Option func(*Bridge)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.client = c }
}

// WithRetries sets the maximum number of attempts per request.
func WithRetries(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.retries = uint64(n)
		}
	}
}

// New returns a Bridge for host (IP, host:port or full http URL) using the
// whitelisted username. username may be empty when only Register is needed.
func New(host, username string, opts ...Option) *Bridge {
	base := strings.TrimSuffix(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	b := &Bridge{
		base:      base,
		username:  username,
		client:    &http.Client{Timeout: defaultTimeout},
		retries:   defaultRetries,
		reachable: make(map[string]bool),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Register creates a new whitelisted username for deviceType and returns it.
func (b *Bridge) Register(ctx context.Context, deviceType string) (string, error) {
	var results []struct {
		Success struct {
			Username string `json:"username"`
		} `json:"success"`
	}
	err := b.do(ctx, http.MethodPost, "/api", map[string]string{"devicetype": deviceType}, &results)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Type == errTypeLinkButton {
			return "", ErrLinkButton
		}
		return "", err
	}
	if len(results) == 0 || results[0].Success.Username == "" {
		return "", fmt.Errorf("hue: register: empty response")
	}
	return results[0].Success.Username, nil
}

// lightInfo is the subset of GET /lights we use.
type lightInfo struct {
	Name  string `json:"name"`
	State struct {
		On        bool `json:"on"`
		Bri       int  `json:"bri"`
		Reachable bool `json:"reachable"`
	} `json:"state"`
}

func (b *Bridge) lightInfos(ctx context.Context) (map[string]lightInfo, error) {
	infos := make(map[string]lightInfo)
	if err := b.do(ctx, http.MethodGet, b.userPath("/lights"), nil, &infos); err != nil {
		return nil, fmt.Errorf("hue: list lights: %w", err)
	}
	return infos, nil
}

// Lights returns every light known to the bridge ordered by numeric id.
func (b *Bridge) Lights(ctx context.Context) ([]*Light, error) {
	infos, err := b.lightInfos(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for id := range infos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })

	out := make([]*Light, 0, len(ids))
	for _, id := range ids {
		info := infos[id]
		out = append(out, &Light{
			bridge:     b,
			id:         id,
			name:       info.Name,
			on:         info.State.On,
			brightness: info.State.Bri,
			reachable:  info.State.Reachable,
		})
	}
	return out, nil
}

// ReportReachability logs every light whose reachability changed since the
// previous call. The first call logs every light once.
func (b *Bridge) ReportReachability(ctx context.Context) error {
	infos, err := b.lightInfos(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, info := range infos {
		prev, seen := b.reachable[id]
		if seen && prev == info.State.Reachable {
			continue
		}
		b.reachable[id] = info.State.Reachable
		state := "out of range"
		if info.State.Reachable {
			state = "reachable"
		}
		slog.Info("hue: light is now "+state, "light", info.Name, "id", id)
	}
	return nil
}

// Search starts a bridge scan for new lights.
func (b *Bridge) Search(ctx context.Context) error {
	if err := b.do(ctx, http.MethodPost, b.userPath("/lights"), nil, nil); err != nil {
		return fmt.Errorf("hue: search lights: %w", err)
	}
	return nil
}

// TouchLink asks the bridge to steal nearby lights bound to another bridge.
// The lights must be close to this bridge.
func (b *Bridge) TouchLink(ctx context.Context) error {
	if err := b.do(ctx, http.MethodPut, b.userPath("/config"), map[string]bool{"touchlink": true}, nil); err != nil {
		return fmt.Errorf("hue: touchlink: %w", err)
	}
	return nil
}

func (b *Bridge) userPath(p string) string {
	return "/api/" + b.username + p
}

// do performs a request with bounded retries. Transport failures and 5xx
// responses are retried; Hue API errors in the body are not.
func (b *Bridge) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}

	op := func() error {
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, b.base+path, rdr)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode))
		}
		if err := apiError(data); err != nil {
			return backoff.Permanent(err)
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(newBackOff(), b.retries-1),
		ctx,
	)
	return backoff.Retry(op, bo)
}

func newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	return bo
}

// apiError returns the first error object in a Hue result array, if any.
func apiError(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	var results []struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil
	}
	for _, r := range results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}

// idLess orders light ids numerically where possible.
func idLess(a, b string) bool {
	ai, errA := strconv.Atoi(a)
	bi, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return ai < bi
	}
	return a < b
}
