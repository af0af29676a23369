// Package nickname resolves QQ numbers to display names through an external
// lookup API, falling back to a synthetic name on any failure.
package nickname

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"github.com/edgard/aishitbot/internal/resilience"
)

// QueryParam is the query parameter carrying the QQ number.
const QueryParam = "qq"

const maxBodySize = 1 << 20

// errUnavailable marks failures of the service itself, as opposed to a
// well-formed answer without a usable name. Only these trip the breaker.
var errUnavailable = errors.New("nickname service unavailable")

// Resolver looks up nicknames. It holds no per-id state: every call issues a
// fresh request, duplicates included.
type Resolver struct {
	client  *http.Client
	baseURL *url.URL
	breaker *resilience.CircuitBreaker
	log     *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithBreaker skips lookups while the service keeps failing.
func WithBreaker(b *resilience.CircuitBreaker) Option {
	return func(r *Resolver) { r.breaker = b }
}

// lookupResponse is the expected body: {"code":200,"data":{"name":"..."}}.
type lookupResponse struct {
	Code any `json:"code"`
	Data *struct {
		Name string `json:"name"`
	} `json:"data"`
}

// NewResolver creates a Resolver for the API at baseURL. timeout bounds each lookup.
func NewResolver(baseURL string, timeout time.Duration, log *slog.Logger, opts ...Option) (*Resolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid nickname API URL %q: %w", baseURL, err)
	}
	r := &Resolver{
		client:  &http.Client{Timeout: timeout},
		baseURL: u,
		log:     log.With("component", "nickname_resolver"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Fallback is the synthetic nickname used when a lookup fails.
func Fallback(id string) string {
	return "用户" + id
}

// Resolve returns the nickname for id, or Fallback(id). It never fails.
func (r *Resolver) Resolve(ctx context.Context, id string) string {
	name, err := r.guardedLookup(ctx, id)
	if err != nil {
		r.log.DebugContext(ctx, "Nickname lookup failed, using fallback", "qq", id, "error", err)
		return Fallback(id)
	}
	r.log.DebugContext(ctx, "Nickname resolved", "qq", id, "nickname", name)
	return name
}

func (r *Resolver) guardedLookup(ctx context.Context, id string) (string, error) {
	// A caller that has already given up says nothing about the service.
	if r.breaker == nil || ctx.Err() != nil {
		return r.lookup(ctx, id)
	}

	var (
		name      string
		lookupErr error
	)
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		name, lookupErr = r.lookup(ctx, id)
		if errors.Is(lookupErr, errUnavailable) {
			return lookupErr
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, lookupErr
}

func (r *Resolver) lookup(ctx context.Context, id string) (string, error) {
	u := *r.baseURL
	q := u.Query()
	q.Set(QueryParam, id)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("lookup abandoned: %w", err)
		}
		return "", fmt.Errorf("%w: %w", errUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", errUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}

	var parsed lookupResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed body: %w", err)
	}

	if !isOKCode(parsed.Code) {
		return "", fmt.Errorf("unexpected code %v", parsed.Code)
	}
	if parsed.Data == nil || parsed.Data.Name == "" {
		return "", fmt.Errorf("response has no data.name")
	}
	return parsed.Data.Name, nil
}

// isOKCode accepts only the JSON number 200; "200" as a string is not success.
func isOKCode(code any) bool {
	switch c := code.(type) {
	case float64:
		return c == http.StatusOK
	case int64:
		return c == http.StatusOK
	default:
		return false
	}
}
