package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/finstat/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	Retry        resilience.RetryConfig
	RateLimiters map[string]*rate.Limiter // per host
	DefaultRate  *rate.Limiter            // hosts without a dedicated limiter
}

// HTTPFetcher downloads documents over HTTP with per-host rate limiting and
// transient-error retry. Source sites that answer 403 are treated as a
// permanent rejection, not a retryable failure.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
}

func (f *HTTPFetcher) limiterFor(host string) *rate.Limiter {
	if l, ok := f.opts.RateLimiters[host]; ok {
		return l
	}
	return f.opts.DefaultRate
}

// Fetch downloads a URL and returns the response body. The caller must close
// the returned reader.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "http: parse url %q", rawURL)
	}

	cfg := f.opts.Retry
	cfg.OnRetry = resilience.RetryLogger(u.Host, "fetch")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (io.ReadCloser, error) {
		if limiter := f.limiterFor(u.Host); limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "http: rate limit wait")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "http: build request")
		}
		if f.opts.UserAgent != "" {
			req.Header.Set("User-Agent", f.opts.UserAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, resilience.Transient(eris.Wrapf(err, "http: GET %s", rawURL), 0)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, resilience.PermanentRejection(
				eris.Errorf("http: GET %s: source refused access (403)", rawURL), resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, resilience.NotFound(eris.Errorf("http: GET %s: 404", rawURL))
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			resp.Body.Close()
			zap.L().Warn("http: transient status", zap.String("url", rawURL), zap.Int("status", resp.StatusCode))
			return nil, resilience.Transient(
				eris.Errorf("http: GET %s: status %d", rawURL, resp.StatusCode), resp.StatusCode)
		default:
			resp.Body.Close()
			return nil, eris.Errorf("http: GET %s: status %d", rawURL, resp.StatusCode)
		}
	})
}
