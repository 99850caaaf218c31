package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"FinRank/internal/domain/models"
	"FinRank/internal/service/ratelimit"
	xhttp "FinRank/pkg/http"
	applogger "FinRank/pkg/logger"

	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the public chart API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client reads daily bars and dividend events from the Yahoo chart endpoint.
// Calls are paced by a per-host limiter and guarded by a circuit breaker so a
// throttled upstream fails fast instead of burning the whole batch timeout.
type Client struct {
	http    *xhttp.Client
	baseURL string
	limiter *ratelimit.Limiter
	// breaker is swapped wholesale by ResetBreaker.
	breaker  atomic.Pointer[gobreaker.CircuitBreaker]
	settings ratelimit.BreakerSettings
	log      *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithLimiter sets the request limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBreaker sets the circuit breaker settings.
func WithBreaker(s ratelimit.BreakerSettings) Option {
	return func(c *Client) { c.settings = s }
}

// NewClient creates a chart API client.
func NewClient(httpClient *xhttp.Client, l *applogger.Logger, opts ...Option) *Client {
	if l == nil {
		l = applogger.Nop()
	}
	c := &Client{
		http:    httpClient,
		baseURL: DefaultBaseURL,
		limiter: ratelimit.New(0, 1),
		log:     l,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker.Store(NewBreaker(c.settings))
	return c
}

// ResetBreaker replaces the circuit breaker with a closed one. The fetcher
// calls it before the retry pass so a breaker tripped by the first pass
// does not reject the retry locally.
func (c *Client) ResetBreaker() {
	prev := c.breaker.Swap(NewBreaker(c.settings))
	if prev != nil && prev.State() != gobreaker.StateClosed {
		c.log.Info("yahoo breaker reset", applogger.String("from", prev.State().String()))
	}
}

// FetchCloses downloads adjusted daily closes for each ticker. Tickers that
// fail are left out of the result; the batch fails only when none succeeded.
func (c *Client) FetchCloses(ctx context.Context, tickers []string, period, interval string) (map[string]models.Series, error) {
	out := make(map[string]models.Series, len(tickers))
	var lastErr error
	for _, t := range tickers {
		res, err := c.chart(ctx, t, period, interval)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			lastErr = err
			c.log.Debug("yahoo chart failed", applogger.String("ticker", t), applogger.Error(err))
			continue
		}
		if s := res.series(); len(s) > 0 {
			out[t] = s
		}
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("%w: yahoo: %v", models.ErrSourceUnavailable, lastErr)
	}
	return out, nil
}

// DividendYield returns trailing twelve month cash dividends divided by the
// last close. Tickers without dividends yield 0.
func (c *Client) DividendYield(ctx context.Context, ticker string) (float64, error) {
	res, err := c.chart(ctx, ticker, "1y", "1d")
	if err != nil {
		return 0, err
	}
	last, asOf, ok := res.lastClose()
	if !ok {
		return 0, fmt.Errorf("%w: yahoo %s: no closing price", models.ErrSourceUnavailable, ticker)
	}
	return res.trailingDividends(asOf) / last, nil
}

func (c *Client) chart(ctx context.Context, ticker, period, interval string) (*chartResult, error) {
	if err := c.limiter.Wait(ctx, "yahoo"); err != nil {
		return nil, err
	}

	v, err := c.breaker.Load().Execute(func() (interface{}, error) {
		var resp chartResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodGet,
			URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker)),
			QueryParams: map[string][]string{
				"range":                {period},
				"interval":             {interval},
				"events":               {"div"},
				"includeAdjustedClose": {"true"},
			},
		}, &resp)
		if err != nil {
			var se *xhttp.StatusError
			// A 404 is an unknown symbol, not an upstream failure.
			if errors.As(err, &se) && se.Status == 404 {
				return nil, &notFoundError{ticker: ticker}
			}
			return nil, err
		}
		if resp.Chart.Error != nil {
			return nil, &notFoundError{ticker: ticker, detail: resp.Chart.Error.Description}
		}
		if len(resp.Chart.Result) == 0 {
			return nil, &notFoundError{ticker: ticker, detail: "empty result"}
		}
		return &resp.Chart.Result[0], nil
	})
	if err != nil {
		var nf *notFoundError
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %v", models.ErrSourceUnavailable, nf)
		}
		return nil, fmt.Errorf("%w: yahoo %s: %v", models.ErrSourceUnavailable, ticker, err)
	}
	return v.(*chartResult), nil
}

// NewBreaker builds the client's circuit breaker. Unknown symbols do not
// count as upstream failures.
func NewBreaker(s ratelimit.BreakerSettings) *gobreaker.CircuitBreaker {
	s.IsSuccessful = func(err error) bool {
		var nf *notFoundError
		return err == nil || errors.As(err, &nf)
	}
	return ratelimit.NewBreaker("yahoo", s)
}

type notFoundError struct {
	ticker string
	detail string
}

func (e *notFoundError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("yahoo %s: not found", e.ticker)
	}
	return fmt.Sprintf("yahoo %s: %s", e.ticker, e.detail)
}
