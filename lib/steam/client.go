package steam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"steamharvest/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("lib/steam")

const (
	DefaultStoreBaseURL = "https://store.steampowered.com"
	DefaultAPIBaseURL   = "https://api.steampowered.com"
	DefaultSpyBaseURL   = "https://steamspy.com"

	defaultRetryWait     = 4 * time.Second
	defaultRetryMaxWait  = 256 * time.Second
	defaultRateLimitWait = 5 * time.Minute
)

// ErrRetriesExhausted means the remote kept failing until the retry budget
// ran out. This signals a systemic block (IP ban, outage), not an item-level
// problem, so callers treat it as fatal for the whole run.
var ErrRetriesExhausted = errors.New("retry budget exhausted")

type ClientOptions struct {
	// Retries is the number of retries after the first attempt.
	// 0 retries until the service recovers.
	Retries int
	// Currency and Language are the locale parameters sent with every
	// detail request ("us" / "en" unless configured otherwise).
	Currency string
	Language string

	// Backoff tuning. Zero values pick the defaults above.
	RetryWait     time.Duration
	RetryMaxWait  time.Duration
	RateLimitWait time.Duration

	// Endpoint overrides, used by tests to point at local servers.
	StoreBaseURL string
	APIBaseURL   string
	SpyBaseURL   string
}

func (o *ClientOptions) fillDefaults() {
	if o.Currency == "" {
		o.Currency = "us"
	}
	if o.Language == "" {
		o.Language = "en"
	}
	if o.RetryWait <= 0 {
		o.RetryWait = defaultRetryWait
	}
	if o.RetryMaxWait <= 0 {
		o.RetryMaxWait = defaultRetryMaxWait
	}
	if o.RateLimitWait <= 0 {
		o.RateLimitWait = defaultRateLimitWait
	}
	if o.StoreBaseURL == "" {
		o.StoreBaseURL = DefaultStoreBaseURL
	}
	if o.APIBaseURL == "" {
		o.APIBaseURL = DefaultAPIBaseURL
	}
	if o.SpyBaseURL == "" {
		o.SpyBaseURL = DefaultSpyBaseURL
	}
}

// Client talks to the storefront detail endpoint, the catalog listing
// endpoint and the SteamSpy enrichment endpoint through a single resty
// client with shared retry policy.
type Client struct {
	http *resty.Client
	opts ClientOptions
}

func NewClient(opts ClientOptions) *Client {
	opts.fillDefaults()

	retries := opts.Retries
	if retries == 0 {
		retries = math.MaxInt32
	}

	client := resty.New()
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	client.SetRetryCount(retries)
	// resty clamps whatever SetRetryAfter returns into [wait, maxWait], so
	// the bounds have to admit the rate-limit pause as well
	client.SetRetryWaitTime(opts.RetryWait)
	maxWait := opts.RetryMaxWait
	if opts.RateLimitWait > maxWait {
		maxWait = opts.RateLimitWait
	}
	client.SetRetryMaxWaitTime(maxWait)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return res.StatusCode() != http.StatusOK
	})
	client.SetRetryAfter(func(_ *resty.Client, res *resty.Response) (time.Duration, error) {
		// a "too many requests" answer gets its own, much longer pause
		// before the normal backoff sequence resumes
		if res != nil && res.StatusCode() == http.StatusTooManyRequests {
			return opts.RateLimitWait, nil
		}
		attempt := 1
		if res != nil && res.Request != nil {
			attempt = res.Request.Attempt
		}
		wait := opts.RetryWait
		for i := 1; i < attempt; i++ {
			wait *= 2
			if wait >= opts.RetryMaxWait {
				wait = opts.RetryMaxWait
				break
			}
		}
		return wait, nil
	})

	telemetry.InstrumentResty(client, "steam/http")

	return &Client{http: client, opts: opts}
}

// get performs one logical GET, letting resty burn through the retry budget
// underneath. A response that never turned into HTTP 200 surfaces as
// ErrRetriesExhausted.
func (c *Client) get(ctx context.Context, url string, query map[string]string) (*resty.Response, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status %s", ErrRetriesExhausted, res.Status())
	}
	return res, nil
}
