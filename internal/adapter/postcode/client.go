// Package postcode resolves UK postcodes to their middle layer super output area
// by scanning the label/value tables of a postcode lookup page.
package postcode

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/observability"
	"github.com/gocolly/colly/v2"
)

const userAgent = "crime-map/1.0"

// Client implements domain.AreaLookup against an HTML postcode lookup page.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewClient creates a lookup client. Each lookup is bounded by timeout and is
// never retried.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		timeout:   timeout,
		transport: http.DefaultTransport,
		metrics:   metrics,
		logger:    logger,
	}
}

// LookupURL builds the page address for a postcode. Spaces are encoded as %20.
func (c *Client) LookupURL(postcode string) string {
	return c.baseURL + "?postcode=" + strings.ReplaceAll(url.QueryEscape(postcode), "+", "%20")
}

// LookupArea fetches the lookup page and returns the value of the first table
// row labelled with domain.AreaLabel. A page without such a row yields "" and a
// nil error; transport failures and non-success statuses are returned as errors.
func (c *Client) LookupArea(ctx context.Context, postcode string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	col := colly.NewCollector(colly.UserAgent(userAgent))
	col.SetRequestTimeout(c.timeout)
	col.WithTransport(&contextTransport{ctx: ctx, base: c.transport})

	var (
		area  string
		found bool
	)
	col.OnHTML("table", func(e *colly.HTMLElement) {
		if found {
			return
		}
		e.ForEach("tr", func(_ int, row *colly.HTMLElement) {
			if found {
				return
			}
			cells := row.ChildTexts("th, td")
			if len(cells) < 2 {
				return
			}
			if strings.TrimSpace(cells[0]) == domain.AreaLabel {
				area = strings.TrimSpace(cells[1])
				found = true
			}
		})
	})

	var status int
	col.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := col.Visit(c.LookupURL(postcode))
	c.metrics.PostcodeAPIDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.PostcodeLookups.WithLabelValues("error").Inc()
		c.logger.Warn("postcode lookup request failed",
			"postcode", postcode,
			"status", status,
			"error", err,
		)
		if status != 0 {
			return "", fmt.Errorf("postcode lookup: status %d: %w", status, err)
		}
		return "", fmt.Errorf("postcode lookup: %w", err)
	}

	if !found {
		c.metrics.PostcodeLookups.WithLabelValues("not_found").Inc()
		return "", nil
	}
	c.metrics.PostcodeLookups.WithLabelValues("resolved").Inc()
	c.logger.Debug("postcode resolved", "postcode", postcode, "area", area)
	return area, nil
}

// contextTransport binds outgoing requests to the lookup's context so that
// caller cancellation aborts the fetch.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
