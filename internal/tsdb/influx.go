package tsdb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"

	"github.com/lox/iotdash/internal/htmlutil"
	"github.com/lox/iotdash/internal/httputil"
	"github.com/lox/iotdash/internal/metrics"
	"github.com/lox/iotdash/internal/models"
)

const DefaultTimeout = 10 * time.Second

// Config holds the store connection parameters. They are always injected,
// never compiled in.
type Config struct {
	URL      string
	Token    string
	Org      string
	Bucket   string
	Timeout  time.Duration
	Location *time.Location
}

func (c Config) Validate() error {
	if c.URL == "" || c.Token == "" || c.Org == "" || c.Bucket == "" {
		return fmt.Errorf("influxdb configuration is incomplete: url, token, org and bucket are required")
	}
	return nil
}

// Client queries InfluxDB. Construct it once per process and share it; it
// holds no per-query state.
type Client struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	bucket   string
	timeout  time.Duration
	loc      *time.Location
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	opts := influxdb2.DefaultOptions().SetHTTPClient(httputil.NewClientWithTimeout(timeout))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &Client{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
		timeout:  timeout,
		loc:      loc,
	}
}

// Close releases the underlying HTTP resources.
func (c *Client) Close() {
	c.client.Close()
}

// Query returns the long-format readings of the given fields of a
// measurement within rng. Zero matches is an empty slice, not an error.
func (c *Client) Query(ctx context.Context, measurement string, fields []string, rng models.DateRange) ([]models.Reading, error) {
	if len(fields) == 0 {
		return nil, &DataSourceError{Op: "query", Measurement: measurement, Err: errors.New("no fields requested")}
	}
	// InfluxDB rejects start > stop; an inverted range simply matches nothing.
	if rng.Inverted() {
		return []models.Reading{}, nil
	}

	flux := NewFilter(c.bucket, measurement, fields, rng, c.loc).Flux()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var readings []models.Reading
	operation := func() error {
		result, err := c.queryAPI.Query(ctx, flux)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		defer result.Close()

		out := make([]models.Reading, 0)
		for result.Next() {
			rec := result.Record()
			v, ok := toFloat(rec.Value())
			if !ok {
				metrics.NonNumericValues.WithLabelValues(measurement).Inc()
				continue
			}
			out = append(out, models.Reading{Time: rec.Time(), Field: rec.Field(), Value: v})
		}
		if err := result.Err(); err != nil {
			return backoff.Permanent(fmt.Errorf("read result: %w", err))
		}
		readings = out
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = c.timeout
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	metrics.QueryLatency.WithLabelValues("influxdb", measurement).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("influxdb", measurement, "error").Inc()
		log.Printf("influx query %s %s: %v", measurement, rng, err)
		return nil, &DataSourceError{Op: "query", Measurement: measurement, Err: plainError(err)}
	}

	metrics.QueriesTotal.WithLabelValues("influxdb", measurement, "ok").Inc()
	metrics.ReadingsReturned.WithLabelValues("influxdb", measurement).Add(float64(len(readings)))
	return readings, nil
}

// Ping checks that the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok, err := c.client.Ping(ctx)
	if err != nil {
		return &DataSourceError{Op: "ping", Err: err}
	}
	if !ok {
		return &DataSourceError{Op: "ping", Err: errors.New("server not ready")}
	}
	return nil
}

// WaitReady pings the store with exponential backoff until it answers or
// maxWait elapses.
func (c *Client) WaitReady(ctx context.Context, maxWait time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait
	return backoff.RetryNotify(func() error {
		return c.Ping(ctx)
	}, backoff.WithContext(bo, ctx), func(err error, next time.Duration) {
		log.Printf("influxdb not ready, retrying in %s: %v", next.Round(time.Millisecond), err)
	})
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var herr *ihttp.Error
	if errors.As(err, &herr) {
		switch {
		case herr.StatusCode == 0:
			return true
		case herr.StatusCode == http.StatusTooManyRequests:
			return true
		case herr.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	return true
}

// plainError flattens an HTML error page, as returned by a proxy in front
// of the server, into its text.
func plainError(err error) error {
	var herr *ihttp.Error
	if errors.As(err, &herr) && htmlutil.LooksLikeHTML(herr.Message) {
		herr.Message = htmlutil.ToText(herr.Message)
	}
	return err
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
