// Package eastmoney fetches earnings-forecast rows from the Eastmoney data-center API.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

const (
	// SourceName identifies the client inside the source registry.
	SourceName = "eastmoney"

	DefaultEndpoint = "http://datacenter-web.eastmoney.com/api/data/v1/get"
	DefaultPageSize = 500
	reportName      = "RPT_PUBLIC_OP_NEWPREDICT"
	columns         = "SECURITY_CODE,SECURITY_NAME_ABBR,NOTICE_DATE,REPORT_DATE,PREDICT_TYPE,PREDICT_FINANCE_CODE," +
		"ADD_AMP_LOWER,ADD_AMP_UPPER,PREDICT_CONTENT,CHANGE_REASON_EXPLAIN,PREDICT_AMT_UPPER,PREDICT_AMT_LOWER," +
		"PREYEAR_SAME_PERIOD,INCREASE_JZ,INCREASE_HB"
	// Positive forecasts only, net profit attributable to shareholders.
	filter = `(PREDICT_TYPE in ("预增","略增","续盈","扭亏")) and (PREDICT_FINANCE_CODE="004")`
)

// Options configures the client; zero values pick the public endpoint defaults.
type Options struct {
	Endpoint string
	PageSize int
	MaxPages int
	Timeout  time.Duration
}

// Client implements ReportSource over HTTP, guarded by a circuit breaker.
type Client struct {
	http     *http.Client
	endpoint string
	pageSize int
	maxPages int
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

var _ ports.ReportSource = (*Client)(nil)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Result  *struct {
		Pages int                `json:"pages"`
		Count int                `json:"count"`
		Data  []domain.RawRecord `json:"data"`
	} `json:"result"`
}

// NewClient wires an HTTP client; a nil client gets the configured timeout.
func NewClient(client *http.Client, opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "eastmoney")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        SourceName,
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		http:     client,
		endpoint: opts.Endpoint,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		breaker:  breaker,
		logger:   logger,
	}
}

// Name identifies the source inside the registry.
func (c *Client) Name() string {
	return SourceName
}

// Fetch pulls up to maxPages pages of the newest announcements.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawRecord, error) {
	var all []domain.RawRecord
	for page := 1; page <= c.maxPages; page++ {
		records, pages, err := c.fetchPage(ctx, page)
		if err != nil {
			if len(all) > 0 {
				c.logger.Warn("stopping pagination early", "page", page, "error", err)
				break
			}
			return nil, err
		}
		all = append(all, records...)
		if page >= pages {
			break
		}
	}
	c.logger.Debug("fetched reports", "count", len(all))
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]domain.RawRecord, int, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.request(ctx, page)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("fetch page %d: %w", page, err)
	}
	resp := out.(*response)
	if resp.Result == nil {
		return nil, 0, nil
	}
	return resp.Result.Data, resp.Result.Pages, nil
}

func (c *Client) request(ctx context.Context, page int) (*response, error) {
	pageURL, err := c.pageURL(page)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; EarningsTracker/1.0)")
	req.Header.Set("Referer", "http://data.eastmoney.com/")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request reports: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney returned %s", resp.Status)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return &decoded, nil
}

func (c *Client) pageURL(page int) (string, error) {
	base, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := base.Query()
	q.Set("sortColumns", "NOTICE_DATE,SECURITY_CODE")
	q.Set("sortTypes", "-1,-1")
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("pageNumber", strconv.Itoa(page))
	q.Set("reportName", reportName)
	q.Set("columns", columns)
	q.Set("filter", filter)
	q.Set("source", "WEB")
	q.Set("client", "WEB")
	base.RawQuery = q.Encode()
	return base.String(), nil
}
