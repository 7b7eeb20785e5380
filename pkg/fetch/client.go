package fetch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/Ruscigno/marketsum/model"
	"github.com/Ruscigno/marketsum/pkg/errors"
	"github.com/Ruscigno/marketsum/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultTimeout   = 10 * time.Second
	maxPageSize      = 8 << 20
)

// Config holds the session settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Retry     retry.RetryConfig
	Logger    *zap.Logger
}

// DefaultConfig returns the settings used against the live site.
func DefaultConfig() Config {
	return Config{
		BaseURL:   model.DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		Retry:     retry.RetryHTTPRequest(),
		Logger:    zap.NewNop(),
	}
}

// Client is a cookie-keeping, connection-pooled session. One Client serves
// one crawl and is not shared between crawls.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient builds a session with its own transport pool and cookie jar.
func NewClient(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = cfg.Logger
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		http: &http.Client{
			Transport: retry.NewTransport(base, cfg.Retry, cfg.Timeout),
			Jar:       jar,
		},
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// FetchPage downloads one listing page and returns its markup decoded to UTF-8.
// Every failure is a *errors.NetworkError carrying the page index.
func (c *Client) FetchPage(ctx context.Context, page int) (string, error) {
	target := model.PageRequest{BaseURL: c.cfg.BaseURL, Page: page}.URL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &errors.NetworkError{Page: page, Cause: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		ne := &errors.NetworkError{Page: page, Cause: err}
		var se *retry.StatusError
		if stderrors.As(err, &se) {
			ne.StatusCode = se.StatusCode
		}
		return "", ne
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &errors.NetworkError{
			Page:       page,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("unexpected status: %s", resp.Status),
		}
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxPageSize), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &errors.NetworkError{Page: page, Cause: fmt.Errorf("failed to decode body: %w", err)}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", &errors.NetworkError{Page: page, Cause: fmt.Errorf("failed to read body: %w", err)}
	}

	c.logger.Debug("Fetched page",
		zap.Int("page", page),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))
	return string(body), nil
}

// Close releases idle connections held by the session.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
