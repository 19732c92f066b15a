package resident

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"resident-matcher/internal/common"
	"resident-matcher/internal/diagnostic"
)

const (
	// DefaultPath is the directory listing path.
	DefaultPath = "/api/residents"
	// DefaultTimeout bounds a single directory fetch.
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

// ErrNoHost is returned by Endpoint.URL when no host is configured.
var ErrNoHost = errors.New("directory host is not set")

// Endpoint locates the resident directory.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string
}

// URL resolves the endpoint to an absolute URL.
// Scheme defaults to http and Path to DefaultPath; a zero Port is omitted.
func (e Endpoint) URL() (string, error) {
	host := strings.TrimSpace(e.Host)
	if host == "" {
		return "", ErrNoHost
	}

	if !common.InRange(e.Port, 0, 65535) {
		return "", fmt.Errorf("directory port %d out of range", e.Port)
	}

	scheme := e.Scheme
	if scheme == "" {
		scheme = "http"
	}

	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported directory scheme %q", scheme)
	}

	path := e.Path
	if path == "" {
		path = DefaultPath
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if e.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(e.Port))
	}

	u := url.URL{Scheme: scheme, Host: host, Path: path}

	return u.String(), nil
}

// HTTPDirectory fetches residents from the directory API.
// Every call performs exactly one GET; failures are not retried.
type HTTPDirectory struct {
	endpoint   Endpoint
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPDirectory creates a directory client. A non-positive timeout selects DefaultTimeout.
func NewHTTPDirectory(endpoint Endpoint, timeout time.Duration, logger *zap.Logger) *HTTPDirectory {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPDirectory{
		endpoint:   endpoint,
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

// newHTTPClient creates an HTTP client with an overall timeout and bounded transport waits.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			IdleConnTimeout:       30 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   2,
		},
	}
}

// Residents implements Directory.
func (d *HTTPDirectory) Residents(ctx context.Context) ([]Record, error) {
	endpoint, err := d.endpoint.URL()
	if err != nil {
		return nil, diagnostic.Configuration("resolve directory endpoint",
			"Resident directory is not configured", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, diagnostic.Configuration("resolve directory endpoint",
			"Resident directory is not configured", err)
	}

	req.Header.Set("Accept", "application/json")

	start := time.Now()

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("resident directory request failed",
			zap.String("url", endpoint), zap.Duration("took", time.Since(start)), zap.Error(err))

		return nil, diagnostic.Transport("fetch residents", transportMessage(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Warn("resident directory returned non-success status",
			zap.String("url", endpoint), zap.Int("status", resp.StatusCode))

		return nil, diagnostic.Transport("fetch residents",
			fmt.Sprintf("Resident directory returned HTTP %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, diagnostic.Transport("read residents", transportMessage(err), err)
	}

	records, err := DecodeEnvelope(body)
	if err != nil {
		d.logger.Warn("resident directory returned an invalid payload",
			zap.String("url", endpoint), zap.Error(err))

		return nil, diagnostic.Transport("decode residents",
			"Resident directory returned an invalid response", err)
	}

	d.logger.Debug("resident directory fetched",
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("residents", len(records)),
		zap.Duration("took", time.Since(start)))

	return records, nil
}

// transportMessage picks the user-facing message for a network failure.
func transportMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Resident directory request was cancelled"
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "Resident directory timed out"
	}

	return "Could not connect to the resident directory"
}
