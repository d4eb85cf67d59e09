// Package fetch downloads the source document to a local path derived from
// its URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBodySize bounds a downloaded document.
const maxBodySize = 64 << 20

// ErrBadStatus is returned for a non-2xx response.
var ErrBadStatus = errors.New("unexpected HTTP status")

// Config configures a Fetcher.
type Config struct {
	// Root is the directory documents are stored under. Default: "data/raw".
	Root      string
	UserAgent string
	// Timeout bounds one request. Default: 30s.
	Timeout time.Duration
	// Interval is the minimum spacing between requests. Default: 250ms.
	Interval time.Duration
}

// Fetcher downloads documents politely: one at a time, spaced by Interval,
// with a fixed User-Agent.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Root == "" {
		cfg.Root = filepath.Join("data", "raw")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		logger:  logger.Named("fetch"),
	}
}

// Fetch downloads rawURL to LocalPath(rawURL, root) and returns that path.
// The file is replaced atomically, so a failed fetch leaves any previous
// copy intact.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	dest, err := LocalPath(rawURL, f.cfg.Root)
	if err != nil {
		return "", err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %d", ErrBadStatus, rawURL, resp.StatusCode)
	}

	n, err := writeAtomic(dest, io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}

	f.logger.Info("fetched",
		zap.String("url", rawURL),
		zap.String("path", dest),
		zap.Int64("bytes", n),
		zap.Duration("duration", time.Since(start)),
	)
	return dest, nil
}

// LocalPath maps a URL to <root>/<host>/<path>. A path ending in "/" gets
// index.html, and a final segment without an extension gets ".html".
func LocalPath(rawURL, root string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	p = path.Clean("/" + p)
	if path.Ext(p) == "" {
		p += ".html"
	}

	return filepath.Join(root, u.Host, filepath.FromSlash(strings.TrimPrefix(p, "/"))), nil
}

func writeAtomic(dest string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmpName, dest)
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, err
	}
	return n, nil
}
