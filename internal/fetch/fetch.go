// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch resolves reference dataset locations to local files,
// downloading remote datasets once into a cache directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/pdiddy/corpus-clean/internal/logging"
	"github.com/pdiddy/corpus-clean/pkg/types"
)

const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 10 * time.Second
	maxRetryAfter     = 5 * time.Minute
)

// Fetcher downloads remote reference datasets into cfg.CacheDir.
type Fetcher struct {
	client    *http.Client
	cfg       types.HTTPConfig
	log       *logging.Logger
	baseDelay time.Duration
}

// New returns a Fetcher. A nil client uses http.DefaultClient.
func New(client *http.Client, cfg types.HTTPConfig, log *logging.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Fetcher{client: client, cfg: cfg, log: logging.OrNop(log), baseDelay: defaultBaseDelay}
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CachePath returns where a remote location is stored for group and split.
func CachePath(cacheDir, group, split, location string) string {
	name := fmt.Sprintf("%s_%s_%016x.jsonl", sanitize(group), sanitize(split), xxhash.Sum64String(location))
	return filepath.Join(cacheDir, name)
}

// Resolve returns a local path for a reference group. Local paths are
// returned unchanged. Remote URLs are downloaded unless a cached copy
// already exists.
func (f *Fetcher) Resolve(ctx context.Context, group string, ref types.ReferenceGroup) (string, error) {
	if !IsRemote(ref.Path) {
		return ref.Path, nil
	}
	dest := CachePath(f.cfg.CacheDir, group, ref.Split, ref.Path)
	if _, err := os.Stat(dest); err == nil {
		f.log.Debug("reference group cached", "group", group, "path", dest)
		return dest, nil
	}
	if err := os.MkdirAll(f.cfg.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory %s: %w", f.cfg.CacheDir, err)
	}
	if err := f.download(ctx, ref.Path, dest); err != nil {
		return "", fmt.Errorf("downloading reference group %s: %w", group, err)
	}
	f.log.Info("reference group downloaded", "group", group, "url", ref.Path, "path", dest)
	return dest, nil
}

// get issues a GET for location. Responses with status 429 or 503 are
// retried up to cfg.MaxRetries times, waiting for Retry-After when the
// server sends it and doubling from the base delay otherwise.
func (f *Fetcher) get(ctx context.Context, location string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if f.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", f.cfg.UserAgent)
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
			return resp, nil
		}

		wait := f.retryDelay(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if attempt >= f.cfg.MaxRetries {
			return nil, fmt.Errorf("HTTP %d from %s after %d retries", resp.StatusCode, location, attempt)
		}

		f.log.Warn("server throttled download, retrying", "url", location, "status", resp.StatusCode,
			"attempt", attempt+1, "max_retries", f.cfg.MaxRetries, "wait", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryDelay prefers a Retry-After header in seconds, capped, over the
// exponential schedule.
func (f *Fetcher) retryDelay(resp *http.Response, attempt int) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, maxRetryAfter)
		}
	}
	return f.baseDelay << attempt
}

// download fetches location to destPath through a temporary file so a
// partial download never looks like a valid cached dataset.
func (f *Fetcher) download(ctx context.Context, location, destPath string) error {
	resp, err := f.get(ctx, location)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, location)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// sanitize keeps group names safe for file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, s)
}
