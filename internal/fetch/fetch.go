// Package fetch downloads remote inputs over HTTP and FTP and parses the
// delivery formats field data arrives in: CSV, XLSX, JSON, and ZIP.
package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Options configures remote downloads made through Download.
type Options struct {
	Timeout    time.Duration
	RatePerSec float64
	Retries    int
	UserAgent  string
}

// IsRemote reports whether the argument is an http(s) or ftp URL rather
// than a local path.
func IsRemote(arg string) bool {
	lower := strings.ToLower(arg)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "ftp://")
}

// Download fetches a remote URL into a temp file and returns its path.
// The temp file keeps the URL's extension so format detection on the
// local path keeps working. The caller removes the file when done.
func Download(ctx context.Context, rawURL string, opts Options) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "fetch: parse url")
	}

	var fetcher Fetcher
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		fetcher = NewHTTPFetcher(HTTPOptions{
			UserAgent:  opts.UserAgent,
			Timeout:    opts.Timeout,
			MaxRetries: opts.Retries,
			RatePerSec: opts.RatePerSec,
		})
	case "ftp":
		fetcher = NewFTPFetcher(FTPOptions{
			Timeout:    opts.Timeout,
			MaxRetries: opts.Retries,
		})
	default:
		return "", eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}

	tmp, err := os.CreateTemp("", "gms-download-*"+filepath.Ext(u.Path))
	if err != nil {
		return "", eris.Wrap(err, "fetch: create temp file")
	}
	path := tmp.Name()
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "fetch: close temp file")
	}

	if _, err := fetcher.DownloadToFile(ctx, rawURL, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return path, nil
}
