package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultSource is the reference dataset.
const DefaultSource = "https://raw.githubusercontent.com/vqrca/dashboard_salarios_dados/refs/heads/main/dados-imersao-final.csv"

const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultUserAgent    = "salarydash/1.0"
)

// Logger is the subset of the application logger the loader writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// FetchOptions configures how remote sources are retrieved.
type FetchOptions struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// FetchError reports a failed retrieval of a source.
type FetchError struct {
	Source     string
	StatusCode int
	Cause      error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.Source, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func isParquet(source string) bool {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}
	return strings.HasSuffix(strings.ToLower(source), ".parquet")
}

// Fetch opens source: http(s) URLs are downloaded, anything else is read
// from the local filesystem. The caller closes the returned reader.
func Fetch(ctx context.Context, source string, opts *FetchOptions) (io.ReadCloser, error) {
	if !isRemote(source) {
		f, err := os.Open(source)
		if err != nil {
			return nil, &FetchError{Source: source, Cause: err}
		}
		return f, nil
	}

	if opts == nil {
		opts = &FetchOptions{}
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultFetchTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &FetchError{Source: source, Cause: err}
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: source, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &FetchError{Source: source, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// Load fetches and parses source into a ColumnStore. Sources ending in
// .parquet are read as Parquet, anything else as CSV.
func Load(ctx context.Context, source string, opts *FetchOptions, logger Logger) (*ColumnStore, error) {
	logger.Infof("loading dataset from %s", source)

	body, err := Fetch(ctx, source, opts)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var (
		store *ColumnStore
		stats LoadStats
	)
	if isParquet(source) {
		// Parquet needs random access; buffer the whole file.
		data, rerr := io.ReadAll(body)
		if rerr != nil {
			return nil, &FetchError{Source: source, Cause: rerr}
		}
		store, stats, err = LoadParquet(ctx, bytes.NewReader(data))
	} else {
		store, stats, err = LoadCSV(body)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	if stats.Skipped > 0 {
		logger.Warnf("skipped %d rows without year or salary", stats.Skipped)
	}
	logger.Infof("load complete. rows: %d. time: %v", stats.Rows, stats.Duration)
	return store, nil
}
