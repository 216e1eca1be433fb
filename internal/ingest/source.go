package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/stco/stationrecon/internal/pipeline"
	"github.com/stco/stationrecon/internal/support/exception"
)

// Source yields the raw bytes of one upstream dataset.
type Source interface {
	// Name identifies the source in logs and warnings.
	Name() string
	// Fetch opens the source for reading. The caller owns the ReadCloser.
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// FileSource reads a dataset from the local filesystem.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, s.Path, err)
	}
	return f, nil
}

// HTTPSource fetches a dataset over HTTP with a retry policy. Server-side and
// transport failures are retried; client errors are not.
type HTTPSource struct {
	URL    string
	Client *http.Client
	Policy pipeline.RetryPolicy
}

func NewHTTPSource(url string, client *http.Client, policy pipeline.RetryPolicy) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if policy == nil {
		policy = pipeline.NewFixedRetryPolicy(3, 2*time.Second)
	}
	return &HTTPSource{URL: url, Client: client, Policy: policy}
}

func (s *HTTPSource) Name() string { return s.URL }

func (s *HTTPSource) Fetch(ctx context.Context) (io.ReadCloser, error) {
	var body []byte
	err := pipeline.Execute(ctx, s.Policy, "fetch "+s.URL, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return exception.New("ingest", "build request", err, false, false)
		}
		resp, err := s.Client.Do(req)
		if err != nil {
			return exception.New("ingest", "request failed", err, false, true)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return exception.New("ingest", fmt.Sprintf("server error %d from %s", resp.StatusCode, s.URL), nil, true, true)
		}
		if resp.StatusCode != http.StatusOK {
			return exception.New("ingest", fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, s.URL), nil, false, false)
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return exception.New("ingest", "read body", err, false, true)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, s.URL, err)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}
