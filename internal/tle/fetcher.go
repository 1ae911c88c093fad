package tle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxBodyBytes caps a single source response.
const maxBodyBytes = 50 * 1024 * 1024

// Fetcher retrieves raw element text from remote sources.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher with a 30s per-request timeout.
func NewFetcher(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// FailedSource names a source that could not be fetched during a partial refresh.
type FailedSource struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// FetchAll fetches every source concurrently and returns their texts in source order.
//
// With allowPartial false, the first failure cancels the remaining requests and is
// returned; nothing is returned for the sources that did succeed. With allowPartial
// true, failed sources are reported in the second return value and only an all-sources
// failure is an error.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source, allowPartial bool) ([]SourceText, []FailedSource, error) {
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("no sources configured")
	}

	texts := make([]SourceText, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			body, err := f.Fetch(gctx, src.URL)
			if err != nil {
				err = fmt.Errorf("source %q: %w", src.Name, err)
				if allowPartial {
					errs[i] = err
					return nil
				}
				return err
			}
			texts[i] = SourceText{Source: src, Text: string(body)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		ok     []SourceText
		failed []FailedSource
	)
	for i, src := range sources {
		if errs[i] != nil {
			f.logger.Warn("source fetch failed, continuing without it",
				"source", src.Name,
				"error", errs[i],
			)
			failed = append(failed, FailedSource{Name: src.Name, Error: errs[i].Error()})
			continue
		}
		ok = append(ok, texts[i])
	}
	if len(ok) == 0 {
		return nil, failed, fmt.Errorf("all %d sources failed", len(sources))
	}
	return ok, failed, nil
}

// Fetch performs an HTTP GET of one source URL and returns the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching element data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", url, maxBodyBytes)
	}

	f.logger.Debug("source fetched",
		"url", url,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}
