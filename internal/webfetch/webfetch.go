// Package webfetch retrieves WEBSERVICE bodies over HTTP.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/logging"
)

// Fetcher implements formula.HTTPFetcher. Identical URLs requested at the
// same time share one request, and at most maxConcurrent requests run.
type Fetcher struct {
	client   *http.Client
	sem      *semaphore.Weighted
	group    singleflight.Group
	maxBytes int64
	logger   *logging.Logger
}

type Options struct {
	Timeout          time.Duration
	MaxConcurrent    int
	MaxResponseBytes int
	Client           *http.Client
	Logger           *logging.Logger
}

func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Fetcher{
		client:   client,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		maxBytes: int64(opts.MaxResponseBytes),
		logger:   opts.Logger,
	}
}

// HTTPFetch returns the body of url. A body longer than the configured
// limit is returned truncated to limit+1 bytes so callers can detect it.
func (f *Fetcher) HTTPFetch(ctx context.Context, url string) (string, error) {
	ch := f.group.DoChan(url, func() (any, error) {
		// shared by every waiter, so one caller's cancellation must not abort it
		return f.fetch(context.WithoutCancel(ctx), url)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			f.logger.Debugf(ctx, "webfetch: shared response for %s", url)
		}
		return res.Val.(string), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, url string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer f.sem.Release(1)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.WithCode(errors.CodeInvalidInput, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.ExternalService("webservice", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.ExternalService("webservice", fmt.Errorf("GET %s: status %d", url, resp.StatusCode))
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.ExternalService("webservice", err)
	}
	f.logger.Debugf(ctx, "webfetch: GET %s %d bytes in %s", url, len(body), time.Since(start))
	return string(body), nil
}
