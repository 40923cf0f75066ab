package webfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/errors"
)

var _ formula.HTTPFetcher = (*Fetcher)(nil)

func TestHTTPFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("<rates><usd>1.1</usd></rates>"))
		case "/big":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := New(Options{Timeout: time.Second, MaxConcurrent: 2, MaxResponseBytes: 32})

	body, err := f.HTTPFetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "<rates><usd>1.1</usd></rates>", body)

	body, err = f.HTTPFetch(context.Background(), srv.URL+"/big")
	require.NoError(t, err)
	assert.Len(t, body, 33, "oversize bodies stop at limit+1")

	_, err = f.HTTPFetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.Code(err))
}

func TestHTTPFetchSharesInFlightRequests(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte("done"))
	}))
	defer srv.Close()

	f := New(Options{Timeout: 5 * time.Second, MaxConcurrent: 4, MaxResponseBytes: 1024})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = f.HTTPFetch(context.Background(), srv.URL)
		}()
	}
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	// let the waiters join the in-flight call before it finishes
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, r := range results {
		assert.Equal(t, "done", r)
	}
}

func TestHTTPFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f := New(Options{Timeout: time.Second, MaxConcurrent: 1, MaxResponseBytes: 16})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.HTTPFetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkbookWebService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<quote><price>42.5</price></quote>"))
	}))
	defer srv.Close()

	f := New(Options{Timeout: time.Second, MaxConcurrent: 1, MaxResponseBytes: 1024})
	wb := formula.NewWorkbook(
		formula.WithHTTPFetcher(f),
		formula.WithEvaluatorOptions(formula.WithWebFunctions(true)),
	)
	require.NoError(t, wb.AddSheet("Sheet1"))
	require.NoError(t, wb.Set("A1", srv.URL+"/quote"))
	require.NoError(t, wb.Set("B1", `=VALUE(FILTERXML(WEBSERVICE(A1), "//price"))`))
	require.NoError(t, wb.Calculate(context.Background()))

	v, err := wb.Get("B1")
	require.NoError(t, err)
	n, ok := formula.ToNumber(v)
	require.True(t, ok, "got %v", v)
	assert.Equal(t, 42.5, n)
}
