package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finstat/internal/resilience"
)

func fastFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent: "finstat-test",
		Timeout:   5 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})
}

func TestHTTPFetcher_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "finstat-test", r.Header.Get("User-Agent"))
		io.WriteString(w, "report body")
	}))
	defer srv.Close()

	rc, err := fastFetcher().Fetch(context.Background(), srv.URL+"/report.pdf")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "report body", string(data))
}

func TestHTTPFetcher_ForbiddenIsPermanentRejection(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := fastFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsPermanentRejection(err))
	assert.Equal(t, int64(1), calls.Load(), "403 must not be retried")
}

func TestHTTPFetcher_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok eventually")
	}))
	defer srv.Close()

	rc, err := fastFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(3), calls.Load())
}

func TestSaveTo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "file contents")
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "report.pdf")
	n, err := SaveTo(context.Background(), fastFetcher(), srv.URL, path)
	require.NoError(t, err)
	assert.Equal(t, int64(len("file contents")), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(data))
}

func TestDispatcher_UnsupportedScheme(t *testing.T) {
	d := NewDispatcher(fastFetcher(), NewFTPFetcher(FTPOptions{}))

	_, err := d.Fetch(context.Background(), "gopher://example.com/report")
	assert.Error(t, err)
}

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://mirror.example.com/reports/ar-2024.pdf")
	require.NoError(t, err)
	assert.Equal(t, "mirror.example.com:21", host)
	assert.Equal(t, "/reports/ar-2024.pdf", path)

	host, _, err = parseFTPURL("ftp://mirror.example.com:2121/x")
	require.NoError(t, err)
	assert.Equal(t, "mirror.example.com:2121", host)

	_, _, err = parseFTPURL("https://example.com/x")
	assert.Error(t, err)

	_, _, err = parseFTPURL("ftp://example.com")
	assert.Error(t, err)
}
