// Package fetch retrieves source report files over HTTP and FTP.
package fetch

import (
	"context"
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
)

// Fetcher retrieves a document by URL. The caller must close the reader.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Dispatcher routes fetches by URL scheme.
type Dispatcher struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// NewDispatcher creates a Dispatcher over the given fetchers.
func NewDispatcher(httpFetcher *HTTPFetcher, ftpFetcher *FTPFetcher) *Dispatcher {
	return &Dispatcher{http: httpFetcher, ftp: ftpFetcher}
}

// Fetch dispatches to the fetcher for the URL's scheme.
func (d *Dispatcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %q", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return d.http.Fetch(ctx, rawURL)
	case "ftp":
		return d.ftp.Fetch(ctx, rawURL)
	default:
		return nil, eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}
}

// SaveTo downloads a URL to the given local path.
func SaveTo(ctx context.Context, f Fetcher, rawURL, path string) (int64, error) {
	rc, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: create %s", path)
	}
	defer out.Close()

	n, err := io.Copy(out, rc)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: write %s", path)
	}
	return n, nil
}
