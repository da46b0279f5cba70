// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sdboyer/constext"

	"github.com/gobps/gobps/internal/fs"
)

// FetchResult distinguishes a completed download from a conditional fetch
// that found the local copy current.
type FetchResult int

const (
	// Downloaded means the target file was replaced with new content.
	Downloaded FetchResult = iota
	// NotModified means the remote honored the conditional hints and
	// the local file was kept.
	NotModified
)

// FetchHints carries the conditional-fetch metadata of an existing local
// file.
type FetchHints struct {
	MTime time.Time
	Size  int64
}

// Fetcher is the byte-stream-with-progress transport contract. A fetch
// call is sequential from the engine's perspective; implementations may
// parallelize internally. The stream is written to a sibling temp file
// and renamed over target on success.
type Fetcher interface {
	Fetch(ctx context.Context, url, target string, hints *FetchHints, progress FetchFunc) (FetchResult, error)
}

// httpFetcher implements Fetcher over HTTP with bounded retries, a
// per-connection timeout, and offset restart for partial transfers.
type httpFetcher struct {
	client  *retryablehttp.Client
	baseCtx context.Context
}

func newHTTPFetcher(cfg *Config) *httpFetcher {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.Logger = nil
	c.HTTPClient.Timeout = time.Duration(cfg.FetchTimeoutConnection) * time.Second
	return &httpFetcher{client: c, baseCtx: context.Background()}
}

func (f *httpFetcher) Fetch(ctx context.Context, url, target string, hints *FetchHints, progress FetchFunc) (FetchResult, error) {
	// Either the caller's context or the fetcher's base context may
	// cancel the stream.
	cctx, cancel := constext.Cons(ctx, f.baseCtx)
	defer cancel()

	req, err := retryablehttp.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}
	req = req.WithContext(cctx)

	if hints != nil && !hints.MTime.IsZero() {
		req.Header.Set("If-Modified-Since", hints.MTime.UTC().Format(http.TimeFormat))
	}

	// Restart from offset when a previous partial transfer left a temp
	// file behind.
	part := target + ".part"
	var offset int64
	if fi, err := os.Stat(part); err == nil {
		offset = fi.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return NotModified, nil
	case http.StatusOK:
		offset = 0
	case http.StatusPartialContent:
		// keep offset
	case http.StatusRequestedRangeNotSatisfiable:
		// The partial file is stale; start over.
		os.Remove(part)
		offset = 0
		req.Header.Del("Range")
		resp.Body.Close()
		resp2, err := f.client.Do(req)
		if err != nil {
			return 0, &DownloadError{URL: url, Err: err}
		}
		resp = resp2
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, &DownloadError{URL: url, Err: errors.Errorf("unexpected status %s", resp.Status)}
		}
	default:
		return 0, &DownloadError{URL: url, Err: errors.Errorf("unexpected status %s", resp.Status)}
	}

	total := offset + resp.ContentLength
	if resp.ContentLength < 0 {
		total = -1
	}
	name := filepath.Base(target)

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(part, flags, 0644)
	if err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}

	if progress != nil {
		if err := progress(FetchProgress{Name: name, Total: total, Offset: offset, Phase: FetchStart}); err != nil {
			out.Close()
			return 0, ErrCancelled
		}
	}

	var received int64
	buf := make([]byte, 64*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				out.Close()
				return 0, &DownloadError{URL: url, Err: werr}
			}
			received += int64(n)
			if progress != nil {
				if err := progress(FetchProgress{Name: name, Total: total, Offset: offset, Received: received, Phase: FetchUpdate}); err != nil {
					out.Close()
					return 0, ErrCancelled
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			out.Close()
			return 0, &DownloadError{URL: url, Err: rerr}
		}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, &DownloadError{URL: url, Err: err}
	}
	if err := out.Close(); err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}

	if err := fs.RenameWithFallback(part, target); err != nil {
		return 0, &DownloadError{URL: url, Err: err}
	}

	// Propagate the server's modification time so later conditional
	// fetches have a stable hint.
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			os.Chtimes(target, t, t)
		}
	}

	if progress != nil {
		if err := progress(FetchProgress{Name: name, Total: total, Offset: offset, Received: received, Phase: FetchEnd}); err != nil {
			return Downloaded, ErrCancelled
		}
	}
	return Downloaded, nil
}

// hintsFor stats path and returns conditional-fetch hints, or nil when the
// file does not exist.
func hintsFor(path string) *FetchHints {
	fi, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &FetchHints{MTime: fi.ModTime(), Size: fi.Size()}
}
