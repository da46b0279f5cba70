// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const indexFileName = "index.plist"

// isLocalURI reports whether a repository URI names a local directory
// rather than a remote endpoint.
func isLocalURI(uri string) bool {
	return !strings.Contains(uri, "://") || strings.HasPrefix(uri, "file://")
}

// localURIPath strips an optional file:// scheme.
func localURIPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

// indexCachePath is where the fetched index of a remote repository is
// kept. The URI is folded into a stable filename.
func (h *Handle) indexCachePath(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return filepath.Join(h.Conf.cacheDir(), "idx-"+hex.EncodeToString(sum[:8])+".plist")
}

// SyncIndex downloads the index file of one repository. Local index files
// are replaced atomically and the bolt cache refreshed; a NotModified
// answer keeps both. Local-directory repositories need no sync.
func (h *Handle) SyncIndex(ctx context.Context, uri string) error {
	if err := h.syncIndex(ctx, uri); err != nil {
		return err
	}
	// Invalidate any pool loaded before the sync.
	h.pool = nil
	return nil
}

func (h *Handle) syncIndex(ctx context.Context, uri string) error {
	if isLocalURI(uri) {
		return nil
	}
	if err := h.statef(StateRepoSync, "", "", "synchronizing index of %s", uri); err != nil {
		return err
	}
	target := h.indexCachePath(uri)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrap(err, "creating cache directory")
	}
	res, err := h.fetcher.Fetch(ctx, uri+"/"+indexFileName, target, hintsFor(target), h.OnFetch)
	if err != nil {
		h.state(StateEvent{Tag: StateRepoSyncFail, Desc: "index sync failed", Pkgname: uri, Err: err})
		return err
	}
	if res == NotModified {
		h.debugf("[repo] %s: index not modified", uri)
		return nil
	}
	data, err := ioutil.ReadFile(target)
	if err != nil {
		return errors.Wrapf(err, "reading synced index of %s", uri)
	}
	if cache, cerr := openRepoCache(h.Conf.cacheDir()); cerr == nil {
		if perr := cache.put(uri, data, time.Now()); perr != nil {
			h.debugf("[repo] %s: %v", uri, perr)
		}
		cache.close()
	} else {
		h.debugf("[repo] %v", cerr)
	}
	return nil
}

// SyncRepositories downloads every configured repository index, fanning
// out up to FetchCacheConnections transfers at once. A failure of one
// repository is logged and skipped; the call fails only when every
// repository fails.
func (h *Handle) SyncRepositories(ctx context.Context) error {
	uris := h.Conf.Repositories
	if len(uris) == 0 {
		return ErrNoRepositories
	}
	var g errgroup.Group
	g.SetLimit(h.Conf.FetchCacheConnections)
	failures := make([]error, len(uris))
	for i, uri := range uris {
		i, uri := i, uri
		g.Go(func() error {
			if err := h.syncIndex(ctx, uri); err != nil {
				failures[i] = err
				h.Out.Printf("repository %s: sync failed: %v", uri, err)
			}
			return nil
		})
	}
	g.Wait()
	h.pool = nil

	var nfailed int
	var first error
	for _, err := range failures {
		if err != nil {
			nfailed++
			if first == nil {
				first = err
			}
		}
	}
	if nfailed == len(uris) {
		return errors.Wrap(first, "all repositories failed to sync")
	}
	return nil
}

// LoadPool builds the repository pool from the configured repositories.
// For a local repository the index is read in place; for a remote one the
// synced index file is used, falling back to the bolt cache. Repositories
// that cannot be loaded are logged and skipped; the pool is usable as
// long as at least one loads (resolution against an empty pool reports
// ErrNoRepositories at that point).
func (h *Handle) LoadPool() error {
	var repos []*Repository
	var cache *repoCache
	defer func() {
		if cache != nil {
			cache.close()
		}
	}()
	for _, uri := range h.Conf.Repositories {
		var data []byte
		var err error
		if isLocalURI(uri) {
			data, err = ioutil.ReadFile(filepath.Join(localURIPath(uri), indexFileName))
		} else {
			data, err = ioutil.ReadFile(h.indexCachePath(uri))
			if err != nil && os.IsNotExist(err) {
				if cache == nil {
					cache, _ = openRepoCache(h.Conf.cacheDir())
				}
				if cache != nil {
					if cached, stamp, cerr := cache.get(uri); cerr == nil && cached != nil {
						h.debugf("[repo] %s: using cached index from %s", uri, stamp)
						data, err = cached, nil
					}
				}
			}
		}
		if err != nil {
			h.Out.Printf("repository %s: index unavailable: %v", uri, err)
			continue
		}
		repo, err := loadRepository(uri, data)
		if err != nil {
			h.Out.Printf("repository %s: %v", uri, err)
			continue
		}
		h.debugf("[repo] %s: %d packages", uri, repo.Count())
		repos = append(repos, repo)
	}
	h.pool = NewPool(h.arch, repos...)
	return nil
}
