// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// repoCache is a BoltDB-backed cache of the last good index document per
// repository URI, so a pool can still be loaded and resolved when a
// remote is unreachable and no plain index file survives on disk.
//
// Layout: one top-level bucket per repository URI holding the keys
// "index" (the serialized plist document) and "stamp" (RFC 3339 fetch
// time).
type repoCache struct {
	db *bolt.DB
}

var (
	cacheKeyIndex = []byte("index")
	cacheKeyStamp = []byte("stamp")
)

func openRepoCache(cacheDir string) (*repoCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating cache directory %s", cacheDir)
	}
	path := filepath.Join(cacheDir, "repoidx.db")
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening repository index cache %s", path)
	}
	return &repoCache{db: db}, nil
}

func (c *repoCache) close() error {
	return errors.Wrap(c.db.Close(), "closing repository index cache")
}

// put stores the index document for uri.
func (c *repoCache) put(uri string, index []byte, stamp time.Time) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(uri))
		if err != nil {
			return err
		}
		if err := b.Put(cacheKeyIndex, index); err != nil {
			return err
		}
		return b.Put(cacheKeyStamp, []byte(stamp.UTC().Format(time.RFC3339)))
	})
	return errors.Wrapf(err, "caching index of %s", uri)
}

// get returns the cached index document for uri, or nil when absent.
func (c *repoCache) get(uri string) (index []byte, stamp time.Time, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(uri))
		if b == nil {
			return nil
		}
		if v := b.Get(cacheKeyIndex); v != nil {
			index = append([]byte(nil), v...)
		}
		if v := b.Get(cacheKeyStamp); v != nil {
			if t, perr := time.Parse(time.RFC3339, string(v)); perr == nil {
				stamp = t
			}
		}
		return nil
	})
	return index, stamp, errors.Wrapf(err, "reading cached index of %s", uri)
}
