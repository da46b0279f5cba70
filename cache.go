// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
)

// CleanCache removes cached archives whose pkgver is no longer current
// in any repository, and stale partial downloads. It returns the number
// of files removed.
func (h *Handle) CleanCache() (int, error) {
	pool, err := h.Pool()
	if err != nil {
		return 0, err
	}
	cacheDir := h.Conf.cacheDir()
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		return 0, nil
	}

	var removed int
	err = godirwalk.Walk(cacheDir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			base := filepath.Base(osPathname)
			if strings.HasSuffix(base, ".part") {
				if err := os.Remove(osPathname); err == nil {
					removed++
				}
				return nil
			}
			if !strings.HasSuffix(base, ".bps") {
				return nil
			}
			// <pkgver>.<arch>.bps
			stem := strings.TrimSuffix(base, ".bps")
			i := strings.LastIndexByte(stem, '.')
			if i <= 0 {
				return nil
			}
			pv := stem[:i]
			if pool.FindExact(pv) != nil {
				return nil
			}
			h.debugf("[cache] removing obsolete archive %s", base)
			if err := os.Remove(osPathname); err == nil {
				removed++
			}
			return nil
		},
	})
	return removed, err
}
