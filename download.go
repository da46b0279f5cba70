// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"

	"github.com/gobps/gobps/internal/fs"
)

// downloadStep brings the archive for one install/update step into the
// cache. Archives already present with a matching hash are kept; local
// repositories are served by a plain copy, remote ones through the
// transport. Writes land on a temp sibling and are renamed into place.
func (h *Handle) downloadStep(ctx context.Context, step *TransactionStep) error {
	rec := step.Record
	target := h.archivePath(rec)

	if ok, _ := fs.IsRegular(target); ok {
		if hash, err := fs.HashFile(target); err == nil && hash == rec.FilenameSHA256 {
			h.debugf("%s: archive already cached", rec.Pkgver())
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrap(err, "creating cache directory")
	}
	if err := h.statef(StateDownload, rec.Name, rec.Version,
		"Downloading `%s' from `%s'.", rec.ArchiveName(), rec.Repository); err != nil {
		return err
	}

	if isLocalURI(rec.Repository) {
		src := filepath.Join(localURIPath(rec.Repository), rec.ArchiveName())
		tmp := target + ".part"
		if err := shutil.CopyFile(src, tmp, false); err != nil {
			h.state(StateEvent{Tag: StateDownloadFail, Pkgname: rec.Name, Version: rec.Version, Err: err})
			return &DownloadError{URL: src, Err: err}
		}
		if err := fs.RenameWithFallback(tmp, target); err != nil {
			return &DownloadError{URL: src, Err: err}
		}
		return nil
	}

	url := rec.Repository + "/" + rec.ArchiveName()
	if _, err := h.fetcher.Fetch(ctx, url, target, nil, h.OnFetch); err != nil {
		h.state(StateEvent{Tag: StateDownloadFail, Pkgname: rec.Name, Version: rec.Version, Err: err})
		return err
	}
	return nil
}

// verifyStep recomputes the cached archive's SHA-256 end to end and
// compares it to the repository-advertised hash. On mismatch the bad
// archive is deleted and the transaction aborts before any filesystem
// mutation.
func (h *Handle) verifyStep(step *TransactionStep) error {
	rec := step.Record
	target := h.archivePath(rec)

	if err := h.statef(StateVerify, rec.Name, rec.Version,
		"Verifying `%s'.", rec.ArchiveName()); err != nil {
		return err
	}
	hash, err := fs.HashFile(target)
	if err != nil {
		return errors.Wrapf(err, "verifying %s", rec.Pkgver())
	}
	if rec.FilenameSHA256 != "" && hash != rec.FilenameSHA256 {
		os.Remove(target)
		verr := &VerifyError{Pkgver: rec.Pkgver(), Want: rec.FilenameSHA256, Got: hash}
		h.state(StateEvent{Tag: StateVerifyFail, Pkgname: rec.Name, Version: rec.Version, Err: verr})
		return verr
	}
	return nil
}
