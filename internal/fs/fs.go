// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs holds the filesystem primitives shared by the package
// database, the archive unpacker and the download cache: atomic renames
// with a copy fallback, plain file copies, and mode predicates.
package fs

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
)

// RenameWithFallback attempts to rename src to dst, falling back to a
// copy + delete when the rename fails because src and dst are on
// different volumes.
func RenameWithFallback(src, dst string) error {
	_, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok {
		return errors.Wrapf(err, "cannot rename %s to %s", src, dst)
	}
	if terr.Err != syscall.EXDEV {
		return errors.Wrapf(terr, "link error: cannot rename %s to %s", src, dst)
	}
	return renameByCopy(src, dst)
}

// renameByCopy moves src to dst by copying, used when rename crosses a
// volume boundary.
func renameByCopy(src, dst string) error {
	if err := CopyFile(src, dst); err != nil {
		return errors.Wrapf(err, "copy fallback failed: cannot rename %s to %s", src, dst)
	}
	return errors.Wrapf(os.Remove(src), "copy fallback failed: cannot cleanup %s", src)
}

// CopyFile copies the contents and permission bits of the file named src
// to the file named dst. The destination is truncated if it exists.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}

	si, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, si.Mode())
}

// WriteFileAtomic writes data to path by way of a sibling temp file that
// is renamed over the target, so readers observe either the old or the
// new contents.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := ioutil.TempFile(dir, "."+filepath.Base(path)+".")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "syncing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	return RenameWithFallback(tmp.Name(), path)
}

// IsDir determines if a directory exists at the given path.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return false, err
	}
	if !fi.IsDir() {
		return false, errors.Errorf("%q is not a directory", name)
	}
	return true, nil
}

// IsRegular determines if a regular file exists at the given path.
func IsRegular(name string) (bool, error) {
	fi, err := os.Stat(name)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	mode := fi.Mode()
	if mode&os.ModeType != 0 {
		return false, errors.Errorf("%q is a %v, expected a file", name, mode)
	}
	return true, nil
}

// IsSymlink determines if the given path is a symbolic link.
func IsSymlink(path string) (bool, error) {
	l, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return l.Mode()&os.ModeSymlink == os.ModeSymlink, nil
}
