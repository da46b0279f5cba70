// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel resolution errors returned to the caller rather than recorded
// on the transaction document.
var (
	// ErrAlreadyInstalled is returned when the install target is already
	// installed and reinstall was not requested.
	ErrAlreadyInstalled = errors.New("package is already installed")
	// ErrUpToDate is returned when no repository carries a newer version
	// of the update target.
	ErrUpToDate = errors.New("package is up to date")
	// ErrNotInstalled is returned when the remove target is not present
	// in the package database.
	ErrNotInstalled = errors.New("package is not installed")
	// ErrNotFound is returned when no repository satisfies the target.
	ErrNotFound = errors.New("package not found in repository pool")
	// ErrNoRepositories is returned when the pool is empty.
	ErrNoRepositories = errors.New("no repositories registered")
	// ErrMissingDeps is returned by Prepare when the document carries
	// unresolvable dependencies.
	ErrMissingDeps = errors.New("transaction has missing dependencies")
	// ErrHasConflicts is returned by Prepare when the document carries
	// package conflicts.
	ErrHasConflicts = errors.New("transaction has package conflicts")
	// ErrCancelled is returned when a callback requested cancellation;
	// the executor drains to a safe checkpoint first.
	ErrCancelled = errors.New("operation cancelled by callback")
	// ErrNoTransaction is returned when Commit is invoked with no
	// prepared transaction on the handle.
	ErrNoTransaction = errors.New("no transaction in progress")
	// ErrDatabaseLocked is returned when the pkgdb advisory lock is held
	// by another process.
	ErrDatabaseLocked = errors.New("package database is locked by another process")
)

// BadStateTransitionError reports a forbidden package state transition.
type BadStateTransitionError struct {
	Pkgname  string
	From, To PackageState
}

func (e *BadStateTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid state transition %s -> %s", e.Pkgname, e.From, e.To)
}

// VerifyError reports an archive whose on-disk hash differs from the
// repository-advertised one.
type VerifyError struct {
	Pkgver string
	Want   string
	Got    string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s: archive verification failed (want %s, got %s)", e.Pkgver, e.Want, e.Got)
}

// DownloadError reports a persistent transport failure for one URL.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

// Cause returns the underlying transport error.
func (e *DownloadError) Cause() error { return e.Err }

// UnpackError reports a failure while extracting one archive entry; the
// package is left half-unpacked.
type UnpackError struct {
	Pkgver string
	Entry  string
	Err    error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("%s: unpacking entry %q failed: %v", e.Pkgver, e.Entry, e.Err)
}

// Cause returns the underlying extraction error.
func (e *UnpackError) Cause() error { return e.Err }

// ConfigureError reports a failed INSTALL script run; the package stays
// unpacked and a later reconfigure is safe.
type ConfigureError struct {
	Pkgver   string
	ExitCode int
	Err      error
}

func (e *ConfigureError) Error() string {
	return fmt.Sprintf("%s: configure failed (exit %d): %v", e.Pkgver, e.ExitCode, e.Err)
}

// Cause returns the underlying script error.
func (e *ConfigureError) Cause() error { return e.Err }

// RemoveError reports a failed package removal.
type RemoveError struct {
	Pkgver string
	Err    error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("%s: remove failed: %v", e.Pkgver, e.Err)
}

// Cause returns the underlying removal error.
func (e *RemoveError) Cause() error { return e.Err }

// CycleError reports a dependency cycle among transaction steps.
type CycleError struct {
	Pkgvers []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among: %v", e.Pkgvers)
}
