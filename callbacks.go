// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import "fmt"

// StateTag identifies an engine event surfaced through the state callback.
type StateTag int

const (
	StateTagUnknown StateTag = iota
	// Transaction phases.
	StateTransDownload
	StateTransVerify
	StateTransRun
	StateTransConfigure
	// Per-package events.
	StateDownload
	StateVerify
	StateRemove
	StateRemoveDone
	StateRemoveFile
	StateRemoveFileObsolete
	StatePurge
	StatePurgeDone
	StateInstall
	StateInstallDone
	StateUpdate
	StateUpdateDone
	StateUnpack
	StateConfigure
	StateConfigFile
	StateRegister
	StateUnregister
	StateRepoSync
	// Failure events.
	StateVerifyFail
	StateDownloadFail
	StateRemoveFail
	StateRemoveFileHashFail
	StateConfigureFail
	StateUnpackFail
	StateRepoSyncFail
)

var stateTagNames = map[StateTag]string{
	StateTransDownload:      "trans-download",
	StateTransVerify:        "trans-verify",
	StateTransRun:           "trans-run",
	StateTransConfigure:     "trans-configure",
	StateDownload:           "download",
	StateVerify:             "verify",
	StateRemove:             "remove",
	StateRemoveDone:         "remove-done",
	StateRemoveFile:         "remove-file",
	StateRemoveFileObsolete: "remove-file-obsolete",
	StatePurge:              "purge",
	StatePurgeDone:          "purge-done",
	StateInstall:            "install",
	StateInstallDone:        "install-done",
	StateUpdate:             "update",
	StateUpdateDone:         "update-done",
	StateUnpack:             "unpack",
	StateConfigure:          "configure",
	StateConfigFile:         "config-file",
	StateRegister:           "register",
	StateUnregister:         "unregister",
	StateRepoSync:           "repository-sync",
	StateVerifyFail:         "verify-fail",
	StateDownloadFail:       "download-fail",
	StateRemoveFail:         "remove-fail",
	StateRemoveFileHashFail: "remove-file-hash-fail",
	StateConfigureFail:      "configure-fail",
	StateUnpackFail:         "unpack-fail",
	StateRepoSyncFail:       "repository-sync-fail",
}

func (t StateTag) String() string {
	if n, ok := stateTagNames[t]; ok {
		return n
	}
	return "unknown"
}

// StateEvent is delivered to the embedder's state callback. Events are
// emitted synchronously on the executor's goroutine; handlers must not
// perform long work.
type StateEvent struct {
	Tag     StateTag
	Desc    string
	Pkgname string
	Version string
	Err     error
}

// StateFunc observes engine state changes. Returning a non-nil error
// cancels the operation once the executor reaches a safe checkpoint.
type StateFunc func(ev StateEvent) error

// FetchPhase tags fetch progress callbacks.
type FetchPhase int

const (
	FetchStart FetchPhase = iota
	FetchUpdate
	FetchEnd
)

// FetchProgress reports transport progress for one download.
type FetchProgress struct {
	Name     string
	Total    int64
	Offset   int64
	Received int64
	Phase    FetchPhase
}

// FetchFunc observes download progress. Returning a non-nil error cancels
// the transfer.
type FetchFunc func(p FetchProgress) error

// UnpackProgress reports archive extraction progress for one package.
type UnpackProgress struct {
	Pkgver string
	Entry  string
	Done   int64
	Total  int64
}

// UnpackFunc observes extraction progress. Returning a non-nil error
// cancels the transaction once the current entry reaches a safe
// checkpoint.
type UnpackFunc func(p UnpackProgress) error

// state emits ev through the handle's state callback, if any.
func (h *Handle) state(ev StateEvent) error {
	if h.OnState == nil {
		return nil
	}
	if err := h.OnState(ev); err != nil {
		h.debugf("state callback cancelled at %s: %v", ev.Tag, err)
		return ErrCancelled
	}
	return nil
}

func (h *Handle) statef(tag StateTag, pkgname, version, format string, args ...interface{}) error {
	return h.state(StateEvent{
		Tag:     tag,
		Desc:    fmt.Sprintf(format, args...),
		Pkgname: pkgname,
		Version: version,
	})
}
