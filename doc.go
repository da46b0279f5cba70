// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bps implements the transaction engine of a binary package
// manager: repository pool lookups, dependency resolution with conflict
// and orphan detection, topological ordering, and a crash-resilient
// executor driving download, verify, unpack and configure per package
// against a persistent installed-package database.
//
// A Handle owns one repository pool, one package database and at most
// one in-flight transaction. The typical sequence is:
//
//	h, _ := bps.New(cfg)
//	h.SyncRepositories(ctx)
//	h.InstallPackage("foo", false)
//	td, err := h.Prepare()
//	// inspect td, then
//	h.Commit(ctx)
//
// All engine events are surfaced synchronously through the optional
// OnState, OnFetch and OnUnpack callbacks on the handle.
package bps
