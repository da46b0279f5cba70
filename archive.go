// Copyright 2012 The gobps Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bps

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gobps/gobps/plist"
)

// EntryType classifies an archive entry.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDir
	EntrySymlink
)

// ArchiveEntry is the header of one payload entry.
type ArchiveEntry struct {
	Name     string // path relative to the install root
	Type     EntryType
	Mode     os.FileMode
	Linkname string
	Size     int64
	ModTime  time.Time
}

// ArchiveReader yields a binary package's payload as a stream of
// (header, body) entries, in the archive's own order. The two metadata
// documents are consumed before the first payload entry is returned.
type ArchiveReader interface {
	// Props returns the package's properties document.
	Props() plist.Dict
	// Files returns the package's file-list document.
	Files() plist.Dict
	// Script returns the named hook script ("INSTALL" or "REMOVE")
	// shipped in the metadata section, or nil.
	Script(name string) []byte
	// Next returns the next payload entry. io.EOF ends the stream.
	Next() (*ArchiveEntry, io.Reader, error)
	// Close releases the underlying file.
	Close() error
}

const (
	metaPropsEntry = "props.plist"
	metaFilesEntry = "files.plist"
)

// binaryArchive reads a tar-family package archive, optionally gzip
// compressed. The metadata entries (props.plist and files.plist, in
// either order) must both precede the first payload entry.
type binaryArchive struct {
	f       *os.File
	tr      *tar.Reader
	props   plist.Dict
	files   plist.Dict
	scripts map[string][]byte

	pending *tar.Header // first payload header, read while scanning metadata
}

// OpenArchive opens the archive at path and internalizes its metadata.
func OpenArchive(path string) (ArchiveReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var src io.Reader = f
	// Sniff the gzip magic.
	var magic [2]byte
	if _, err := io.ReadFull(f, magic[:]); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "opening archive %s", path)
		}
		src = zr
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}

	a := &binaryArchive{
		f:       f,
		tr:      tar.NewReader(src),
		scripts: make(map[string][]byte),
	}
	if err := a.readMetadata(); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "archive %s", path)
	}
	return a, nil
}

// entryName normalizes a tar member name to an install-root-relative
// path.
func entryName(name string) string {
	name = strings.TrimPrefix(name, "./")
	return strings.TrimSuffix(name, "/")
}

func (a *binaryArchive) readMetadata() error {
	for {
		hdr, err := a.tr.Next()
		if err == io.EOF {
			if a.props == nil || a.files == nil {
				return errors.New("metadata entries missing")
			}
			return nil
		}
		if err != nil {
			return err
		}
		switch entryName(hdr.Name) {
		case metaPropsEntry, metaFilesEntry:
			data, err := io.ReadAll(a.tr)
			if err != nil {
				return err
			}
			d, err := plist.InternalizeDict(data)
			if err != nil {
				return err
			}
			if entryName(hdr.Name) == metaPropsEntry {
				a.props = d
			} else {
				a.files = d
			}
		case "INSTALL", "REMOVE":
			data, err := io.ReadAll(a.tr)
			if err != nil {
				return err
			}
			a.scripts[entryName(hdr.Name)] = data
		default:
			// Payload before both metadata entries is a malformed
			// archive.
			if a.props == nil || a.files == nil {
				return errors.Errorf("payload entry %q precedes package metadata", hdr.Name)
			}
			a.pending = hdr
			return nil
		}
	}
}

func (a *binaryArchive) Props() plist.Dict { return a.props }

func (a *binaryArchive) Files() plist.Dict { return a.files }

func (a *binaryArchive) Script(name string) []byte { return a.scripts[name] }

func (a *binaryArchive) Next() (*ArchiveEntry, io.Reader, error) {
	for {
		var hdr *tar.Header
		var err error
		if a.pending != nil {
			hdr, a.pending = a.pending, nil
		} else {
			hdr, err = a.tr.Next()
		}
		if err != nil {
			return nil, nil, err
		}
		name := entryName(hdr.Name)
		switch name {
		case "INSTALL", "REMOVE":
			data, err := io.ReadAll(a.tr)
			if err != nil {
				return nil, nil, err
			}
			a.scripts[name] = data
			continue
		case "", metaPropsEntry, metaFilesEntry:
			// Metadata encountered late in the stream is tolerated
			// and skipped.
			continue
		}
		entry := &ArchiveEntry{
			Name:    name,
			Mode:    os.FileMode(hdr.Mode),
			Size:    hdr.Size,
			ModTime: hdr.ModTime,
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			entry.Type = EntryDir
		case tar.TypeSymlink:
			entry.Type = EntrySymlink
			entry.Linkname = hdr.Linkname
		case tar.TypeReg:
			entry.Type = EntryFile
		default:
			continue
		}
		return entry, a.tr, nil
	}
}

func (a *binaryArchive) Close() error { return a.f.Close() }
