package bps

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/gobps/gobps/internal/fs"
	"github.com/gobps/gobps/pkgver"
	"github.com/gobps/gobps/plist"
)

// rec builds a pool record from a pkgver plus option funcs.
func rec(pv string, opts ...func(*PackageRecord)) *PackageRecord {
	name, version, ok := pkgver.Split(pv)
	if !ok {
		panic("bad pkgver in test fixture: " + pv)
	}
	r := &PackageRecord{
		Name:    name,
		Version: version,
		Arch:    "noarch",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func deps(atoms ...string) func(*PackageRecord) {
	return func(r *PackageRecord) { r.Dependencies = atoms }
}

func provides(pvs ...string) func(*PackageRecord) {
	return func(r *PackageRecord) { r.Provides = pvs }
}

func conflicts(atoms ...string) func(*PackageRecord) {
	return func(r *PackageRecord) { r.Conflicts = atoms }
}

func sizes(download, installed uint64) func(*PackageRecord) {
	return func(r *PackageRecord) {
		r.FilenameSize = download
		r.InstalledSize = installed
	}
}

// newTestHandle returns a handle rooted in a temp dir with a pool built
// from the given repositories, in order.
func newTestHandle(t *testing.T, repos ...*Repository) *Handle {
	t.Helper()
	root := t.TempDir()
	cfg := &Config{RootDir: root, Architecture: "noarch"}
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.pool = NewPool("noarch", repos...)
	return h
}

// installed registers a record in the handle's pkgdb with the given
// state.
func installed(t *testing.T, h *Handle, r *PackageRecord, state PackageState, automatic bool) {
	t.Helper()
	db, err := h.Database()
	if err != nil {
		t.Fatalf("Database: %v", err)
	}
	if err := db.Insert(&InstalledPackage{PackageRecord: *r, State: state, Automatic: automatic}); err != nil {
		t.Fatalf("Insert(%s): %v", r.Pkgver(), err)
	}
}

// stepPkgvers renders a document's step list for assertions.
func stepPkgvers(td *TransactionDocument) []string {
	out := make([]string, len(td.Steps))
	for i, s := range td.Steps {
		out[i] = s.Action.String() + " " + s.Record.Pkgver()
	}
	return out
}

// testArchiveFile is one payload member of a built test archive.
type testArchiveFile struct {
	path string
	body string
	conf bool
	mode int64
}

// buildArchive writes a binary package archive for r into dir and
// updates the record's file lists, hash and size to match. Returns the
// archive path.
func buildArchive(t *testing.T, dir string, r *PackageRecord, files []testArchiveFile, scripts map[string]string) string {
	t.Helper()

	r.Files = nil
	r.ConfFiles = nil
	for _, f := range files {
		entry := FileEntry{
			Path:   f.path,
			SHA256: fs.HashBytes([]byte(f.body)),
			Size:   uint64(len(f.body)),
		}
		if f.conf {
			r.ConfFiles = append(r.ConfFiles, entry)
		} else {
			r.Files = append(r.Files, entry)
		}
	}

	filesDoc := plist.Dict{}
	if a := fileEntriesToArray(r.Files, "file"); a != nil {
		filesDoc["files"] = a
	}
	if a := fileEntriesToArray(r.ConfFiles, "file"); a != nil {
		filesDoc["conf_files"] = a
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)

	writeEntry := func(name string, body []byte, mode int64) {
		hdr := &tar.Header{
			Name: "./" + name,
			Mode: mode,
			Size: int64(len(body)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing %s header: %v", name, err)
		}
		if _, err := tw.Write(body); err != nil {
			t.Fatalf("writing %s body: %v", name, err)
		}
	}

	props, err := plist.Externalize(r.toDict())
	if err != nil {
		t.Fatalf("externalizing props: %v", err)
	}
	writeEntry("props.plist", props, 0644)
	fd, err := plist.Externalize(filesDoc)
	if err != nil {
		t.Fatalf("externalizing files doc: %v", err)
	}
	writeEntry("files.plist", fd, 0644)
	for name, body := range scripts {
		writeEntry(name, []byte(body), 0755)
	}
	for _, f := range files {
		mode := f.mode
		if mode == 0 {
			mode = 0644
		}
		writeEntry(f.path, []byte(f.body), mode)
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, r.ArchiveName())
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	r.FilenameSHA256 = fs.HashBytes(buf.Bytes())
	r.FilenameSize = uint64(buf.Len())
	return path
}

// buildRepo lands the records' archives plus an index.plist in a fresh
// local repository directory and returns its URI.
func buildRepo(t *testing.T, dir string, recs ...*PackageRecord) string {
	t.Helper()
	doc := make(plist.Array, len(recs))
	for i, r := range recs {
		doc[i] = r.toDict()
	}
	data, err := plist.Externalize(doc)
	if err != nil {
		t.Fatalf("externalizing index: %v", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(dir, indexFileName), data, 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}
