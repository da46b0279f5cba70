package bps

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

// Simple install: the best candidate enters the transaction with its
// download size aggregated.
func TestInstallSimple(t *testing.T) {
	foo := rec("foo-2.0", sizes(1234, 8192))
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("afoo-1.1", provides("virtualpkg-9999")),
		foo,
	}))

	if err := h.InstallPackage("foo", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"install foo-2.0"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
	if td.DownloadSize != 1234 {
		t.Errorf("download size = %d, want 1234", td.DownloadSize)
	}
	if len(td.Missing) != 0 || len(td.Conflicts) != 0 {
		t.Errorf("unexpected missing=%v conflicts=%v", td.Missing, td.Conflicts)
	}
}

// A virtual name resolves to its provider.
func TestInstallVirtualByName(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("afoo-1.1", provides("virtualpkg-9999")),
	}))
	if err := h.InstallPackage("virtualpkg", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"install afoo-1.1"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

// A virtual pattern resolves through the provides index too.
func TestInstallVirtualByPattern(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("afoo-1.1", provides("virtualpkg-9999")),
	}))
	if err := h.InstallPackage("virtualpkg>=9999", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"install afoo-1.1"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

// The configured virtualpkg alias table takes precedence over the
// provides index.
func TestInstallVirtualAlias(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("afoo-1.1", provides("editor-9999")),
		rec("realvim-8.0"),
	}))
	h.Conf.VirtualPackages = []string{"editor:realvim"}

	if err := h.InstallPackage("editor", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"install realvim-8.0"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestInstallAlreadyInstalled(t *testing.T) {
	foo := rec("foo-2.0")
	h := newTestHandle(t, newRepository("r", []*PackageRecord{foo}))
	installed(t, h, foo, StateInstalled, false)

	err := h.InstallPackage("foo", false)
	if errors.Cause(err) != ErrAlreadyInstalled {
		t.Errorf("err = %v, want ErrAlreadyInstalled", err)
	}
	if h.Transaction() != nil && len(h.Transaction().Steps) != 0 {
		t.Errorf("steps produced on rejection: %v", stepPkgvers(h.Transaction()))
	}
}

func TestUpdateUpToDate(t *testing.T) {
	foo := rec("foo-2.0")
	h := newTestHandle(t, newRepository("r", []*PackageRecord{rec("foo-2.0")}))
	installed(t, h, foo, StateInstalled, false)

	err := h.UpdatePackage("foo")
	if errors.Cause(err) != ErrUpToDate {
		t.Errorf("err = %v, want ErrUpToDate", err)
	}
	if h.Transaction() != nil && len(h.Transaction().Steps) != 0 {
		t.Errorf("steps produced on rejection: %v", stepPkgvers(h.Transaction()))
	}
}

func TestUpdateNewerAvailable(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{rec("foo-2.1")}))
	installed(t, h, rec("foo-2.0"), StateInstalled, false)

	if err := h.UpdatePackage("foo"); err != nil {
		t.Fatalf("UpdatePackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"update foo-2.1"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

// Dependency closure: a diamond pulls each node exactly once, ordered
// dependencies-first.
func TestClosureDiamond(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("top-1.0", deps("left>=1.0", "right>=1.0")),
		rec("left-1.0", deps("base>=1.0")),
		rec("right-1.0", deps("base>=1.0")),
		rec("base-1.0"),
	}))

	if err := h.InstallPackage("top", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	got := stepPkgvers(td)
	if len(got) != 4 {
		t.Fatalf("steps = %v, want 4 unique entries", got)
	}
	pos := map[string]int{}
	for i, s := range got {
		pos[s] = i
	}
	if pos["install base-1.0"] > pos["install left-1.0"] ||
		pos["install base-1.0"] > pos["install right-1.0"] ||
		pos["install left-1.0"] > pos["install top-1.0"] ||
		pos["install right-1.0"] > pos["install top-1.0"] {
		t.Errorf("unsafe order: %v", got)
	}
	// Dependencies come in marked automatic.
	for _, s := range td.Steps {
		wantAuto := s.Record.Name != "top"
		if s.Automatic != wantAuto {
			t.Errorf("%s: automatic = %v, want %v", s.Record.Pkgver(), s.Automatic, wantAuto)
		}
	}
}

// Dependencies already satisfied by the pkgdb are not re-queued.
func TestClosureSatisfiedByDB(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("app-1.0", deps("lib>=1.0")),
		rec("lib-1.5"),
	}))
	installed(t, h, rec("lib-1.5"), StateInstalled, true)

	if err := h.InstallPackage("app", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"install app-1.0"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

// A dependency satisfied by an installed package's provides set is not
// re-queued either.
func TestClosureSatisfiedByProvides(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("app-1.0", deps("mta")),
	}))
	installed(t, h, rec("postfix-2.8", provides("mta-9999")), StateInstalled, false)

	if err := h.InstallPackage("app", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"install app-1.0"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestMissingDeps(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("app-1.0", deps("ghost>=1.0")),
	}))
	if err := h.InstallPackage("app", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if errors.Cause(err) != ErrMissingDeps {
		t.Fatalf("Prepare err = %v, want ErrMissingDeps", err)
	}
	if len(td.Missing) != 1 || td.Missing[0].Atom != "ghost>=1.0" || td.Missing[0].RequiredBy != "app-1.0" {
		t.Errorf("missing = %+v", td.Missing)
	}
}

func TestConflictAgainstInstalled(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("app-1.0", conflicts("rival>=1.0")),
	}))
	installed(t, h, rec("rival-1.2"), StateInstalled, false)

	if err := h.InstallPackage("app", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	td, err := h.Prepare()
	if errors.Cause(err) != ErrHasConflicts {
		t.Fatalf("Prepare err = %v, want ErrHasConflicts", err)
	}
	if len(td.Conflicts) != 1 || td.Conflicts[0].Against != "rival-1.2" {
		t.Errorf("conflicts = %+v", td.Conflicts)
	}
}

// Conflicts declared by installed packages bind new installations too.
func TestConflictDeclaredByInstalled(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("app-1.0"),
	}))
	installed(t, h, rec("guard-1.0", conflicts("app>=1.0")), StateInstalled, false)

	if err := h.InstallPackage("app", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	_, err := h.Prepare()
	if errors.Cause(err) != ErrHasConflicts {
		t.Errorf("Prepare err = %v, want ErrHasConflicts", err)
	}
}

// A conflicting package being removed in the same transaction does not
// count.
func TestConflictSuppressedByRemoval(t *testing.T) {
	rival := rec("rival-1.2")
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("app-1.0", conflicts("rival>=1.0")),
	}))
	installed(t, h, rival, StateInstalled, false)

	if err := h.RemovePackage("rival", false); err != nil {
		t.Fatalf("RemovePackage: %v", err)
	}
	if err := h.InstallPackage("app", false); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	if _, err := h.Prepare(); err != nil {
		t.Errorf("Prepare: %v", err)
	}
}

func TestRemoveNotInstalled(t *testing.T) {
	h := newTestHandle(t)
	if err := h.RemovePackage("ghost", false); errors.Cause(err) != ErrNotInstalled {
		t.Errorf("err = %v, want ErrNotInstalled", err)
	}
}

func TestRemoveRecordsDependants(t *testing.T) {
	lib := rec("lib-1.0")
	h := newTestHandle(t)
	installed(t, h, lib, StateInstalled, false)
	installed(t, h, rec("app-1.0", deps("lib>=1.0")), StateInstalled, false)

	if err := h.RemovePackage("lib", false); err != nil {
		t.Fatalf("RemovePackage: %v", err)
	}
	td := h.Transaction()
	if len(td.Dependants) != 1 || td.Dependants[0] != "app-1.0" {
		t.Errorf("dependants = %v, want [app-1.0]", td.Dependants)
	}
}

// Recursive remove folds would-be orphans into the transaction.
func TestRemoveRecursive(t *testing.T) {
	h := newTestHandle(t)
	installed(t, h, rec("app-1.0", deps("lib>=1.0")), StateInstalled, false)
	installed(t, h, rec("lib-1.0", deps("sub>=1.0")), StateInstalled, true)
	installed(t, h, rec("sub-1.0"), StateInstalled, true)

	if err := h.RemovePackage("app", true); err != nil {
		t.Fatalf("RemovePackage: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	got := stepPkgvers(td)
	if len(got) != 3 {
		t.Fatalf("steps = %v, want app, lib and sub removed", got)
	}
	pos := map[string]int{}
	for i, s := range got {
		pos[s] = i
	}
	// Dependants are removed before their dependencies.
	if pos["remove app-1.0"] > pos["remove lib-1.0"] || pos["remove lib-1.0"] > pos["remove sub-1.0"] {
		t.Errorf("remove order unsafe: %v", got)
	}
}

// Autoremove picks up automatic packages nothing requires, including
// chains, but never manually installed ones.
func TestAutoremove(t *testing.T) {
	h := newTestHandle(t)
	installed(t, h, rec("manual-1.0"), StateInstalled, false)
	installed(t, h, rec("orphan-1.0", deps("suborphan>=1.0")), StateInstalled, true)
	installed(t, h, rec("suborphan-1.0"), StateInstalled, true)
	installed(t, h, rec("needed-1.0"), StateInstalled, true)
	installed(t, h, rec("user-1.0", deps("needed>=1.0")), StateInstalled, false)

	if err := h.Autoremove(); err != nil {
		t.Fatalf("Autoremove: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	got := map[string]bool{}
	for _, s := range td.Steps {
		if s.Action != ActionRemove {
			t.Errorf("unexpected action %s", s.Action)
		}
		got[s.Record.Name] = true
	}
	want := map[string]bool{"orphan": true, "suborphan": true}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("orphans = %v, want %v", got, want)
	}
}

func TestAutoremoveNothing(t *testing.T) {
	h := newTestHandle(t)
	installed(t, h, rec("manual-1.0"), StateInstalled, false)
	if err := h.Autoremove(); errors.Cause(err) != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateAllHonorsHold(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{
		rec("foo-2.0"),
		rec("bar-2.0"),
	}))
	installed(t, h, rec("foo-1.0"), StateInstalled, false)
	installed(t, h, rec("bar-1.0"), StateInstalled, false)
	h.Conf.PackagesOnHold = []string{"bar"}

	if err := h.UpdateAllPackages(); err != nil {
		t.Fatalf("UpdateAllPackages: %v", err)
	}
	td, err := h.Prepare()
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []string{"update foo-2.0"}
	if got := stepPkgvers(td); !reflect.DeepEqual(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestUpdateAllUpToDate(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{rec("foo-1.0")}))
	installed(t, h, rec("foo-1.0"), StateInstalled, false)
	if err := h.UpdateAllPackages(); errors.Cause(err) != ErrUpToDate {
		t.Errorf("err = %v, want ErrUpToDate", err)
	}
}

func TestInstallNoRepositories(t *testing.T) {
	h := newTestHandle(t)
	if err := h.InstallPackage("foo", false); errors.Cause(err) != ErrNoRepositories {
		t.Errorf("err = %v, want ErrNoRepositories", err)
	}
}

func TestInstallNotFound(t *testing.T) {
	h := newTestHandle(t, newRepository("r", []*PackageRecord{rec("foo-1.0")}))
	if err := h.InstallPackage("ghost", false); errors.Cause(err) != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// Resolver idempotence: resolving the same seeds against the same pool
// and pkgdb yields the same sorted step list.
func TestResolverIdempotent(t *testing.T) {
	build := func() []string {
		h := newTestHandle(t, newRepository("r", []*PackageRecord{
			rec("top-1.0", deps("left>=1.0", "right>=1.0")),
			rec("left-1.0", deps("base>=1.0")),
			rec("right-1.0", deps("base>=1.0")),
			rec("base-1.0"),
		}))
		if err := h.InstallPackage("top", false); err != nil {
			t.Fatalf("InstallPackage: %v", err)
		}
		td, err := h.Prepare()
		if err != nil {
			t.Fatalf("Prepare: %v", err)
		}
		return stepPkgvers(td)
	}
	first, second := build(), build()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolution not deterministic:\n first  %v\n second %v", first, second)
	}
}
