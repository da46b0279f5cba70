package bps

import (
	"testing"
)

func TestPoolFindName(t *testing.T) {
	repoA := newRepository("https://a.example.org", []*PackageRecord{
		rec("afoo-1.1", provides("virtualpkg-9999")),
		rec("foo-2.0"),
	})
	pool := NewPool("noarch", repoA)

	if got := pool.FindName("foo"); got == nil || got.Pkgver() != "foo-2.0" {
		t.Errorf("FindName(foo) = %v", got)
	}
	if got := pool.FindName("nope"); got != nil {
		t.Errorf("FindName(nope) = %v, want nil", got)
	}
	if got := pool.FindName("foo"); got.Repository != "https://a.example.org" {
		t.Errorf("repository not stamped: %q", got.Repository)
	}
}

func TestPoolFindBestAcrossRepos(t *testing.T) {
	repoA := newRepository("repo-a", []*PackageRecord{rec("foo-1.0")})
	repoB := newRepository("repo-b", []*PackageRecord{rec("foo-2.0")})
	pool := NewPool("noarch", repoA, repoB)

	got := pool.FindBest("foo")
	if got == nil || got.Pkgver() != "foo-2.0" {
		t.Fatalf("FindBest(foo) = %v, want foo-2.0", got)
	}
	if got.Repository != "repo-b" {
		t.Errorf("best candidate repository = %q, want repo-b", got.Repository)
	}
}

// On version ties the earlier repository wins.
func TestPoolFindBestTieEarlierWins(t *testing.T) {
	repoA := newRepository("repo-a", []*PackageRecord{rec("foo-2.0")})
	repoB := newRepository("repo-b", []*PackageRecord{rec("foo-2.0")})
	pool := NewPool("noarch", repoA, repoB)

	got := pool.FindBest("foo")
	if got == nil || got.Repository != "repo-a" {
		t.Errorf("FindBest tie = %v, want repo-a's record", got)
	}
}

func TestPoolFindExact(t *testing.T) {
	repo := newRepository("r", []*PackageRecord{rec("foo-2.0_1")})
	pool := NewPool("noarch", repo)

	if got := pool.FindExact("foo-2.0_1"); got == nil {
		t.Error("FindExact(foo-2.0_1) = nil")
	}
	if got := pool.FindExact("foo-2.0"); got != nil {
		t.Errorf("FindExact(foo-2.0) = %v, want nil", got)
	}
}

func TestPoolFindPattern(t *testing.T) {
	repo := newRepository("r", []*PackageRecord{rec("foo-2.0")})
	pool := NewPool("noarch", repo)

	if got := pool.FindPattern("foo>=1.0"); got == nil {
		t.Error("FindPattern(foo>=1.0) = nil")
	}
	if got := pool.FindPattern("foo>=3.0"); got != nil {
		t.Errorf("FindPattern(foo>=3.0) = %v, want nil", got)
	}
}

func TestPoolVirtual(t *testing.T) {
	repo := newRepository("r", []*PackageRecord{
		rec("afoo-1.1", provides("virtualpkg-9999")),
	})
	pool := NewPool("noarch", repo)

	if got := pool.FindVirtual("virtualpkg", false); got == nil || got.Pkgver() != "afoo-1.1" {
		t.Errorf("FindVirtual(virtualpkg) = %v, want afoo-1.1", got)
	}
	if got := pool.FindVirtual("virtualpkg>=9999", true); got == nil || got.Pkgver() != "afoo-1.1" {
		t.Errorf("FindVirtual(virtualpkg>=9999) = %v, want afoo-1.1", got)
	}
	if got := pool.FindVirtual("virtualpkg>=10000", true); got != nil {
		t.Errorf("FindVirtual(virtualpkg>=10000) = %v, want nil", got)
	}
}

// A virtual name advertised by two repositories resolves to the earlier
// one.
func TestPoolVirtualCollisionEarlierWins(t *testing.T) {
	repoA := newRepository("repo-a", []*PackageRecord{
		rec("afoo-1.1", provides("virtualpkg-9999")),
	})
	repoB := newRepository("repo-b", []*PackageRecord{
		rec("bfoo-1.0", provides("virtualpkg-9999")),
	})
	pool := NewPool("noarch", repoA, repoB)

	got := pool.FindVirtual("virtualpkg", false)
	if got == nil || got.Pkgver() != "afoo-1.1" {
		t.Errorf("virtual collision resolved to %v, want afoo-1.1", got)
	}
}

func TestArchFilter(t *testing.T) {
	x86 := rec("foo-1.0")
	x86.Arch = "x86_64"
	noarch := rec("bar-1.0")
	repo := newRepository("r", []*PackageRecord{x86, noarch})

	pool := NewPool("aarch64", repo)
	if got := pool.FindName("foo"); got != nil {
		t.Errorf("arch mismatch not filtered: %v", got)
	}
	if got := pool.FindName("bar"); got == nil {
		t.Error("noarch record filtered out")
	}

	pool = NewPool("x86_64", repo)
	if got := pool.FindName("foo"); got == nil {
		t.Error("matching arch filtered out")
	}
}

func TestEmptyPool(t *testing.T) {
	pool := NewPool("noarch")
	if !pool.Empty() {
		t.Error("empty pool not reported empty")
	}
	if got := pool.FindBest("foo"); got != nil {
		t.Errorf("FindBest on empty pool = %v", got)
	}
}
