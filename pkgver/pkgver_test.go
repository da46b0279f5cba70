package pkgver

import "testing"

func TestSplit(t *testing.T) {
	cases := []struct {
		in      string
		name    string
		version string
		ok      bool
	}{
		{"foo-2.0", "foo", "2.0", true},
		{"foo-2.0_1", "foo", "2.0_1", true},
		{"gtk+-2.24.5", "gtk+", "2.24.5", true},
		{"python-2.7_1", "python", "2.7_1", true},
		{"xorg-server-1.10", "xorg-server", "1.10", true},
		{"font-misc-misc-1.1.0", "font-misc-misc", "1.1.0", true},
		{"foo-bar", "", "", false},
		{"foo", "", "", false},
		{"", "", "", false},
	}
	for _, c := range cases {
		name, version, ok := Split(c.in)
		if ok != c.ok || name != c.name || version != c.version {
			t.Errorf("Split(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.in, name, version, ok, c.name, c.version, c.ok)
		}
	}
}

func TestRevision(t *testing.T) {
	cases := []struct {
		in  string
		rev uint64
		ok  bool
	}{
		{"2.0_1", 1, true},
		{"2.0_10", 10, true},
		{"2.0", 0, false},
		{"2.0_rc1", 0, false},
		{"2.0_", 0, false},
	}
	for _, c := range cases {
		rev, ok := Revision(c.in)
		if ok != c.ok || rev != c.rev {
			t.Errorf("Revision(%q) = (%d, %v), want (%d, %v)", c.in, rev, ok, c.rev, c.ok)
		}
	}
}

func TestCmp(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.0.0", 0}, // trailing zeros
		{"1.0", "2.0", -1},
		{"2.0", "1.9.9", 1},
		{"1.10", "1.9", 1}, // numeric, not lexicographic
		{"1.0a", "1.0", -1},
		{"1.0a", "1.0b", -1},
		{"1.0_1", "1.0", 1},  // revision tie-break
		{"1.0_2", "1.0_1", 1},
		{"1.0_1", "1.0.0_1", 0},
		{"9999", "1.0", 1},
	}
	for _, c := range cases {
		if got := Cmp(c.a, c.b); got != c.want {
			t.Errorf("Cmp(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
		if got := Cmp(c.b, c.a); got != -c.want {
			t.Errorf("Cmp(%q, %q) = %d, want %d (antisymmetry)", c.b, c.a, got, -c.want)
		}
	}
}

// Cmp must be a total order: antisymmetric, transitive, reflexive.
func TestCmpTotalOrder(t *testing.T) {
	versions := []string{"0.9", "1.0", "1.0.0", "1.0_1", "1.0a", "1.1", "2.0", "2.0_3", "10.0"}
	for _, a := range versions {
		if Cmp(a, a) != 0 {
			t.Errorf("Cmp(%q, %q) != 0", a, a)
		}
		for _, b := range versions {
			if Cmp(a, b) != -Cmp(b, a) {
				t.Errorf("antisymmetry violated for (%q, %q)", a, b)
			}
			for _, c := range versions {
				if Cmp(a, b) <= 0 && Cmp(b, c) <= 0 && Cmp(a, c) > 0 {
					t.Errorf("transitivity violated for (%q, %q, %q)", a, b, c)
				}
			}
		}
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pv      string
		pattern string
		want    MatchResult
	}{
		// exact name
		{"foo-2.0", "foo", Matches},
		{"foo-2.0", "bar", NoMatch},
		{"afoo-1.1", "foo", NoMatch},
		// relational
		{"foo-2.0", "foo>=2.0", Matches},
		{"foo-2.0", "foo>=1.0", Matches},
		{"foo-2.0", "foo>2.0", NoMatch},
		{"foo-2.0", "foo<=2.0", Matches},
		{"foo-2.0", "foo<2.0", NoMatch},
		{"foo-2.0", "foo==2.0", Matches},
		{"foo-2.0", "foo==2.0.0", Matches},
		{"foo-2.0_1", "foo>=2.0", Matches},
		{"foo-2.0", "bar>=1.0", NoMatch},
		{"virtualpkg-9999", "virtualpkg>=9999", Matches},
		// glob
		{"foo-2.0", "foo-*", Matches},
		{"foo-2.0", "foo-2.?", Matches},
		{"foo-2.0", "bar-*", NoMatch},
		// malformed
		{"foo-2.0", "", Malformed},
		{"foo-2.0", "foo>=", Malformed},
		{"notapkgver", "foo", Malformed},
		{"foo-2.0", "foo-[", Malformed},
	}
	for _, c := range cases {
		if got := Match(c.pv, c.pattern); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pv, c.pattern, got, c.want)
		}
		// Property: matching is pure.
		if got := Match(c.pv, c.pattern); got != c.want {
			t.Errorf("Match(%q, %q) unstable", c.pv, c.pattern)
		}
	}
}

func TestIsPattern(t *testing.T) {
	for s, want := range map[string]bool{
		"foo":        false,
		"foo-2.0":    false,
		"foo>=2.0":   true,
		"foo<1":      true,
		"foo-*":      true,
		"foo-2.?":    true,
	} {
		if got := IsPattern(s); got != want {
			t.Errorf("IsPattern(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestPatternName(t *testing.T) {
	for s, want := range map[string]string{
		"foo":      "foo",
		"foo>=2.0": "foo",
		"foo==1":   "foo",
		"foo-*":    "foo",
	} {
		if got := PatternName(s); got != want {
			t.Errorf("PatternName(%q) = %q, want %q", s, got, want)
		}
	}
}
