// Package pkgver implements the version algebra used by the package
// manager: splitting canonical "name-version_revision" strings, Dewey-style
// version comparison, and dependency pattern matching.
package pkgver

import (
	"strconv"
	"strings"
)

// Split separates a canonical pkgver into its name and version components.
// The split point is the last '-' that is immediately followed by a digit;
// everything after it (including any "_revision" suffix) is the version.
// ok is false when no such split point exists.
func Split(pv string) (name, version string, ok bool) {
	for i := len(pv) - 2; i >= 0; i-- {
		if pv[i] == '-' && pv[i+1] >= '0' && pv[i+1] <= '9' {
			return pv[:i], pv[i+1:], true
		}
	}
	return "", "", false
}

// Name returns the name component of pv, or ok false if pv is not a
// well-formed pkgver.
func Name(pv string) (string, bool) {
	n, _, ok := Split(pv)
	return n, ok
}

// Version returns the version component of pv (revision included), or ok
// false if pv is not a well-formed pkgver.
func Version(pv string) (string, bool) {
	_, v, ok := Split(pv)
	return v, ok
}

// Revision returns the revision of a version string: the substring after
// the rightmost '_' if and only if it is all digits. ok is false when the
// version carries no revision.
func Revision(version string) (uint64, bool) {
	i := strings.LastIndexByte(version, '_')
	if i < 0 || i == len(version)-1 {
		return 0, false
	}
	rev, err := strconv.ParseUint(version[i+1:], 10, 32)
	if err != nil {
		return 0, false
	}
	return rev, true
}

// baseVersion strips a trailing "_revision" suffix, if present.
func baseVersion(version string) string {
	if _, ok := Revision(version); ok {
		return version[:strings.LastIndexByte(version, '_')]
	}
	return version
}

// token is one element of a Dewey sequence: either a numeric run compared
// by integer value or a non-numeric run compared lexicographically.
type token struct {
	num   uint64
	str   string
	isNum bool
}

func tokenize(v string) []token {
	var toks []token
	i := 0
	for i < len(v) {
		c := v[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(v) && v[j] >= '0' && v[j] <= '9' {
				j++
			}
			// Numeric runs longer than any practical component are
			// clamped rather than rejected.
			n, err := strconv.ParseUint(v[i:j], 10, 64)
			if err != nil {
				n = ^uint64(0)
			}
			toks = append(toks, token{num: n, isNum: true})
			i = j
		case isAlpha(c):
			j := i
			for j < len(v) && isAlpha(v[j]) {
				j++
			}
			toks = append(toks, token{str: v[i:j]})
			i = j
		default:
			// separator
			i++
		}
	}
	return toks
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Cmp compares two version strings, revision included with strictly lower
// precedence than the base version. It returns -1, 0 or 1.
func Cmp(a, b string) int {
	if c := cmpDewey(baseVersion(a), baseVersion(b)); c != 0 {
		return c
	}
	ra, _ := Revision(a)
	rb, _ := Revision(b)
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

// CmpPkgver compares the version components of two full pkgvers. Names are
// not compared; malformed pkgvers rank lowest.
func CmpPkgver(a, b string) int {
	va, oka := Version(a)
	vb, okb := Version(b)
	if !oka || !okb {
		switch {
		case oka:
			return 1
		case okb:
			return -1
		}
		return 0
	}
	return Cmp(va, vb)
}

func cmpDewey(a, b string) int {
	ta, tb := tokenize(a), tokenize(b)
	n := len(ta)
	if len(tb) > n {
		n = len(tb)
	}
	for i := 0; i < n; i++ {
		// The shorter sequence continues with numeric zeros.
		x, y := token{isNum: true}, token{isNum: true}
		if i < len(ta) {
			x = ta[i]
		}
		if i < len(tb) {
			y = tb[i]
		}
		switch {
		case x.isNum && y.isNum:
			if x.num != y.num {
				if x.num < y.num {
					return -1
				}
				return 1
			}
		case x.isNum:
			// numeric ranks higher than non-numeric
			return 1
		case y.isNum:
			return -1
		default:
			if x.str != y.str {
				if x.str < y.str {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}
