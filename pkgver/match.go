package pkgver

import (
	"path"
	"strings"
)

// MatchResult is the tri-valued outcome of matching a pkgver against a
// dependency pattern.
type MatchResult int

const (
	// NoMatch means the pattern is well formed but does not match.
	NoMatch MatchResult = iota
	// Matches means the pattern matches the pkgver.
	Matches
	// Malformed means the pattern or the pkgver could not be parsed.
	Malformed
)

func (r MatchResult) String() string {
	switch r {
	case NoMatch:
		return "no match"
	case Matches:
		return "matches"
	}
	return "malformed"
}

var relationalOps = []string{">=", "<=", "==", ">", "<"}

// splitRelational breaks a relational pattern "name OP version" apart.
func splitRelational(pattern string) (name, op, version string, ok bool) {
	i := strings.IndexAny(pattern, "<>=")
	if i <= 0 {
		return "", "", "", false
	}
	name = pattern[:i]
	rest := pattern[i:]
	for _, candidate := range relationalOps {
		if strings.HasPrefix(rest, candidate) {
			op = candidate
			version = rest[len(candidate):]
			break
		}
	}
	if op == "" || version == "" {
		return "", "", "", false
	}
	return name, op, version, true
}

// IsPattern reports whether s is a dependency pattern rather than a plain
// name or full pkgver: it carries a relational operator or glob metacharacters.
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "><=*?[")
}

// Match reports whether pkgver satisfies pattern. Three disjoint pattern
// forms are supported: relational ("name>=version"), glob (matched against
// the full pkgver), and exact name (matches any version of that name).
func Match(pv, pattern string) MatchResult {
	if pattern == "" || pv == "" {
		return Malformed
	}
	if strings.ContainsAny(pattern, "<>=") {
		pname, op, pver, ok := splitRelational(pattern)
		if !ok {
			return Malformed
		}
		name, version, ok := Split(pv)
		if !ok {
			return Malformed
		}
		if name != pname {
			return NoMatch
		}
		c := Cmp(version, pver)
		var sat bool
		switch op {
		case ">=":
			sat = c >= 0
		case "<=":
			sat = c <= 0
		case ">":
			sat = c > 0
		case "<":
			sat = c < 0
		case "==":
			sat = c == 0
		}
		if sat {
			return Matches
		}
		return NoMatch
	}
	if strings.ContainsAny(pattern, "*?[") {
		ok, err := path.Match(pattern, pv)
		if err != nil {
			return Malformed
		}
		if ok {
			return Matches
		}
		return NoMatch
	}
	// Exact name: matches any version.
	name, _, ok := Split(pv)
	if !ok {
		return Malformed
	}
	if name == pattern {
		return Matches
	}
	return NoMatch
}

// PatternName extracts the package name a pattern constrains: the name
// component of a relational pattern, the longest literal prefix up to a
// glob metacharacter trimmed at the version separator, or the pattern
// itself when it is a plain name.
func PatternName(pattern string) string {
	if strings.ContainsAny(pattern, "<>=") {
		if name, _, _, ok := splitRelational(pattern); ok {
			return name
		}
		return ""
	}
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		lit := pattern[:i]
		if j := strings.LastIndexByte(lit, '-'); j > 0 {
			return lit[:j]
		}
		return strings.TrimSuffix(lit, "-")
	}
	return pattern
}
