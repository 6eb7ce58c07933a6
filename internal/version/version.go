package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a version string does not match the
// release version grammar.
var ErrInvalidFormat = errors.New("invalid version format")

// versionPattern matches major.minor.micro with an optional alpha/beta
// suffix and an optional +revision build tag. A leading "v" is stripped
// before matching.
var versionPattern = regexp.MustCompile(
	`^(?P<major>\d+)\.(?P<minor>\d+)\.(?P<micro>\d+)` +
		`(?P<prerelease>(b|(beta)|a|(alpha))(\d+)?)?` +
		`(?P<revision>\+[A-Za-z0-9]+)?$`)

// Kind identifies the pre-release stage of a version. Alpha sorts before
// Beta, and both sort before Release.
type Kind int

const (
	Alpha Kind = iota
	Beta
	Release
)

// suffix returns the letter used in the rendered form ("a" or "b"),
// empty for a final release.
func (k Kind) suffix() string {
	switch k {
	case Alpha:
		return "a"
	case Beta:
		return "b"
	}
	return ""
}

// Version is an immutable release version. Construct one with Parse or New;
// values are compared structurally, never by rendered string.
type Version struct {
	Major      int
	Minor      int
	Micro      int
	Kind       Kind
	Prerelease int    // pre-release sequence number, 0 when the suffix had none
	Revision   string // opaque build tag from a +revision suffix, empty when absent
}

// New constructs a version directly from its components. Callers guarantee
// the components are non-negative; no further validation is done.
func New(major, minor, micro int, kind Kind, prerelease int) Version {
	return Version{
		Major:      major,
		Minor:      minor,
		Micro:      micro,
		Kind:       kind,
		Prerelease: prerelease,
	}
}

// Parse parses a version string of the form
// major.minor.micro[(a|alpha|b|beta)[N]][+revision], with an optional
// leading "v". It returns an error wrapping ErrInvalidFormat when the
// string does not match.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimPrefix(s, "v")

	match := versionPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	groups := make(map[string]string)
	for i, name := range versionPattern.SubexpNames() {
		if name != "" {
			groups[name] = match[i]
		}
	}

	v := Version{Kind: Release}
	v.Major, _ = strconv.Atoi(groups["major"])
	v.Minor, _ = strconv.Atoi(groups["minor"])
	v.Micro, _ = strconv.Atoi(groups["micro"])

	if pre := groups["prerelease"]; pre != "" {
		var number string
		if strings.HasPrefix(pre, "b") {
			v.Kind = Beta
			number = strings.TrimPrefix(strings.TrimPrefix(pre, "beta"), "b")
		} else {
			v.Kind = Alpha
			number = strings.TrimPrefix(strings.TrimPrefix(pre, "alpha"), "a")
		}
		if number != "" {
			v.Prerelease, _ = strconv.Atoi(number)
		}
	}

	if rev := groups["revision"]; rev != "" {
		v.Revision = strings.TrimPrefix(rev, "+")
	}

	return v, nil
}

// String renders the canonical form: {major}.{minor}.{micro} followed by
// "a{N}" or "b{N}" for pre-releases and "+{revision}" when a build tag is
// present. Parsing the rendered string yields an equal Version.
func (v Version) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d.%d.%d", v.Major, v.Minor, v.Micro)
	if v.Kind != Release {
		fmt.Fprintf(&sb, "%s%d", v.Kind.suffix(), v.Prerelease)
	}
	if v.Revision != "" {
		fmt.Fprintf(&sb, "+%s", v.Revision)
	}
	return sb.String()
}

// Tag returns the git tag name for the version ("v" + canonical form).
func (v Version) Tag() string {
	return "v" + v.String()
}

// Compare returns -1, 0 or 1 ordering v against other. The numeric triple
// and pre-release stage are compared first, with alpha < beta < release.
// At an equal five-tuple, a version without a revision tag is newer than
// one with a revision tag; two distinct revisions compare as strings.
func (v Version) Compare(other Version) int {
	if c := compareInts(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareInts(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareInts(v.Micro, other.Micro); c != 0 {
		return c
	}
	if c := compareInts(int(v.Kind), int(other.Kind)); c != 0 {
		return c
	}
	if c := compareInts(v.Prerelease, other.Prerelease); c != 0 {
		return c
	}
	return compareRevisions(v.Revision, other.Revision)
}

// Equal reports whether v and other are the same version, revision included.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// NewerThan reports whether v orders strictly after other.
func (v Version) NewerThan(other Version) bool {
	return v.Compare(other) > 0
}

// OlderThan reports whether v orders strictly before other.
func (v Version) OlderThan(other Version) bool {
	return v.Compare(other) < 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareRevisions treats an absent revision as newer than a present one.
func compareRevisions(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	return strings.Compare(a, b)
}
