// Package identity encodes and decodes registration identities.
//
// A registration identity names one registration configuration by toolkit,
// optional command and optional version, written toolkit[-command][-version].
// A trailing segment that matches the version grammar is always read as the
// version, even where it could also be a command name.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
)

// Separator joins the parts of a composite identity.
const Separator = "-"

// Affine is the identity of the initial affine alignment. It has no
// parameter sets and its results are stored without a cfgid directory.
const Affine = "affine"

// versionPattern is the version grammar: revision hash, dotted numeric
// version with at most three components, or a symbolic tag.
const versionPattern = `rev_[0-9a-f]+|[0-9]+(?:\.[0-9]+)?(?:\.[0-9]+)?|dev|develop|master|latest`

var (
	versionSuffixRegex = regexp.MustCompile(`^(.+)` + Separator + `(` + versionPattern + `)$`)
	versionRegex       = regexp.MustCompile(`^(?:` + versionPattern + `)$`)
)

// Identity is a decoded registration identity. Empty Command or Version
// means the part is absent.
type Identity struct {
	Toolkit string `json:"toolkit"`
	Command string `json:"command,omitempty"`
	Version string `json:"version,omitempty"`
}

// String returns the canonical composite form.
func (id Identity) String() string {
	return Compose(id.Toolkit, id.Command, id.Version)
}

// Base returns the identity without its version.
func (id Identity) Base() string {
	return Compose(id.Toolkit, id.Command, "")
}

// IsVersion reports whether s matches the version grammar.
func IsVersion(s string) bool {
	return versionRegex.MatchString(s)
}

// SplitVersion splits a trailing version off id. When id carries no
// version, it is returned whole with an empty version.
func SplitVersion(id string) (base, version string) {
	m := versionSuffixRegex.FindStringSubmatch(id)
	if m == nil {
		return id, ""
	}
	return m[1], m[2]
}

// Split decodes id into toolkit, command and version. The version is split
// off first, the remainder is split at the first separator.
func Split(id string) (toolkit, command, version string) {
	base, version := SplitVersion(id)
	toolkit, command, _ = strings.Cut(base, Separator)
	return toolkit, command, version
}

// Compose joins the non-empty parts with the separator.
func Compose(toolkit, command, version string) string {
	id := toolkit
	if command != "" {
		id += Separator + command
	}
	if version != "" {
		id += Separator + version
	}
	return id
}

// Parse decodes id and rejects identities that cannot name a results
// directory: empty segments and path separators.
func Parse(id string) (Identity, error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return Identity{}, apperrors.MalformedIdentityError(id)
	}
	toolkit, command, version := Split(id)
	if toolkit == "" {
		return Identity{}, apperrors.MalformedIdentityError(id)
	}
	base, _ := SplitVersion(id)
	if strings.Contains(base, Separator) && command == "" {
		return Identity{}, apperrors.MalformedIdentityError(id)
	}
	return Identity{Toolkit: toolkit, Command: command, Version: version}, nil
}

// MustParse is like Parse but panics on malformed input. For tests and
// constant identities only.
func MustParse(id string) Identity {
	parsed, err := Parse(id)
	if err != nil {
		panic(err)
	}
	return parsed
}

// FormatCfgID renders a parameter set id as used in result paths.
func FormatCfgID(cfgid int) string {
	return fmt.Sprintf("%04d", cfgid)
}

// ParseCfgID parses a decimal cfgid, zero padded or not. Parameter set ids
// start at 1.
func ParseCfgID(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid cfgid %q", s)
	}
	return n, nil
}
