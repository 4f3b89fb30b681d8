// Package security validates the selector values that become store path
// components and sanitizes values for logging.
package security

import (
	"strings"
	"unicode"
)

// Name validation errors.
var (
	ErrNameEmpty        = &NameError{Reason: "name is empty"}
	ErrNameNullByte     = &NameError{Reason: "name contains null byte"}
	ErrNameSeparator    = &NameError{Reason: "name contains a path separator"}
	ErrNameTraversal    = &NameError{Reason: "name refers to a parent or current directory"}
	ErrNameTooLong      = &NameError{Reason: "name exceeds maximum length"}
	ErrNameInvalidChars = &NameError{Reason: "name contains control characters"}
	ErrNameReserved     = &NameError{Reason: "name is a reserved device name"}
)

// NameError represents a name validation error.
type NameError struct {
	Reason string
	Name   string
}

func (e *NameError) Error() string {
	if e.Name != "" {
		return e.Reason + ": " + e.Name
	}
	return e.Reason
}

// Is matches name errors by reason, so errors.Is(err, ErrNameTraversal)
// holds for the error of any offending name.
func (e *NameError) Is(target error) bool {
	t, ok := target.(*NameError)
	return ok && t.Reason == e.Reason
}

// MaxNameLength is the maximum length of one path component.
const MaxNameLength = 255

// reservedNames are Windows device names.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// ValidateName checks that name can be used as a single component of a
// store path: a dataset, registration identity, case id or measure.
func ValidateName(name string) error {
	if name == "" {
		return ErrNameEmpty
	}
	if strings.Contains(name, "\x00") {
		return &NameError{Reason: ErrNameNullByte.Reason, Name: "[contains null byte]"}
	}
	if len(name) > MaxNameLength {
		return &NameError{Reason: ErrNameTooLong.Reason, Name: name[:50] + "..."}
	}
	if strings.ContainsAny(name, `/\`) {
		return &NameError{Reason: ErrNameSeparator.Reason, Name: SanitizeForLog(name)}
	}
	if name == "." || name == ".." {
		return &NameError{Reason: ErrNameTraversal.Reason, Name: name}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return &NameError{Reason: ErrNameInvalidChars.Reason, Name: SanitizeForLog(name)}
		}
	}

	base := strings.ToLower(name)
	if idx := strings.Index(base, "."); idx > 0 {
		base = base[:idx]
	}
	if reservedNames[base] {
		return &NameError{Reason: ErrNameReserved.Reason, Name: name}
	}
	return nil
}

// SanitizeForLog escapes line breaks, drops other control characters and
// truncates s to 200 characters.
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, 200)
}

// SanitizeForLogWithLength is SanitizeForLog with a custom max length.
func SanitizeForLogWithLength(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(min(len(s), maxLen+10))

	count := 0
	for _, r := range s {
		if count >= maxLen {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString("\\n")
			count += 2
		case '\r':
			b.WriteString("\\r")
			count += 2
		case '\t':
			b.WriteString("\\t")
			count += 2
		default:
			if !unicode.IsControl(r) || r == ' ' {
				b.WriteRune(r)
				count++
			}
		}
	}

	return b.String()
}
