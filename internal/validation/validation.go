// Package validation checks user-supplied paths and names before they reach
// the file system: command-line paths, the filename hint of an upload and
// the member names of a bundle.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

const (
	// MaxFilenameLength is the longest accepted file or member name.
	MaxFilenameLength = 255
	// MaxPathLength is the longest accepted path.
	MaxPathLength = 4096
)

// ValidatePath rejects empty or overlong paths and paths holding NUL or
// other control characters. field names the flag or parameter in the error.
func ValidatePath(field, path string) error {
	if path == "" {
		return errors.NewValidation(field, "path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return errors.NewValidation(field, fmt.Sprintf("path longer than %d bytes", MaxPathLength))
	}
	if hasControl(path) {
		return errors.NewValidation(field, "control character not allowed")
	}
	return nil
}

// ValidateFilename accepts a single path element that is safe to create
// anywhere: no separators, no reserved names, no control characters and
// no leading hyphen.
func ValidateFilename(field, name string) error {
	switch {
	case name == "":
		return errors.NewValidation(field, "filename cannot be empty")
	case len(name) > MaxFilenameLength:
		return errors.NewValidation(field, fmt.Sprintf("filename longer than %d bytes", MaxFilenameLength))
	case name == "." || name == "..":
		return errors.NewValidation(field, "reserved name")
	case strings.ContainsAny(name, `/\`):
		return errors.NewValidation(field, "path separator not allowed")
	case hasControl(name):
		return errors.NewValidation(field, "control character not allowed")
	case strings.HasPrefix(name, "-"):
		return errors.NewValidation(field, "filename cannot start with hyphen")
	}
	return nil
}

// SanitizeFilename turns a book or version name into a file name:
// separators become underscores, control characters and leading hyphens
// are dropped and overlong names are cut at a rune boundary. Names with
// nothing usable left give fallback.
func SanitizeFilename(name, fallback string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	name = strings.TrimLeft(name, "-")

	for len(name) > MaxFilenameLength {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	if ValidateFilename("name", name) != nil {
		return fallback
	}
	return name
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
