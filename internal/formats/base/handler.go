// Package base provides common functionality for format handlers: detection
// by extension and content markers, and decoding of loosely typed values.
package base

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// sniffLen bounds how much of a document content markers are searched in.
const sniffLen = 4096

// DetectConfig contains configuration for format detection.
type DetectConfig struct {
	// Extensions is a list of valid file extensions (e.g., ".json", ".xml")
	Extensions []string
	// ContentMarkers are strings of which at least one must appear near the
	// start of the document
	ContentMarkers []string
	// RequireExtension rejects documents whose extension does not match even
	// when a content marker is present
	RequireExtension bool
	// CustomValidator is an optional final check on the data
	CustomValidator func(path string, data []byte) bool
}

// Detect reports whether a document matches the configuration. With no
// content markers the extension decides. With markers, a marker match is
// enough unless RequireExtension is set.
func (c DetectConfig) Detect(path string, data []byte) bool {
	extMatch := HasExtension(path, c.Extensions...)
	if c.RequireExtension && !extMatch {
		return false
	}

	matched := extMatch
	if len(c.ContentMarkers) > 0 {
		head := Head(data)
		markerMatch := false
		for _, m := range c.ContentMarkers {
			if bytes.Contains(head, []byte(m)) {
				markerMatch = true
				break
			}
		}
		matched = markerMatch
	}
	if !matched {
		return false
	}
	if c.CustomValidator != nil {
		return c.CustomValidator(path, data)
	}
	return true
}

// HasExtension reports whether path ends in one of exts, ignoring case.
func HasExtension(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Head returns the start of data without a UTF-8 byte order mark or leading
// whitespace.
func Head(data []byte) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return data
}

// IntValue decodes a number that may arrive as a JSON number or as a
// numeric string, such as "chapter_number": "3".
func IntValue(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing number")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return Atoi(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return Atoi(n.String())
}

// Atoi parses a chapter or verse number written as text.
func Atoi(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return n, nil
}

// OneOrMany decodes a value that documents write either as a single object
// or as an array of objects. Null yields an empty slice.
func OneOrMany[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, err
	}
	return []T{item}, nil
}

// UnsupportedOperationError returns a standard error for unsupported operations.
func UnsupportedOperationError(operation, format string) error {
	return errors.NewUnsupported(operation, format+" format does not support it")
}
