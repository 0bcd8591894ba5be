// pkg/urlpath/urlpath.go

// Package urlpath canonicalizes the user-supplied base path into the
// location prefixes used by every downstream component.
package urlpath

import "strings"

// NormalizeBasePath canonicalizes a raw base path: result is either empty
// (root deployment) or starts with "/" and never ends with "/". Total and
// idempotent for any input.
func NormalizeBasePath(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// TerminalLocation is the nginx match path for the terminal backend.
func TerminalLocation(basePath string) string {
	return NormalizeBasePath(basePath) + "/"
}

// EditorLocation is the nginx match path for the editor backend.
func EditorLocation(basePath string) string {
	return NormalizeBasePath(basePath) + "/code/"
}
