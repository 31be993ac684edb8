// Package suggest derives candidate mark names from source context.
package suggest

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	declRe  = regexp.MustCompile(`\b(?:func|function|def|class|struct|interface|type|fn|impl|enum|trait|module|local|const|let|var)\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`)
	identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]{2,}`)
)

// keywords are never useful as names on their own.
var keywords = map[string]struct{}{
	"if": {}, "else": {}, "for": {}, "while": {}, "return": {}, "import": {},
	"package": {}, "from": {}, "end": {}, "then": {}, "true": {}, "false": {},
	"nil": {}, "null": {}, "self": {}, "this": {}, "public": {}, "private": {},
	"static": {}, "async": {}, "await": {}, "export": {}, "default": {},
}

// Suggester implements the naming collaborator consumed by the registry.
type Suggester struct{}

// Suggest returns a candidate name for a mark at line of file whose source
// text is text. The result is not guaranteed unique or valid; the registry
// sanitizes and de-duplicates it.
func (Suggester) Suggest(file string, line int, text string, _ []string) string {
	if name := FromText(text); name != "" {
		return name
	}
	return Fallback(file, line)
}

// FromText picks the declared identifier on the line, or the first
// non-keyword identifier.
func FromText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if m := declRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, id := range identRe.FindAllString(text, -1) {
		if _, kw := keywords[strings.ToLower(id)]; kw {
			continue
		}
		return id
	}
	return ""
}

// Fallback returns <file-stem>_<line>.
func Fallback(file string, line int) string {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "mark"
	}
	return stem + "_" + strconv.Itoa(line)
}
