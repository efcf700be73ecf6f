package synth

import (
	"go/token"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultPackage is the package clause of generated units.
const DefaultPackage = "gen"

// RandomName returns prefix followed by a fresh UUID with the dashes
// removed. Names are one-shot and never reused.
func RandomName(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidIdent reports whether name is a Go identifier and not a keyword.
func ValidIdent(name string) bool {
	return token.IsIdentifier(name)
}

// IsExported reports whether name starts with an upper-case letter.
func IsExported(name string) bool {
	ch, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(ch)
}

// PackageName guesses the package name of an import path from its last
// element, skipping a major version suffix.
// e.g., "encoding/json" → "json", "github.com/x/y/v2" → "y",
// "gopkg.in/yaml.v3" → "yaml", "github.com/google/go-cmp" → "gocmp"
func PackageName(importPath string) string {
	base := path.Base(importPath)
	if isMajorVersion(base) {
		base = path.Base(path.Dir(importPath))
	}
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}

	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	name := b.String()
	if name == "" || !ValidIdent(name) {
		name = "pkg" + name
	}
	return name
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
