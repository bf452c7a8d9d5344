package file

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// shortIDAlphabet is the URL-safe alphabet generated identifiers draw from.
// Its 64 characters divide 256 evenly, so indexing by a random byte carries
// no modulo bias.
const shortIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

const shortIDLength = 8

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	disallowedRune = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// NewShortID returns a random 8-character URL-safe identifier. Collisions are
// statistically rare but not impossible; the registry's unique constraint is
// the authoritative guard and a collision surfaces as ErrDuplicate at commit
// time.
func NewShortID() (string, error) {
	buf := make([]byte, shortIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = shortIDAlphabet[int(b)%len(shortIDAlphabet)]
	}
	return string(buf), nil
}

// SanitizeName normalizes a user-supplied custom name: surrounding whitespace
// is trimmed, inner whitespace runs collapse to a single hyphen and every
// character outside [A-Za-z0-9_-] is dropped. An empty result means the name
// has no usable characters. Sanitizing an already-sanitized name is a no-op.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = whitespaceRun.ReplaceAllString(name, "-")
	return disallowedRune.ReplaceAllString(name, "")
}
