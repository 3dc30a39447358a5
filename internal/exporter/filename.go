package exporter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MaxNameRunes bounds a sanitized name component
const MaxNameRunes = 50

var (
	unsafeChars = strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
		`\`, "_", "|", "_", "?", "_", "*", "_",
	)
	whitespaceRun = regexp.MustCompile(`[\s\v\x{85}\p{Z}\x{FEFF}]+`)
)

// Sanitize makes name safe for use inside a file name: reserved characters
// and whitespace runs become underscores, and the result is cut to
// MaxNameRunes runes
func Sanitize(name string) string {
	s := unsafeChars.Replace(name)
	s = whitespaceRun.ReplaceAllString(s, "_")
	if r := []rune(s); len(r) > MaxNameRunes {
		s = string(r[:MaxNameRunes])
	}
	return s
}

// Stamp formats t as MM-DD-YYYY_HHMMSS_mmm
func Stamp(t time.Time) string {
	return t.Format("01-02-2006_150405") + fmt.Sprintf("_%03d", t.Nanosecond()/int(time.Millisecond))
}

// DocumentFilename names a rendered message
func DocumentFilename(prefix, subject, ext string, t time.Time) string {
	return fmt.Sprintf("%s-email-%s-%s.%s", prefix, Sanitize(subject), Stamp(t), ext)
}

// AttachmentFilename keeps the original extension; names without one get .bin
func AttachmentFilename(prefix, name string, t time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	ext = Sanitize(strings.TrimPrefix(ext, "."))
	if ext == "" || base == "" {
		base, ext = name, "bin"
	}
	return fmt.Sprintf("%s-%s-%s.%s", prefix, Sanitize(base), Stamp(t), ext)
}

// PlaceholderFilename names the stub written for an unresolvable attachment
func PlaceholderFilename(prefix, name string, t time.Time) string {
	return fmt.Sprintf("%s-attachment-%s-%s.txt", prefix, Sanitize(name), Stamp(t))
}

// Numbered inserts -n before the extension of name
func Numbered(name string, n int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
