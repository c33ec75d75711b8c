package download

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// characters that are illegal on at least one common filesystem
var unsafeChars = regexp.MustCompile(`[<>:"|?*\\/]`)

// runs of whitespace and underscores collapse to a single underscore
var fillerChars = regexp.MustCompile(`[_\s]+`)

// maximum stem length in runes, leaving headroom for extension and counter
// suffix
const maxStemLength = 200

// Sanitize turns an arbitrary title into a filesystem-safe filename stem.
// The result is deterministic and may be empty if the input contains nothing
// usable.
func Sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = fillerChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, " ._")
	if utf8.RuneCountInString(name) > maxStemLength {
		// cut on a rune boundary, the cut may expose new trailing filler
		name = string([]rune(name)[:maxStemLength])
		name = strings.Trim(name, " ._")
	}
	return name
}

// Stem derives the filename stem for an attachment: the sanitized item title,
// falling back to the sanitized original filename (without extension), then
// to the attachment key.
func Stem(title, origFilename, ext, key string) string {
	if stem := Sanitize(title); stem != "" {
		return stem
	}
	if stem := Sanitize(strings.TrimSuffix(origFilename, ext)); stem != "" {
		return stem
	}
	return "attachment_" + key
}

// NameSet tracks filenames handed out within one run and resolves collisions
// by appending a counter before the extension. The first caller gets the bare
// name, duplicates get _1, _2 and so on.
type NameSet struct {
	used map[string]bool
}

func NewNameSet() *NameSet {
	return &NameSet{used: map[string]bool{}}
}

func (ns *NameSet) Unique(stem, ext string) string {
	name := stem + ext
	if !ns.used[name] {
		ns.used[name] = true
		return name
	}
	for counter := 1; ; counter++ {
		name = fmt.Sprintf("%s_%d%s", stem, counter, ext)
		if !ns.used[name] {
			ns.used[name] = true
			return name
		}
	}
}
