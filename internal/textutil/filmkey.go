package textutil

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	folder         = cases.Fold()
	titleCaser     = cases.Title(language.Und)
	titleYearRegex = regexp.MustCompile(`^(.*\S)\s*\((\d{4})\)\s*$`)
	slugPattern    = regexp.MustCompile(`[^a-z0-9-]+`)
)

// NormalizeTitle folds a title into a comparison form: NFKC, case folded,
// with runs of punctuation and whitespace collapsed into single spaces.
func NormalizeTitle(title string) string {
	folded := folder.String(norm.NFKC.String(title))
	var b strings.Builder
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		if r == '\'' || r == '’' {
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// NormalizeSlug lower-cases a site slug and strips anything outside [a-z0-9-].
func NormalizeSlug(slug string) string {
	slug = strings.Trim(strings.ToLower(strings.TrimSpace(slug)), "/")
	if idx := strings.LastIndex(slug, "/"); idx >= 0 {
		slug = slug[idx+1:]
	}
	return strings.Trim(slugPattern.ReplaceAllString(slug, "-"), "-")
}

// FilmKey returns the stable identity of a film. The slug wins when present;
// otherwise the key is the normalized title joined with the release year.
// An empty result means the film has no usable identity.
func FilmKey(slug, title string, year int) string {
	if s := NormalizeSlug(slug); s != "" {
		return s
	}
	normalized := NormalizeTitle(title)
	if normalized == "" {
		return ""
	}
	if year <= 0 {
		return normalized + "|"
	}
	return normalized + "|" + strconv.Itoa(year)
}

// SplitTitleYear splits "Title (1999)" into its title and year. Names without
// a trailing year are returned unchanged with year 0.
func SplitTitleYear(name string) (string, int) {
	name = strings.TrimSpace(name)
	m := titleYearRegex.FindStringSubmatch(name)
	if m == nil {
		return name, 0
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return name, 0
	}
	return strings.TrimSpace(m[1]), year
}

// TitleCase capitalizes each word, used when a profile has no display name.
func TitleCase(value string) string {
	value = strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(value))
	return titleCaser.String(value)
}
