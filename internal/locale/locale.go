package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Fallback is the locale tried after the requested locale and its base language.
const Fallback = "en"

// Normalize trims a locale code and rewrites underscores to hyphens so that
// "pt_BR" and "pt-BR" compare equal. Case is preserved apart from the
// separator; stored locale keys are compared as-is.
func Normalize(raw string) string {
	return strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
}

// Base returns the language part of a locale code ("es-MX" -> "es").
// Codes x/text cannot parse fall back to splitting on the first separator.
func Base(code string) string {
	normalized := Normalize(code)
	if normalized == "" {
		return ""
	}
	if tag, err := language.Parse(normalized); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			return base.String()
		}
	}
	if idx := strings.IndexByte(normalized, '-'); idx > 0 {
		return strings.ToLower(normalized[:idx])
	}
	return strings.ToLower(normalized)
}

// Pick chooses the best available locale for requested. The chain is exact
// match, base language, Fallback, then the first entry of available. An empty
// result means nothing is available.
func Pick(requested string, available []string) string {
	if len(available) == 0 {
		return ""
	}

	want := Normalize(requested)
	if want != "" {
		if found, ok := lookup(available, want); ok {
			return found
		}
		if base := Base(want); base != "" && !strings.EqualFold(base, want) {
			if found, ok := lookup(available, base); ok {
				return found
			}
		}
	}

	if found, ok := lookup(available, Fallback); ok {
		return found
	}
	return available[0]
}

// lookup matches case-insensitively and returns the stored spelling.
func lookup(available []string, want string) (string, bool) {
	for _, candidate := range available {
		if strings.EqualFold(Normalize(candidate), want) {
			return candidate, true
		}
	}
	return "", false
}

// ParseAcceptLanguage returns the tags of an Accept-Language header ordered
// by preference.
func ParseAcceptLanguage(header string) []string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(trimmed)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, tag.String())
	}
	return out
}

// Negotiate picks the first Accept-Language preference that the website
// supports, comparing base languages as a second pass.
func Negotiate(header string, supported []string) string {
	if len(supported) == 0 {
		return ""
	}
	prefs := ParseAcceptLanguage(header)
	for _, pref := range prefs {
		if found, ok := lookup(supported, Normalize(pref)); ok {
			return found
		}
	}
	for _, pref := range prefs {
		if found, ok := lookup(supported, Base(pref)); ok {
			return found
		}
	}
	return ""
}
