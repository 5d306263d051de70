// Package i18n stores translatable text as locale-keyed maps and picks the
// best translation for a request.
package i18n

import (
	"net/http"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the visitor's language preference.
	LangCookieName = "lang"
)

// Text holds one string per locale tag, e.g. {"en": "Ethiopia", "fr": "Éthiopie"}.
// It is stored as a jsonb column.
type Text map[string]string

// Get returns the translation for lang using the fallback locale.
func (t Text) Get(lang, fallback string) string {
	return GetTranslation(t, lang, fallback)
}

// GetTranslation picks a translation: the exact tag, then its base language
// (pt-BR → pt), then fallback, then the first non-empty value by tag order.
// Empty text yields "".
func GetTranslation(text Text, lang, fallback string) string {
	if len(text) == 0 {
		return ""
	}
	lang = strings.TrimSpace(lang)
	if v := text[lang]; v != "" {
		return v
	}
	if base, _, ok := strings.Cut(lang, "-"); ok {
		if v := text[base]; v != "" {
			return v
		}
	}
	if v := text[fallback]; v != "" {
		return v
	}

	keys := make([]string, 0, len(text))
	for k, v := range text {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	slices.Sort(keys)
	return text[keys[0]]
}

// Localizer negotiates a supported locale for incoming requests.
type Localizer struct {
	def       string
	supported []string
	matcher   language.Matcher
}

// NewLocalizer builds a Localizer. The default locale is always supported.
func NewLocalizer(defaultLocale string, supported []string) *Localizer {
	defTag, err := language.Parse(defaultLocale)
	if err != nil {
		defTag = language.English
	}

	names := []string{defTag.String()}
	tags := []language.Tag{defTag}
	for _, s := range supported {
		tag, err := language.Parse(strings.TrimSpace(s))
		if err != nil || slices.Contains(names, tag.String()) {
			continue
		}
		names = append(names, tag.String())
		tags = append(tags, tag)
	}

	return &Localizer{
		def:       defTag.String(),
		supported: names,
		matcher:   language.NewMatcher(tags),
	}
}

// Default returns the default locale.
func (l *Localizer) Default() string {
	return l.def
}

// Supported returns the supported locales, default first.
func (l *Localizer) Supported() []string {
	return slices.Clone(l.supported)
}

// Match returns the supported locale closest to value, or the default when
// value is empty, unparsable or unrelated to every supported locale.
func (l *Localizer) Match(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return l.def, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return l.def, false
	}
	return l.match(tag)
}

func (l *Localizer) match(tags ...language.Tag) (string, bool) {
	_, idx, conf := l.matcher.Match(tags...)
	if conf == language.No {
		return l.def, false
	}
	return l.supported[idx], true
}

// ResolveRequest picks the locale for r from the lang query parameter, the
// lang cookie, then Accept-Language, falling back to the default.
func (l *Localizer) ResolveRequest(r *http.Request) string {
	if r == nil {
		return l.def
	}
	if lang, ok := l.Match(r.URL.Query().Get(LangParam)); ok {
		return lang
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if lang, ok := l.Match(cookie.Value); ok {
			return lang
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			lang, _ := l.match(tags...)
			return lang
		}
	}
	return l.def
}

// LocalizeResults maps items to their localized form for lang.
func LocalizeResults[T, R any](items []T, lang string, localize func(item T, lang string) R) []R {
	out := make([]R, len(items))
	for i, item := range items {
		out[i] = localize(item, lang)
	}
	return out
}
