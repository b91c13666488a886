// Package i18n loads embedded YAML message catalogs and negotiates locales.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when nothing else matches.
const DefaultLocale = "en"

//go:embed locales/*.yml
var localeFS embed.FS

// Bundle holds every loaded catalog.
type Bundle struct {
	fallback string
	locales  []string
	catalogs map[string]map[string]string
	matcher  language.Matcher
}

// Load parses the embedded catalogs.
func Load() (*Bundle, error) {
	return LoadFS(localeFS, "locales")
}

// MustLoad is Load for package-level initialization; embedded catalogs are
// validated by tests, so a failure here is a build defect.
func MustLoad() *Bundle {
	b, err := Load()
	if err != nil {
		panic(err)
	}
	return b
}

// LoadFS parses every *.yml catalog found in dir. Each file holds one
// top-level key naming its locale.
func LoadFS(fsys fs.FS, dir string) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	b := &Bundle{fallback: DefaultLocale, catalogs: map[string]map[string]string{}}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var doc map[string]map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", entry.Name(), err)
		}
		for locale, tree := range doc {
			messages := map[string]string{}
			flatten("", tree, messages)
			b.catalogs[locale] = messages
		}
	}
	if _, ok := b.catalogs[b.fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q missing", b.fallback)
	}

	b.locales = make([]string, 0, len(b.catalogs))
	for locale := range b.catalogs {
		if locale != b.fallback {
			b.locales = append(b.locales, locale)
		}
	}
	sort.Strings(b.locales)
	b.locales = append([]string{b.fallback}, b.locales...)

	tags := make([]language.Tag, 0, len(b.locales))
	for _, locale := range b.locales {
		tags = append(tags, language.Make(locale))
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for key, value := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case string:
			out[full] = v
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}

// Locales lists the loaded locales, fallback first.
func (b *Bundle) Locales() []string {
	return append([]string(nil), b.locales...)
}

// Negotiate returns the first supported locale matching a candidate. Each
// candidate may be a plain tag ("de") or a full Accept-Language header.
func (b *Bundle) Negotiate(candidates ...string) string {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(candidate)
		if err != nil || len(tags) == 0 {
			continue
		}
		_, index, confidence := b.matcher.Match(tags...)
		if confidence == language.No {
			continue
		}
		return b.locales[index]
	}
	return b.fallback
}

// Translator returns a translator for locale, falling back to the default
// catalog for unknown locales and missing keys.
func (b *Bundle) Translator(locale string) *Translator {
	messages, ok := b.catalogs[locale]
	if !ok {
		locale = b.fallback
		messages = b.catalogs[b.fallback]
	}
	return &Translator{locale: locale, messages: messages, fallback: b.catalogs[b.fallback]}
}

// Translator looks up messages for one locale.
type Translator struct {
	locale   string
	messages map[string]string
	fallback map[string]string
}

func (t *Translator) Locale() string {
	return t.locale
}

// T returns the message for key with %{name} placeholders replaced from
// name/value pairs.
func (t *Translator) T(key string, pairs ...any) string {
	message, ok := t.messages[key]
	if !ok {
		message, ok = t.fallback[key]
	}
	if !ok {
		return "translation missing: " + t.locale + "." + key
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		name := fmt.Sprint(pairs[i])
		message = strings.ReplaceAll(message, "%{"+name+"}", fmt.Sprint(pairs[i+1]))
	}
	return message
}

// Has reports whether key resolves in this locale or the fallback.
func (t *Translator) Has(key string) bool {
	if _, ok := t.messages[key]; ok {
		return true
	}
	_, ok := t.fallback[key]
	return ok
}

// FullMessage formats an attribute error the way record validations do:
// "<attribute> <message>".
func (t *Translator) FullMessage(attribute, messageKey string, pairs ...any) string {
	return t.T("errors.format", "attribute", attribute, "message", t.T("errors.messages."+messageKey, pairs...))
}

// ToSentence joins items with the locale's list connectors.
func (t *Translator) ToSentence(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + t.T("support.array.two_words_connector") + items[1]
	}
	head := strings.Join(items[:len(items)-1], t.T("support.array.words_connector"))
	return head + t.T("support.array.last_word_connector") + items[len(items)-1]
}

// YesNo returns the localized boolean label.
func (t *Translator) YesNo(value bool) string {
	if value {
		return t.T("general_text_Yes")
	}
	return t.T("general_text_No")
}
