// Package i18n renders the resolver's user-visible messages.
//
// Messages live in an x/text catalog keyed by their template key. Named
// parameters are mapped onto the template's printf verbs in the order the
// message declares them.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Template keys.
const (
	KeySingleItemNotAvailable = "Ceres::Template.singleItemNotAvailable"
	KeySingleItemContent      = "Ceres::Template.singleItemContent"
)

type entry struct {
	key    string
	params []string
	text   map[language.Tag]string
}

var messages = []entry{
	{
		key:    KeySingleItemNotAvailable,
		params: []string{"name"},
		text: map[language.Tag]string{
			language.English: "%s is not available for this combination.",
			language.German:  "%s ist in dieser Kombination nicht verfügbar.",
		},
	},
	{
		key: KeySingleItemContent,
		text: map[language.Tag]string{
			language.English: "Content",
			language.German:  "Inhalt",
		},
	},
}

var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

var builder = newBuilder()

func newBuilder() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, m := range messages {
		for tag, text := range m.text {
			if err := b.SetString(tag, m.key, text); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Supported returns the languages messages are available in.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// Catalog translates message keys for one language.
// It satisfies engine.Translator.
type Catalog struct {
	tag     language.Tag
	printer *message.Printer
	params  map[string][]string
}

// New returns the catalog best matching locale ("de", "de-AT", "en-US").
// Unknown or malformed locales fall back to English.
func New(locale string) *Catalog {
	tag := language.English
	if t, err := language.Parse(locale); err == nil {
		_, i, _ := matcher.Match(t)
		tag = supported[i]
	}

	params := make(map[string][]string, len(messages))
	for _, m := range messages {
		params[m.key] = m.params
	}

	return &Catalog{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
		params:  params,
	}
}

// Tag returns the language the catalog renders.
func (c *Catalog) Tag() language.Tag {
	return c.tag
}

// Translate renders key with params. Unknown keys render as the key.
func (c *Catalog) Translate(key string, params map[string]string) string {
	names, ok := c.params[key]
	if !ok {
		return key
	}
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = params[name]
	}
	return c.printer.Sprintf(key, args...)
}
