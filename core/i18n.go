package core

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	LocaleEN = "en"
	LocaleFR = "fr"
)

var SupportedLocales = []string{LocaleEN, LocaleFR}

// Catalog holds the translated messages of every locale, keyed by dotted path
// (e.g. "errors.grades.notFound").
type Catalog struct {
	defaultLocale string
	messages      map[string]map[string]string // {locale: {key: message}}
}

// LoadCatalog reads every <locale>.yaml file found in dir.
func LoadCatalog(fsys fs.FS, dir, defaultLocale string) (*Catalog, error) {
	fps, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, errors.Wrap(err, "listing catalogs")
	}

	cat := &Catalog{defaultLocale: defaultLocale, messages: make(map[string]map[string]string, len(fps))}
	for _, fp := range fps {
		data, err := fs.ReadFile(fsys, fp)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", fp)
		}
		var tree map[string]interface{}
		if err = yaml.Unmarshal(data, &tree); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fp)
		}
		locale := strings.TrimSuffix(path.Base(fp), ".yaml")
		msgs := make(map[string]string)
		flatten("", tree, msgs)
		cat.messages[locale] = msgs
	}
	if _, ok := cat.messages[defaultLocale]; !ok {
		return nil, errors.Errorf("no catalog for default locale %q", defaultLocale)
	}
	return cat, nil
}

func flatten(prefix string, tree map[string]interface{}, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

func (c *Catalog) DefaultLocale() string { return c.defaultLocale }

func (c *Catalog) Locales() []string {
	locales := make([]string, 0, len(c.messages))
	for l := range c.messages {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	return locales
}

func (c *Catalog) Has(locale string) bool {
	_, ok := c.messages[locale]
	return ok
}

// T renders key for locale, falling back to the default locale then to the key itself.
// Placeholders look like {name}.
func (c *Catalog) T(locale, key string, params map[string]interface{}) string {
	msg, ok := c.messages[locale][key]
	if !ok {
		if msg, ok = c.messages[c.defaultLocale][key]; !ok {
			return key
		}
	}
	for name, val := range params {
		msg = strings.ReplaceAll(msg, "{"+name+"}", fmt.Sprint(val))
	}
	return msg
}

// Resolve picks the best supported locale for an Accept-Language header value
// or a plain locale tag; it returns the default locale when nothing matches.
func (c *Catalog) Resolve(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" || tag == "*" {
			continue
		}
		base := strings.ToLower(strings.SplitN(strings.ReplaceAll(tag, "_", "-"), "-", 2)[0])
		if c.Has(base) {
			return base
		}
	}
	return c.defaultLocale
}

// NewUniversalTranslator returns the validation-message translators of every supported locale.
func NewUniversalTranslator() *ut.UniversalTranslator {
	_en := en.New()
	return ut.New(_en, _en, fr.New())
}

// Translator returns the validation translator for locale, falling back to English.
func Translator(uni *ut.UniversalTranslator, locale string) ut.Translator {
	if trans, found := uni.GetTranslator(locale); found {
		return trans
	}
	trans, _ := uni.GetTranslator(LocaleEN)
	return trans
}
