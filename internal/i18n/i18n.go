// Package i18n хранит словари сайта и выбирает язык запроса.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	LangParam      = "lang"
	LangCookieName = "lang"
)

//go:embed locales/*.yaml
var embeddedFS embed.FS

// Bundle - словари всех поддерживаемых языков.
type Bundle struct {
	defaultLocale string
	locales       []string
	flat          map[string]map[string]string
	tree          map[string]map[string]any
	matcher       language.Matcher
}

// Load загружает встроенные словари. Первым в списке поддерживаемых
// языков всегда идет язык по умолчанию.
func Load(defaultLocale string, supported []string) (*Bundle, error) {
	return LoadFromFS(embeddedFS, defaultLocale, supported)
}

func LoadFromFS(fsys fs.FS, defaultLocale string, supported []string) (*Bundle, error) {
	b := &Bundle{
		defaultLocale: defaultLocale,
		flat:          map[string]map[string]string{},
		tree:          map[string]map[string]any{},
	}

	ordered := []string{defaultLocale}
	for _, l := range supported {
		if l != defaultLocale {
			ordered = append(ordered, l)
		}
	}

	tags := make([]language.Tag, 0, len(ordered))
	for _, locale := range ordered {
		data, err := fs.ReadFile(fsys, path.Join("locales", locale+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("словарь для языка %s не найден: %w", locale, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("ошибка разбора словаря %s: %w", locale, err)
		}
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("некорректный код языка %s: %w", locale, err)
		}
		flat := map[string]string{}
		flatten("", tree, flat)
		b.flat[locale] = flat
		b.tree[locale] = tree
		b.locales = append(b.locales, locale)
		tags = append(tags, tag)
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

func (b *Bundle) Default() string { return b.defaultLocale }

func (b *Bundle) Supported() []string {
	out := make([]string, len(b.locales))
	copy(out, b.locales)
	return out
}

// Normalize приводит значение вроде "kk-KZ" к поддерживаемому коду языка.
func (b *Bundle) Normalize(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	if _, ok := b.flat[base.String()]; ok {
		return base.String(), true
	}
	return "", false
}

// Resolve выбирает язык запроса: ?lang, cookie, язык пользователя, Accept-Language, по умолчанию.
// Второе значение true, если язык пришел из ?lang и его стоит сохранить в cookie.
func (b *Bundle) Resolve(r *http.Request, userLocale string) (string, bool) {
	if r == nil {
		return b.defaultLocale, false
	}
	if locale, ok := b.Normalize(r.URL.Query().Get(LangParam)); ok {
		return locale, true
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if locale, ok := b.Normalize(cookie.Value); ok {
			return locale, false
		}
	}
	if locale, ok := b.Normalize(userLocale); ok {
		return locale, false
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, confidence := b.matcher.Match(tags...)
			if confidence != language.No {
				return b.locales[idx], false
			}
		}
	}
	return b.defaultLocale, false
}

// T возвращает перевод ключа; если его нет - перевод на языке по умолчанию, затем сам ключ.
func (b *Bundle) T(locale, key string) string {
	if v, ok := b.flat[locale][key]; ok {
		return v
	}
	if v, ok := b.flat[b.defaultLocale][key]; ok {
		return v
	}
	return key
}

// Section возвращает поддерево словаря, дополненное значениями языка по умолчанию.
func (b *Bundle) Section(locale, name string) (map[string]any, bool) {
	base, okBase := b.tree[b.defaultLocale][name].(map[string]any)
	own, okOwn := b.tree[locale][name].(map[string]any)
	if !okBase && !okOwn {
		return nil, false
	}
	return merge(base, own), true
}

// Keys - все ключи языка, отсортированные.
func (b *Bundle) Keys(locale string) []string {
	keys := make([]string, 0, len(b.flat[locale]))
	for k := range b.flat[locale] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func merge(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		if m, ok := v.(map[string]any); ok {
			out[k] = merge(m, nil)
			continue
		}
		out[k] = v
	}
	for k, v := range over {
		if m, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = merge(existing, m)
				continue
			}
			out[k] = merge(nil, m)
			continue
		}
		out[k] = v
	}
	return out
}

func SetLanguageCookie(w http.ResponseWriter, locale string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    locale,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}
