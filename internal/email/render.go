// internal/email/render.go
package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcMap = map[string]any{
	"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	},
}

type templatePair struct {
	html *htmltpl.Template
	text *texttpl.Template
}

const (
	tplVerification    = "verification"
	tplPasswordReset   = "password_reset"
	tplContactReceived = "contact_received"
	tplQuoteReceived   = "quote_received"
	tplQuoteStatus     = "quote_status"
)

var templates = map[string]templatePair{}

func init() {
	for _, name := range []string{tplVerification, tplPasswordReset, tplContactReceived, tplQuoteReceived, tplQuoteStatus} {
		templates[name] = templatePair{
			html: htmltpl.Must(htmltpl.New("").Funcs(htmltpl.FuncMap(funcMap)).ParseFS(templateFS, "templates/"+name+".html.tmpl")),
			text: texttpl.Must(texttpl.New("").Funcs(texttpl.FuncMap(funcMap)).ParseFS(templateFS, "templates/"+name+".txt.tmpl")),
		}
	}
}

// Render возвращает тему, HTML и текстовую версию письма.
func Render(name string, data any) (subject, html, text string, err error) {
	pair, ok := templates[name]
	if !ok {
		return "", "", "", fmt.Errorf("шаблон письма '%s' не найден", name)
	}

	var subjectBuf, htmlBuf, textBuf bytes.Buffer
	if err := pair.text.ExecuteTemplate(&subjectBuf, "subject", data); err != nil {
		return "", "", "", fmt.Errorf("ошибка рендера темы письма %s: %w", name, err)
	}
	if err := pair.html.ExecuteTemplate(&htmlBuf, "body", data); err != nil {
		return "", "", "", fmt.Errorf("ошибка рендера HTML письма %s: %w", name, err)
	}
	if err := pair.text.ExecuteTemplate(&textBuf, "body", data); err != nil {
		return "", "", "", fmt.Errorf("ошибка рендера текста письма %s: %w", name, err)
	}
	return sanitizeSubject(subjectBuf.String()), htmlBuf.String(), textBuf.String(), nil
}
