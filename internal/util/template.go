package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var templateFuncs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"title": func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	},
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
}

// Template is a parsed prompt template.
type Template struct {
	text string
	tmpl *template.Template
}

// ParseTemplate parses text once so it can be rendered per message. Text
// without template markers renders verbatim.
func ParseTemplate(text string) (*Template, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return &Template{text: text}, nil
	}

	tmpl, err := template.New("prompt").Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	return &Template{text: text, tmpl: tmpl}, nil
}

// Render executes the template against data.
func (t *Template) Render(data any) (string, error) {
	if t.tmpl == nil {
		return t.text, nil
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	return buf.String(), nil
}

// RenderTemplate parses and renders text in one go.
func RenderTemplate(text string, data any) (string, error) {
	t, err := ParseTemplate(text)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}
