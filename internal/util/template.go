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
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},
	"quote": func(v any) string {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	},
}

// RenderTemplate replaces template variables using Go's text/template package.
// Missing keys render as empty strings.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("prompt").Option("missingkey=zero").Funcs(templateFuncs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}

	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
