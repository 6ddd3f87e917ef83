// Package util holds rendering helpers shared by handlers.
package util

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Funcs are available to every template rendered by RenderHTML.
var Funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"won":  formatWonAny,
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

// ParseHTML parses an html/template with Funcs.
func ParseHTML(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(Funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// RenderHTML executes tmpl with data.
func RenderHTML(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func formatWonAny(v any) string {
	switch n := v.(type) {
	case int:
		return FormatWon(float64(n))
	case int64:
		return FormatWon(float64(n))
	case float64:
		return FormatWon(n)
	case float32:
		return FormatWon(float64(n))
	default:
		return fmt.Sprint(v)
	}
}

// FormatWon formats an amount as Korean won with thousands separators,
// e.g. 1234567 -> "1,234,567원".
func FormatWon(amount float64) string {
	n := int64(math.Round(amount))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + b.String() + "원"
}
