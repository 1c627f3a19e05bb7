package ollama

import (
	"bytes"
	"text/template"
)

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// ParseTemplate reports whether tmpl is a well-formed prompt template.
func ParseTemplate(tmpl string) error {
	_, err := template.New("prompt").Funcs(funcs).Parse(tmpl)
	return err
}

// RenderTemplate renders a prompt template with the provided data.
func RenderTemplate(tmpl string, data any) (string, error) {
	tpl, err := template.New("prompt").Funcs(funcs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
