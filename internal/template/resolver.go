package template

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// shellQuote single-quotes a string for safe shell interpolation.
// Embedded single quotes are escaped using the '\'' technique.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// Data builds the template data for one command invocation. Parameters
// shadow manifest vars of the same name.
func Data(vars, params map[string]string) map[string]interface{} {
	data := make(map[string]interface{}, len(vars)+len(params))
	for k, v := range vars {
		data[k] = v
	}
	for k, v := range params {
		data[k] = v
	}
	return data
}

// SubstituteParameters substitutes parameters in a command template
// Uses standard delimiters {{ and }} for template actions
// Fails if required parameters are missing (strict mode)
func SubstituteParameters(command string, params map[string]interface{}) (string, error) {
	tmpl, err := template.New("command").
		Funcs(template.FuncMap{"shellQuote": shellQuote}).
		Option("missingkey=error").
		Parse(command)
	if err != nil {
		return "", fmt.Errorf("parse command template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("execute command template: %w", err)
	}

	return buf.String(), nil
}

// RenderMessage expands vars in a notice message. Messages are free text,
// so anything that does not parse or execute is returned unchanged.
func RenderMessage(message string, data map[string]interface{}) string {
	if !strings.Contains(message, "{{") {
		return message
	}
	tmpl, err := template.New("message").Option("missingkey=zero").Parse(message)
	if err != nil {
		return message
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return message
	}
	return buf.String()
}
