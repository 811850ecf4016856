package template

import (
	"strings"
	"testing"
)

func TestSubstituteParameters(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		params    map[string]interface{}
		want      string
		wantError bool
		errorMsg  string
	}{
		{
			name:    "single parameter",
			command: "npm test -- {{.file}}",
			params:  map[string]interface{}{"file": "src/test.js"},
			want:    "npm test -- src/test.js",
		},
		{
			name:    "multiple parameters",
			command: "docker run -p {{.port}}:{{.port}} {{.image}}",
			params: map[string]interface{}{
				"port":  8080,
				"image": "nginx",
			},
			want: "docker run -p 8080:8080 nginx",
		},
		{
			name:    "string parameter",
			command: "echo {{.message}}",
			params:  map[string]interface{}{"message": "hello world"},
			want:    "echo hello world",
		},
		{
			name:    "boolean parameter",
			command: "run --verbose={{.verbose}}",
			params:  map[string]interface{}{"verbose": true},
			want:    "run --verbose=true",
		},
		{
			name:    "no parameters",
			command: "go test ./...",
			params:  map[string]interface{}{},
			want:    "go test ./...",
		},
		{
			name:      "missing required parameter",
			command:   "npm test -- {{.file}}",
			params:    map[string]interface{}{},
			wantError: true,
			errorMsg:  "execute command template",
		},
		{
			name:      "invalid template syntax",
			command:   "npm test -- {{.file",
			params:    map[string]interface{}{"file": "test.js"},
			wantError: true,
			errorMsg:  "parse command template",
		},
		{
			name:    "whitespace control",
			command: "echo {{- .message -}}",
			params:  map[string]interface{}{"message": "hello"},
			want:    "echohello",
		},
		{
			name:    "shell quoted parameter",
			command: "git commit -m {{shellQuote .msg}}",
			params:  map[string]interface{}{"msg": "it's done"},
			want:    "git commit -m 'it'\\''s done'",
		},
		{
			name:    "nested field",
			command: "docker run {{.config.image}}",
			params: map[string]interface{}{
				"config": map[string]interface{}{
					"image": "nginx",
				},
			},
			want: "docker run nginx",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SubstituteParameters(tt.command, tt.params)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error, got nil")
					return
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got: %v", tt.errorMsg, err)
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if result != tt.want {
				t.Errorf("expected %q, got %q", tt.want, result)
			}
		})
	}
}

func TestParameterSubstitutionEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		command string
		params  map[string]interface{}
		want    string
	}{
		{
			name:    "empty command",
			command: "",
			params:  map[string]interface{}{},
			want:    "",
		},
		{
			name:    "special characters in parameter",
			command: "echo {{.msg}}",
			params:  map[string]interface{}{"msg": "hello!@#$%^&*()"},
			want:    "echo hello!@#$%^&*()",
		},
		{
			name:    "numeric parameter",
			command: "sleep {{.seconds}}",
			params:  map[string]interface{}{"seconds": 10},
			want:    "sleep 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SubstituteParameters(tt.command, tt.params)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if result != tt.want {
				t.Errorf("expected %q, got %q", tt.want, result)
			}
		})
	}
}

func TestData(t *testing.T) {
	data := Data(
		map[string]string{"bazel_build": "bazel build", "target": "//src/..."},
		map[string]string{"target": "//lib/..."},
	)

	got, err := SubstituteParameters("{{.bazel_build}} {{.target}}", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "bazel build //lib/..." {
		t.Errorf("expected parameter to shadow var, got %q", got)
	}
}

func TestRenderMessage(t *testing.T) {
	data := map[string]interface{}{"project": "Point Cloud Analyzer"}

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"plain", "Build successful :^)", "Build successful :^)"},
		{"var", "Welcome to {{.project}}", "Welcome to Point Cloud Analyzer"},
		{"unparsable kept verbatim", "braces {{ here", "braces {{ here"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderMessage(tt.message, data); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
