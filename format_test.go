package conduit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
		ok   bool
	}{
		{"json", FormatJSON, true},
		{".xml", FormatXML, true},
		{"YML", FormatYAML, true},
		{"htm", FormatHTML, true},
		{"application/json; charset=utf-8", FormatJSON, true},
		{"text/yaml", FormatYAML, true},
		{"application/xhtml+xml", FormatHTML, true},
		{"csv", "", false},
		{"text/csv", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFormat(tt.name)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("\nwanted:\n%v %v\ngot:\n%v %v", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestNegotiateFormat(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		accept   string
		fallback Format
		want     Format
		err      error
	}{
		{"should prefer the path extension", "/articles/42.xml?format=json", "application/yaml", FormatHTML, FormatXML, nil},
		{"should use the format param", "/articles/42?format=yaml", "application/json", FormatHTML, FormatYAML, nil},
		{"should use the accept header", "/articles/42", "application/json", FormatHTML, FormatJSON, nil},
		{"should honour accept quality", "/articles/42", "application/xml;q=0.5, application/json", FormatHTML, FormatJSON, nil},
		{"should resolve wildcards to the fallback", "/articles/42", "*/*", FormatYAML, FormatYAML, nil},
		{"should fall back without preferences", "/articles/42", "", FormatJSON, FormatJSON, nil},
		{"should ignore unknown extensions", "/files/report.csv", "", FormatHTML, FormatHTML, nil},
		{"should reject unknown format params", "/articles/42?format=csv", "", FormatHTML, "", ErrNotAcceptable},
		{"should reject unsatisfiable accept headers", "/articles/42", "image/png", FormatHTML, "", ErrNotAcceptable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}

			got, err := NegotiateFormat(req, tt.fallback)
			if !errors.Is(err, tt.err) {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", tt.err, err)
			}
			if got != tt.want {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", tt.want, got)
			}
		})
	}
}

func TestFormatContentType(t *testing.T) {
	t.Run("should add a charset to html", func(t *testing.T) {
		if got := FormatHTML.ContentType(); got != "text/html; charset=utf-8" {
			t.Fatalf("\nwanted:\ntext/html; charset=utf-8\ngot:\n%v", got)
		}
	})

	t.Run("should return canonical api media types", func(t *testing.T) {
		want := map[Format]string{
			FormatJSON: "application/json",
			FormatXML:  "application/xml",
			FormatYAML: "application/yaml",
		}
		for format, contentType := range want {
			if got := format.ContentType(); got != contentType {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", contentType, got)
			}
		}
	})
}

func TestTrimFormatExtension(t *testing.T) {
	for segment, want := range map[string]string{
		"42.json": "42",
		"42.yml":  "42",
		"42":      "42",
		"v1.2":    "v1.2",
	} {
		if got := TrimFormatExtension(segment); got != want {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", want, got)
		}
	}
}
