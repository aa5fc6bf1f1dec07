package conduit

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestTemplateRenderer(t *testing.T) {
	t.Run("should render a view with its layout", func(t *testing.T) {
		renderer, err := NewTemplateRenderer(testViews, false, nil)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		var buf bytes.Buffer
		err = renderer.RenderView(&buf, httptest.NewRequest(http.MethodGet, "/articles/42", nil), "show", testResult(true))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if got := buf.String(); got != "<html><body><h1>hello</h1></body></html>" {
			t.Fatalf("\nwanted:\n<html><body><h1>hello</h1></body></html>\ngot:\n%s", got)
		}
	})

	t.Run("should expose validation errors", func(t *testing.T) {
		renderer, err := NewTemplateRenderer(testViews, false, nil)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		var buf bytes.Buffer
		err = renderer.RenderView(&buf, httptest.NewRequest(http.MethodPost, "/articles", nil), "new", testResult(false))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if !strings.Contains(buf.String(), "<p>title: can&#39;t be blank</p>") {
			t.Fatalf("\nwanted:\nrendered error\ngot:\n%s", buf.String())
		}
	})

	t.Run("should indent html when pretty", func(t *testing.T) {
		renderer, err := NewTemplateRenderer(testViews, true, nil)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		var buf bytes.Buffer
		err = renderer.RenderView(&buf, httptest.NewRequest(http.MethodGet, "/articles/42", nil), "show", testResult(true))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if !strings.Contains(buf.String(), "\n") || !strings.Contains(buf.String(), "hello") {
			t.Fatalf("\nwanted:\nindented html\ngot:\n%s", buf.String())
		}
	})

	t.Run("should make template functions available", func(t *testing.T) {
		fsys := fstest.MapFS{
			"article/show.html": {Data: []byte(`{{shout .Model.Title}}`)},
		}
		renderer, err := NewTemplateRenderer(fsys, false, template.FuncMap{"shout": strings.ToUpper})
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		var buf bytes.Buffer
		if err := renderer.RenderView(&buf, httptest.NewRequest(http.MethodGet, "/", nil), "show", testResult(true)); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if buf.String() != "HELLO" {
			t.Fatalf("\nwanted:\nHELLO\ngot:\n%s", buf.String())
		}
	})

	t.Run("should report missing views", func(t *testing.T) {
		renderer, err := NewTemplateRenderer(testViews, false, nil)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		err = renderer.RenderView(&bytes.Buffer{}, httptest.NewRequest(http.MethodGet, "/", nil), "index", testResult(true))
		if !errors.Is(err, ErrViewNotFound) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrViewNotFound, err)
		}
	})

	t.Run("should report template syntax errors", func(t *testing.T) {
		fsys := fstest.MapFS{
			"article/show.html": {Data: []byte(`{{.Model.Title`)},
		}
		if _, err := NewTemplateRenderer(fsys, false, nil); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})
}
