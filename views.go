package conduit

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/yosssi/gohtml"
)

var (
	// ErrViewNotFound is returned when no template exists for a model and view
	ErrViewNotFound = errors.New("view not found")
)

// ViewRenderer renders HTML views of dispatch results.
type ViewRenderer interface {
	RenderView(w io.Writer, req *http.Request, view string, res *Result) error
}

// View is the data handed to view templates.
type View struct {
	Result  *Result
	Model   any
	Form    Contract
	Errors  map[string][]string
	Valid   bool
	Request *http.Request
}

// TemplateRenderer renders html/template files named "{model}/{view}.html" from a file system.
// Files under "layouts/" are shared by every view.
type TemplateRenderer struct {
	templates map[string]*template.Template
	pretty    bool
}

// NewTemplateRenderer parses every view template in fsys.
func NewTemplateRenderer(fsys fs.FS, pretty bool, funcs template.FuncMap) (*TemplateRenderer, error) {
	layouts, err := fs.Glob(fsys, "layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing layouts : %w", err)
	}
	views, err := fs.Glob(fsys, "*/*.html")
	if err != nil {
		return nil, fmt.Errorf("listing views : %w", err)
	}

	renderer := &TemplateRenderer{
		templates: make(map[string]*template.Template),
		pretty:    pretty,
	}
	for _, view := range views {
		if strings.HasPrefix(view, "layouts/") {
			continue
		}
		name := strings.TrimSuffix(view, path.Ext(view))
		files := append([]string{view}, layouts...)

		tmpl, err := template.New(path.Base(view)).Funcs(funcs).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parsing view %s : %w", view, err)
		}
		renderer.templates[name] = tmpl
	}
	return renderer, nil
}

// RenderView implements the ViewRenderer interface
func (renderer *TemplateRenderer) RenderView(w io.Writer, req *http.Request, view string, res *Result) error {
	name := res.ModelName + "/" + view
	tmpl, ok := renderer.templates[name]
	if !ok {
		return fmt.Errorf("%s : %w", name, ErrViewNotFound)
	}

	data := View{
		Result:  res,
		Model:   res.Model,
		Form:    res.Form,
		Errors:  res.Errors(),
		Valid:   res.Valid,
		Request: req,
	}

	if !renderer.pretty {
		return tmpl.Execute(w, data)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err := w.Write(gohtml.FormatBytes(buf.Bytes()))
	return err
}
