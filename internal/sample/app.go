package sample

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/tfkr-ae/conduit"
	"github.com/tfkr-ae/conduit/render"
)

//go:embed views
var embedViews embed.FS

// Views returns the embedded article templates.
func Views() fs.FS {
	views, err := fs.Sub(embedViews, "views")
	if err != nil {
		panic(err)
	}
	return views
}

// App serves the article routes through a conduit controller.
type App struct {
	controller *conduit.Controller
	responder  *conduit.NegotiatingResponder
	store      *Store
	logger     *slog.Logger
	metrics    http.Handler
}

// NewApp builds the controller from options and wires it for the article routes:
// the embedded views are installed and the {id} path wildcard is copied into params
// ahead of any params processor given in options.
func NewApp(store *Store, options ...func(*conduit.Controller) error) (*App, error) {
	controller, err := conduit.New(options...)
	if err != nil {
		return nil, fmt.Errorf("creating controller : %w", err)
	}

	views, err := conduit.NewTemplateRenderer(Views(), controller.Config.Pretty, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing views : %w", err)
	}
	if err := controller.WithOptions(conduit.WithViews(views)); err != nil {
		return nil, err
	}
	controller.ProcessParams = conduit.ChainProcessors(conduit.PathParams("id"), controller.ProcessParams)

	responder, ok := controller.Responder.(*conduit.NegotiatingResponder)
	if !ok {
		return nil, conduit.ErrNoResponder
	}

	return &App{
		controller: controller,
		responder:  responder,
		store:      store,
		logger:     controller.Logger,
	}, nil
}

// WithMetricsHandler serves h on GET /metrics.
func (app *App) WithMetricsHandler(h http.Handler) *App {
	app.metrics = h
	return app
}

// Controller returns the controller dispatching the article operations.
func (app *App) Controller() *conduit.Controller {
	return app.controller
}

// Handler returns the routes wrapped in the request ID, request dump and method override middleware.
func (app *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/articles", http.StatusFound)
	})
	mux.HandleFunc("GET /articles", app.index)
	mux.HandleFunc("GET /articles/new", app.newArticle)
	mux.HandleFunc("POST /articles", app.create)
	mux.HandleFunc("GET /articles/{id}", app.show)
	mux.HandleFunc("GET /articles/{id}/edit", app.edit)
	mux.HandleFunc("PUT /articles/{id}", app.update)
	mux.HandleFunc("PATCH /articles/{id}", app.update)
	mux.HandleFunc("DELETE /articles/{id}", app.destroy)
	mux.HandleFunc("POST /articles/{id}/publish", app.publish)
	if app.metrics != nil {
		mux.Handle("GET /metrics", app.metrics)
	}
	return conduit.RequestID(conduit.DumpRequests(app.logger)(conduit.MethodOverride(mux)))
}

func (app *App) index(w http.ResponseWriter, req *http.Request) {
	res, err := app.controller.Present(req, app.store.Index())
	if err != nil {
		app.fail(w, req, err)
		return
	}
	app.render(w, req, "index", http.StatusOK, res)
}

func (app *App) newArticle(w http.ResponseWriter, req *http.Request) {
	res, err := app.controller.Form(req, app.store.Create())
	if err != nil {
		app.fail(w, req, err)
		return
	}
	app.render(w, req, "new", http.StatusOK, res)
}

func (app *App) create(w http.ResponseWriter, req *http.Request) {
	if _, err := app.controller.Respond(w, req, app.store.Create()); err != nil {
		app.fail(w, req, err)
	}
}

func (app *App) show(w http.ResponseWriter, req *http.Request) {
	res, err := app.controller.Present(req, app.store.Show())
	if err != nil {
		app.fail(w, req, err)
		return
	}
	if err := app.responder.Respond(w, req, res); err != nil {
		app.fail(w, req, err)
	}
}

func (app *App) edit(w http.ResponseWriter, req *http.Request) {
	res, err := app.controller.Form(req, app.store.Update())
	if err != nil {
		app.fail(w, req, err)
		return
	}
	app.render(w, req, "edit", http.StatusOK, res)
}

func (app *App) update(w http.ResponseWriter, req *http.Request) {
	if _, err := app.controller.Respond(w, req, app.store.Update()); err != nil {
		app.fail(w, req, err)
	}
}

func (app *App) destroy(w http.ResponseWriter, req *http.Request) {
	if _, err := app.controller.Respond(w, req, app.store.Delete()); err != nil {
		app.fail(w, req, err)
	}
}

// publish runs Publish and logs the publication from the success callback.
// A successful HTML request is redirected to the article, an API request gets the article back.
func (app *App) publish(w http.ResponseWriter, req *http.Request) {
	res, err := app.controller.Run(req, app.store.Publish(), func(res *conduit.Result) error {
		article := res.Operation.(*ArticleOperation).Article()
		app.logger.Info("article published", "id", article.ID.String(), "request_id", res.RequestID.String())
		return nil
	})
	if err != nil {
		app.fail(w, req, err)
		return
	}

	format, err := app.format(req)
	if err != nil {
		app.fail(w, req, err)
		return
	}
	switch {
	case format == conduit.FormatHTML && res.Valid:
		status := app.responder.RedirectStatus
		if status == 0 {
			status = http.StatusSeeOther
		}
		http.Redirect(w, req, conduit.ResourceLocation(res), status)
	case format == conduit.FormatHTML:
		app.render(w, req, "show", http.StatusUnprocessableEntity, res)
	case res.Valid:
		app.render(w, req, "show", http.StatusOK, res)
	default:
		body, err := render.Errors(string(format), res.Errors())
		if err != nil {
			app.fail(w, req, err)
			return
		}
		app.write(w, format, http.StatusUnprocessableEntity, body)
	}
}

// render writes the result as the named view for HTML requests and as a serialized model otherwise.
func (app *App) render(w http.ResponseWriter, req *http.Request, view string, status int, res *conduit.Result) {
	format, err := app.format(req)
	if err != nil {
		app.fail(w, req, err)
		return
	}

	if format == conduit.FormatHTML {
		if err := app.responder.RenderView(w, req, view, status, res); err != nil {
			app.fail(w, req, err)
		}
		return
	}

	body, err := conduit.Serialize(format, res)
	if err != nil {
		app.fail(w, req, err)
		return
	}
	app.write(w, format, status, body)
}

func (app *App) write(w http.ResponseWriter, format conduit.Format, status int, body []byte) {
	if app.controller.Config.Pretty {
		body = render.Indent(body)
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		app.logger.Debug("writing response body", "error", err)
	}
}

func (app *App) format(req *http.Request) (conduit.Format, error) {
	if format, ok := conduit.FormatFromContext(req.Context()); ok {
		return format, nil
	}
	return conduit.NegotiateFormat(req, app.controller.Config.Format())
}

// fail maps an error to its status code. Server errors are logged and their text is not exposed.
func (app *App) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		app.logger.Error("handling request", "method", req.Method, "path", req.URL.Path, "error", err)
	} else {
		app.logger.Debug("rejecting request", "method", req.Method, "path", req.URL.Path, "status", status, "error", err)
	}
	http.Error(w, http.StatusText(status), status)
}

// StatusCode returns the HTTP status matching an error returned by a controller entry point.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrArticleNotFound):
		return http.StatusNotFound
	case errors.Is(err, conduit.ErrNotAcceptable):
		return http.StatusNotAcceptable
	case errors.Is(err, conduit.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, conduit.ErrUnsupportedEncoding):
		return http.StatusUnsupportedMediaType
	case conduit.IsClientError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
