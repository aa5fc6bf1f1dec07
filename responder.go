package conduit

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tfkr-ae/conduit/render"
)

var (
	// ErrNoResponder is returned by Respond when the controller has no responder configured
	ErrNoResponder = errors.New("no responder defined")

	// ErrNoViewRenderer is returned when an HTML response must render a view but no renderer is configured
	ErrNoViewRenderer = errors.New("no view renderer defined")
)

// Responder turns a dispatch result into an HTTP response.
type Responder interface {
	Respond(w http.ResponseWriter, req *http.Request, res *Result, namespace ...string) error
}

// ResponderFunc allows ordinary functions to be used as a Responder.
type ResponderFunc func(w http.ResponseWriter, req *http.Request, res *Result, namespace ...string) error

// Respond implements the Responder interface
func (f ResponderFunc) Respond(w http.ResponseWriter, req *http.Request, res *Result, namespace ...string) error {
	return f(w, req, res, namespace...)
}

// NegotiatingResponder picks the response from the negotiated format, the request method and the result validity.
//
// HTML: GET renders "show"; a successful mutation redirects to the resource (the collection after DELETE);
// a failed POST renders "new" and a failed PUT/PATCH renders "edit", both with 422.
// API formats: GET displays the model; failed mutations display the errors with 422;
// POST displays the model with 201 and a Location header; PUT, PATCH and DELETE answer 204.
type NegotiatingResponder struct {
	Views          ViewRenderer // Renders HTML views
	DefaultFormat  Format       // Format used when the request does not carry a negotiated one
	RedirectStatus int          // Status of HTML redirects, 303 when zero
	Pretty         bool         // Indent serialized API documents
	Logger         *slog.Logger
}

// NewNegotiatingResponder returns a responder configured from cfg.
func NewNegotiatingResponder(views ViewRenderer, cfg *Config) *NegotiatingResponder {
	responder := &NegotiatingResponder{
		Views:  views,
		Logger: slog.Default(),
	}
	responder.Configure(cfg)
	return responder
}

// Configure copies the default format, redirect status and pretty printing settings from cfg.
// A nil cfg selects the defaults.
func (responder *NegotiatingResponder) Configure(cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	responder.DefaultFormat = cfg.Format()
	responder.RedirectStatus = cfg.RedirectStatus
	responder.Pretty = cfg.Pretty
}

// Respond implements the Responder interface
func (responder *NegotiatingResponder) Respond(w http.ResponseWriter, req *http.Request, res *Result, namespace ...string) error {
	format, ok := FormatFromContext(req.Context())
	if !ok {
		var err error
		format, err = NegotiateFormat(req, responder.defaultFormat())
		if err != nil {
			return err
		}
	}

	if id, ok := RequestIDFromContext(req.Context()); ok {
		w.Header().Set(RequestIDHeader, id.String())
	}

	if format == FormatHTML {
		return responder.respondHTML(w, req, res, namespace)
	}
	return responder.respondAPI(w, req, format, res, namespace)
}

func (responder *NegotiatingResponder) respondHTML(w http.ResponseWriter, req *http.Request, res *Result, namespace []string) error {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		return responder.RenderView(w, req, "show", http.StatusOK, res)
	case http.MethodDelete:
		http.Redirect(w, req, CollectionLocation(res, namespace...), responder.redirectStatus())
		return nil
	}

	if !res.Valid {
		view := "edit"
		if req.Method == http.MethodPost {
			view = "new"
		}
		return responder.RenderView(w, req, view, http.StatusUnprocessableEntity, res)
	}

	http.Redirect(w, req, ResourceLocation(res, namespace...), responder.redirectStatus())
	return nil
}

func (responder *NegotiatingResponder) respondAPI(w http.ResponseWriter, req *http.Request, format Format, res *Result, namespace []string) error {
	isGet := req.Method == http.MethodGet || req.Method == http.MethodHead

	if !isGet && !res.Valid {
		body, err := render.Errors(string(format), res.Errors())
		if err != nil {
			return fmt.Errorf("rendering %s errors : %w", format, err)
		}
		return responder.write(w, format, http.StatusUnprocessableEntity, body)
	}

	switch {
	case isGet:
		body, err := Serialize(format, res)
		if err != nil {
			return err
		}
		return responder.write(w, format, http.StatusOK, body)
	case req.Method == http.MethodPost:
		body, err := Serialize(format, res)
		if err != nil {
			return err
		}
		w.Header().Set("Location", ResourceLocation(res, namespace...))
		return responder.write(w, format, http.StatusCreated, body)
	default:
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

// RenderView renders an HTML view of the result with the given status.
// The view is rendered fully before anything is written, so a failed render leaves the response untouched.
func (responder *NegotiatingResponder) RenderView(w http.ResponseWriter, req *http.Request, view string, status int, res *Result) error {
	if responder.Views == nil {
		return ErrNoViewRenderer
	}

	var buf bytes.Buffer
	if err := responder.Views.RenderView(&buf, req, view, res); err != nil {
		return fmt.Errorf("rendering view %s/%s : %w", res.ModelName, view, err)
	}
	return responder.write(w, FormatHTML, status, buf.Bytes())
}

func (responder *NegotiatingResponder) write(w http.ResponseWriter, format Format, status int, body []byte) error {
	if responder.Pretty && format.IsAPI() {
		body = render.Indent(body)
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		responder.logger().Debug("writing response body", "error", err)
	}
	return nil
}

func (responder *NegotiatingResponder) defaultFormat() Format {
	if responder.DefaultFormat == "" {
		return FormatHTML
	}
	return responder.DefaultFormat
}

func (responder *NegotiatingResponder) redirectStatus() int {
	if responder.RedirectStatus == 0 {
		return http.StatusSeeOther
	}
	return responder.RedirectStatus
}

func (responder *NegotiatingResponder) logger() *slog.Logger {
	if responder.Logger == nil {
		return slog.Default()
	}
	return responder.Logger
}

// Serialize encodes the result in an API format, preferring the operation's own renderer over the model encoder.
func Serialize(format Format, res *Result) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatJSON:
		if renderer, ok := res.Operation.(JSONRenderer); ok {
			body, err = renderer.RenderJSON()
		} else {
			body, err = render.Encode(string(format), res.Model)
		}
	case FormatXML:
		if renderer, ok := res.Operation.(XMLRenderer); ok {
			body, err = renderer.RenderXML()
		} else {
			body, err = render.Encode(string(format), res.Model)
		}
	case FormatYAML:
		if renderer, ok := res.Operation.(YAMLRenderer); ok {
			body, err = renderer.RenderYAML()
		} else {
			body, err = render.Encode(string(format), res.Model)
		}
	default:
		return nil, fmt.Errorf("serializing as %q : %w", format, ErrNotAcceptable)
	}
	if err != nil {
		return nil, fmt.Errorf("serializing %s as %s : %w", res.ModelName, format, err)
	}
	return body, nil
}

// ResourceLocation returns the URL path of the result's model.
// Models implementing Locator decide; otherwise the path is /namespace.../modelName/identity.
func ResourceLocation(res *Result, namespace ...string) string {
	if locator, ok := res.Model.(Locator); ok {
		return locator.Location(namespace...)
	}
	if identifier, ok := res.Model.(Identifier); ok {
		return joinPath(append(append([]string{}, namespace...), res.ModelName, identifier.Identity()))
	}
	return CollectionLocation(res, namespace...)
}

// CollectionLocation returns the URL path of the collection the result's model belongs to.
// Models implementing Locator are asked with a nil identity by trimming the last segment of their location.
func CollectionLocation(res *Result, namespace ...string) string {
	if locator, ok := res.Model.(Locator); ok {
		location := locator.Location(namespace...)
		if i := strings.LastIndexByte(location, '/'); i > 0 {
			return location[:i]
		}
		return location
	}
	return joinPath(append(append([]string{}, namespace...), res.ModelName))
}

func joinPath(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment = strings.Trim(segment, "/"); segment != "" {
			parts = append(parts, segment)
		}
	}
	return "/" + strings.Join(parts, "/")
}
