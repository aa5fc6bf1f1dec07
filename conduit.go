// Package conduit glues net/http handlers to operations: self-contained units of business logic
// that find or build a model, validate input through a contract and report success.
//
// A Controller exposes four entry points used from HTTP handlers:
//   - Run invokes the full operation and calls an optional callback when it succeeds
//   - Present invokes only the setup of the operation, for read-only rendering
//   - Form presents the operation and prepopulates its contract for rendering a form
//   - Respond runs the operation and hands the result to a content-negotiating Responder
//
// Every entry point first passes the request params through the configured ParamsProcessor,
// and returns a Result binding the operation, its model and its contract together.
// Errors raised by operations, callbacks and responders are returned to the caller unchanged.
package conduit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/conduit/domain"
)

const (
	verbRun     = "run"
	verbPresent = "present"
	verbForm    = "form"
	verbRespond = "respond"
)

// Controller dispatches HTTP requests to operations.
// It holds no per-request state and may be shared between handlers and goroutines.
type Controller struct {
	Config        *Config                   // Controller configuration
	Logger        *slog.Logger              // Structured logger for dispatch events
	ProcessParams ParamsProcessor           // Params normalization hook, identity by default
	Responder     Responder                 // Responder used by Respond
	SuccessPolicy SuccessPolicy             // Decides whether a Run counts as a success
	Journal       domain.DispatchRepository // Optional dispatch journal
	JournalScope  *Scope                    // Dispatches written to the journal, all when nil
	metrics       *metrics
	now           func() time.Time
}

// New creates a new Controller with default configuration and applies any provided options.
func New(options ...func(*Controller) error) (*Controller, error) {
	controller := &Controller{
		Config:        DefaultConfig(),
		Logger:        slog.Default(),
		ProcessParams: IdentityProcessor,
		SuccessPolicy: TrustOperation,
		now:           time.Now,
	}
	err := controller.WithOptions(options...)
	if err != nil {
		return nil, err
	}
	if controller.Responder == nil {
		responder := NewNegotiatingResponder(nil, controller.Config)
		responder.Logger = controller.logger()
		controller.Responder = responder
	}
	return controller, nil
}

// RespondOption configures a single Respond call.
type RespondOption func(*respondOptions)

type respondOptions struct {
	namespace []string
	onSuccess func(*Result) error
}

// WithNamespace qualifies the resource location generated by the responder, e.g. "admin".
func WithNamespace(namespace ...string) RespondOption {
	return func(opts *respondOptions) {
		opts.namespace = append(opts.namespace, namespace...)
	}
}

// WithCallback sets a callback invoked once with the result when the operation succeeds, before the responder runs.
func WithCallback(onSuccess func(*Result) error) RespondOption {
	return func(opts *respondOptions) {
		opts.onSuccess = onSuccess
	}
}

// Run normalizes the request params, invokes the operation's full entry point and binds the result.
// When the operation succeeds and onSuccess is non-nil, onSuccess is called exactly once with the result.
func (controller *Controller) Run(req *http.Request, typ Type, onSuccess func(*Result) error) (res *Result, err error) {
	d := controller.begin(req, verbRun, typ)
	defer func() { d.finish(res, err) }()

	params, err := controller.params(d.req, typ, false)
	if err != nil {
		return nil, err
	}
	return controller.run(d, typ, params, onSuccess)
}

// Present normalizes the request params, invokes only the operation's setup entry point and binds the result.
func (controller *Controller) Present(req *http.Request, typ Type) (res *Result, err error) {
	d := controller.begin(req, verbPresent, typ)
	defer func() { d.finish(res, err) }()

	params, err := controller.params(d.req, typ, false)
	if err != nil {
		return nil, err
	}
	return controller.present(d, typ, params)
}

// Form presents the operation and prepopulates its contract exactly once, after the result is bound.
func (controller *Controller) Form(req *http.Request, typ Type) (res *Result, err error) {
	d := controller.begin(req, verbForm, typ)
	defer func() { d.finish(res, err) }()

	params, err := controller.params(d.req, typ, false)
	if err != nil {
		return nil, err
	}
	res, err = controller.present(d, typ, params)
	if err != nil {
		return nil, err
	}
	if res.Form == nil {
		return res, fmt.Errorf("prepopulating %s : %w", typ.ModelName(), ErrNoContract)
	}
	if err := res.Form.Prepopulate(d.req.Context(), params); err != nil {
		return res, err
	}
	return res, nil
}

// Respond runs the operation and hands the result to the Responder exactly once.
//
// Unless the request carries HTML form input, the params key named by typ.ModelName() is replaced
// with the raw request body before normalization, so the operation deserializes the document itself.
func (controller *Controller) Respond(w http.ResponseWriter, req *http.Request, typ Type, options ...RespondOption) (res *Result, err error) {
	d := controller.begin(req, verbRespond, typ)
	defer func() { d.finish(res, err) }()

	if controller.Responder == nil {
		return nil, ErrNoResponder
	}

	opts := &respondOptions{}
	for _, option := range options {
		option(opts)
	}

	if d.formatErr != nil {
		return nil, d.formatErr
	}

	params, err := controller.params(d.req, typ, true)
	if err != nil {
		return nil, err
	}
	res, err = controller.run(d, typ, params, opts.onSuccess)
	if err != nil {
		return res, err
	}

	if err := controller.Responder.Respond(w, ContextWithResult(d.req, res), res, opts.namespace...); err != nil {
		return res, err
	}
	return res, nil
}

// params builds the request params, swaps in the raw body for document requests and applies the hook.
func (controller *Controller) params(req *http.Request, typ Type, rawBody bool) (Params, error) {
	params, err := ParamsFromRequest(req)
	if err != nil {
		return nil, err
	}

	if rawBody {
		format, _ := FormatFromContext(req.Context())
		isForm, err := IsFormRequest(req, format)
		if err != nil {
			return nil, err
		}
		if !isForm {
			body, err := ReadRawBody(req, controller.Config.MaxBodyBytes)
			if err != nil {
				return nil, err
			}
			params[typ.ModelName()] = string(body)
		}
	}

	processor := controller.ProcessParams
	if processor == nil {
		processor = IdentityProcessor
	}
	processed, err := processor(req, params)
	if err != nil {
		return nil, fmt.Errorf("processing params for %s : %w", typ.ModelName(), err)
	}
	if processed == nil {
		processed = make(Params)
	}
	return processed, nil
}

func (controller *Controller) run(d *dispatch, typ Type, params Params, onSuccess func(*Result) error) (*Result, error) {
	ok, op, err := typ.Run(d.req.Context(), params)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, fmt.Errorf("running %s : %w", typ.ModelName(), ErrNilOperation)
	}

	policy := controller.SuccessPolicy
	if policy == nil {
		policy = TrustOperation
	}
	res := newResult(d.id, typ, op, policy(ok, op))

	if res.Valid && onSuccess != nil {
		if err := onSuccess(res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (controller *Controller) present(d *dispatch, typ Type, params Params) (*Result, error) {
	op, err := typ.Present(d.req.Context(), params)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, fmt.Errorf("presenting %s : %w", typ.ModelName(), ErrNilOperation)
	}
	return newResult(d.id, typ, op, true), nil
}

// dispatch tracks one entry point call for logging, metrics and the journal.
type dispatch struct {
	controller *Controller
	req        *http.Request
	id         uuid.UUID
	verb       string
	operation  string
	format     Format
	formatErr  error
	started    time.Time
}

func (controller *Controller) begin(req *http.Request, verb string, typ Type) *dispatch {
	id := requestID(req)
	req = ContextWithRequestID(req, id)

	format, formatErr := NegotiateFormat(req, controller.Config.Format())
	if formatErr == nil {
		req = ContextWithFormat(req, format)
	}

	return &dispatch{
		controller: controller,
		req:        req,
		id:         id,
		verb:       verb,
		operation:  typ.ModelName(),
		format:     format,
		formatErr:  formatErr,
		started:    controller.clock(),
	}
}

func (d *dispatch) finish(res *Result, err error) {
	controller := d.controller
	elapsed := controller.clock().Sub(d.started)

	outcome := outcomeValid
	valid := res != nil && res.Valid
	switch {
	case err != nil:
		outcome = outcomeError
	case !valid:
		outcome = outcomeInvalid
	}

	logger := controller.logger().With(
		"request_id", d.id.String(),
		"verb", d.verb,
		"operation", d.operation,
	)
	if err != nil {
		logger.Warn("dispatch failed", "error", err, "duration", elapsed)
	} else {
		logger.Debug("dispatch finished", "valid", valid, "format", string(d.format), "duration", elapsed)
	}

	controller.metrics.observe(d.verb, d.operation, outcome, elapsed)

	if controller.Journal == nil || !controller.JournalScope.Matches(d.operation, d.req.URL.Path) {
		return
	}
	entry := &domain.Dispatch{
		ID:           journalID(),
		RequestID:    d.id,
		Verb:         d.verb,
		Operation:    d.operation,
		Valid:        valid,
		Format:       string(d.format),
		Method:       d.req.Method,
		Path:         d.req.URL.Path,
		Duration:     elapsed,
		DispatchedAt: d.started,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if journalErr := controller.Journal.InsertDispatch(entry); journalErr != nil {
		logger.Error("journalling dispatch", "error", journalErr)
	}
}

// journalID returns a time ordered ID for a journal entry. Request IDs may repeat, entry IDs do not.
func journalID() uuid.UUID {
	if id, err := uuid.NewV7(); err == nil {
		return id
	}
	return uuid.New()
}

func (controller *Controller) clock() time.Time {
	if controller.now == nil {
		return time.Now()
	}
	return controller.now()
}

func (controller *Controller) logger() *slog.Logger {
	if controller.Logger == nil {
		return slog.Default()
	}
	return controller.Logger
}

// IsClientError reports whether err was caused by the request rather than by an operation or responder.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedParams) ||
		errors.Is(err, ErrNotAcceptable) ||
		errors.Is(err, ErrBodyTooLarge) ||
		errors.Is(err, ErrUnsupportedEncoding)
}
