package conduit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tfkr-ae/conduit/domain"
)

type testModel struct {
	ID    string `json:"id" xml:"id" yaml:"id"`
	Title string `json:"title" xml:"title" yaml:"title"`
}

func (model *testModel) Identity() string {
	return model.ID
}

type testContract struct {
	errs         map[string][]string
	err          error
	prepopulated int
	params       Params
}

func (contract *testContract) Prepopulate(_ context.Context, params Params) error {
	contract.prepopulated++
	contract.params = params
	return contract.err
}

func (contract *testContract) Errors() map[string][]string {
	return contract.errs
}

type testOperation struct {
	model    *testModel
	contract *testContract
}

func (op *testOperation) Model() any {
	return op.model
}

func (op *testOperation) Contract() Contract {
	if op.contract == nil {
		return nil
	}
	return op.contract
}

// testType records every entry point call and the params it received.
type testType struct {
	ok         bool
	err        error
	nilOp      bool
	noContract bool

	contract     *testContract
	op           *testOperation
	runCalls     int
	presentCalls int
	params       Params
}

func newTestType(ok bool) *testType {
	return &testType{ok: ok, contract: &testContract{}}
}

func (typ *testType) ModelName() string {
	return "article"
}

func (typ *testType) operation() *testOperation {
	op := &testOperation{model: &testModel{ID: "42", Title: "hello"}}
	if !typ.noContract {
		op.contract = typ.contract
	}
	typ.op = op
	return op
}

func (typ *testType) Run(_ context.Context, params Params) (bool, Operation, error) {
	typ.runCalls++
	typ.params = params
	if typ.err != nil {
		return false, nil, typ.err
	}
	if typ.nilOp {
		return typ.ok, nil, nil
	}
	return typ.ok, typ.operation(), nil
}

func (typ *testType) Present(_ context.Context, params Params) (Operation, error) {
	typ.presentCalls++
	typ.params = params
	if typ.err != nil {
		return nil, typ.err
	}
	if typ.nilOp {
		return nil, nil
	}
	return typ.operation(), nil
}

type recordingResponder struct {
	calls     int
	res       *Result
	namespace []string
	req       *http.Request
	err       error
}

func (responder *recordingResponder) Respond(w http.ResponseWriter, req *http.Request, res *Result, namespace ...string) error {
	responder.calls++
	responder.res = res
	responder.namespace = namespace
	responder.req = req
	if responder.err != nil {
		return responder.err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []*domain.Dispatch
	err     error
}

var _ domain.DispatchRepository = (*memoryJournal)(nil)

func (journal *memoryJournal) InsertDispatch(dispatch *domain.Dispatch) error {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if journal.err != nil {
		return journal.err
	}
	journal.entries = append(journal.entries, dispatch)
	return nil
}

func (journal *memoryJournal) GetDispatches(limit int) ([]*domain.Dispatch, error) {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	if limit < 0 || limit > len(journal.entries) {
		limit = len(journal.entries)
	}
	return journal.entries[:limit], nil
}

func (journal *memoryJournal) GetDispatch(id uuid.UUID) (*domain.Dispatch, error) {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	for _, entry := range journal.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, io.EOF
}

func (journal *memoryJournal) GetRequestDispatches(requestID uuid.UUID) ([]*domain.Dispatch, error) {
	journal.mu.Lock()
	defer journal.mu.Unlock()
	var dispatches []*domain.Dispatch
	for _, entry := range journal.entries {
		if entry.RequestID == requestID {
			dispatches = append(dispatches, entry)
		}
	}
	if len(dispatches) == 0 {
		return nil, io.EOF
	}
	return dispatches, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupController(t *testing.T, options ...func(*Controller) error) *Controller {
	t.Helper()
	options = append([]func(*Controller) error{WithLogger(discardLogger())}, options...)
	controller, err := New(options...)
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	return controller
}
