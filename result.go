package conduit

import "github.com/google/uuid"

// Result is what a controller entry point binds after invoking an operation.
// Operation, Model and Form are always set together, before any callback,
// prepopulate or responder step runs.
type Result struct {
	RequestID uuid.UUID // Request ID of the dispatch
	ModelName string    // Model name of the operation type
	Operation Operation // The operation instance
	Model     any       // The operation's model
	Form      Contract  // The operation's contract, nil when it has none
	Valid     bool      // Success indicator after the success policy; always true for Present and Form
}

func newResult(id uuid.UUID, typ Type, op Operation, valid bool) *Result {
	return &Result{
		RequestID: id,
		ModelName: typ.ModelName(),
		Operation: op,
		Model:     op.Model(),
		Form:      op.Contract(),
		Valid:     valid,
	}
}

// Errors returns the validation errors of the contract, falling back to the operation.
// It returns nil when neither reports errors.
func (res *Result) Errors() map[string][]string {
	if reporter, ok := res.Form.(ErrorReporter); ok {
		if errs := reporter.Errors(); len(errs) > 0 {
			return errs
		}
	}
	if reporter, ok := res.Operation.(ErrorReporter); ok {
		if errs := reporter.Errors(); len(errs) > 0 {
			return errs
		}
	}
	return nil
}
