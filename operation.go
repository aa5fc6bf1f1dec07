package conduit

import (
	"context"
	"errors"
)

var (
	// ErrNilOperation is returned when an operation type returns no operation instance
	ErrNilOperation = errors.New("operation type returned a nil operation")

	// ErrNoContract is returned by Form when the presented operation has no contract to prepopulate
	ErrNoContract = errors.New("operation has no contract")
)

// Type is an operation type: the entry points used to build and invoke one operation per request.
type Type interface {
	// ModelName names the model handled by the operation. It is the params key that receives
	// the raw request body in Respond and the label used in logs, metrics and the journal.
	ModelName() string

	// Run performs the full operation: setup, validation and processing.
	// The boolean reports success; the operation instance is returned either way.
	Run(ctx context.Context, params Params) (bool, Operation, error)

	// Present performs only the setup of the operation, such as looking up the model,
	// without processing. It is used for rendering before any mutation.
	Present(ctx context.Context, params Params) (Operation, error)
}

// Operation is an operation instance built for a single request.
type Operation interface {
	// Model returns the model found or created by the operation.
	Model() any
	// Contract returns the form/contract validating the operation input.
	// An operation without one returns an untyped nil: a nil pointer wrapped in the interface
	// is treated as a contract and reaches Prepopulate.
	Contract() Contract
}

// Contract is the validation and coercion object owned by an operation.
type Contract interface {
	// Prepopulate fills the contract with values needed before rendering a form.
	Prepopulate(ctx context.Context, params Params) error
}

// ErrorReporter is implemented by contracts or operations that expose validation errors keyed by field.
type ErrorReporter interface {
	Errors() map[string][]string
}

// JSONRenderer is implemented by operations that serialize themselves as JSON.
type JSONRenderer interface {
	RenderJSON() ([]byte, error)
}

// XMLRenderer is implemented by operations that serialize themselves as XML.
type XMLRenderer interface {
	RenderXML() ([]byte, error)
}

// YAMLRenderer is implemented by operations that serialize themselves as YAML.
type YAMLRenderer interface {
	RenderYAML() ([]byte, error)
}

// Locator is implemented by models that know the URL path of their resource.
type Locator interface {
	Location(namespace ...string) string
}

// Identifier is implemented by models with a stable identity used in default locations.
type Identifier interface {
	Identity() string
}

// SuccessPolicy decides whether an operation run counts as a success.
// It receives the boolean returned by Type.Run and the operation instance.
type SuccessPolicy func(ok bool, op Operation) bool

// TrustOperation is the default SuccessPolicy. It returns the operation's own verdict.
func TrustOperation(ok bool, _ Operation) bool {
	return ok
}

// ContractValidity requires the operation's verdict and an empty error set on its contract.
func ContractValidity(ok bool, op Operation) bool {
	if !ok {
		return false
	}
	if reporter, isReporter := op.Contract().(ErrorReporter); isReporter {
		return len(reporter.Errors()) == 0
	}
	return true
}
