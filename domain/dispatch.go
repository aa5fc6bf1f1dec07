package domain

import (
	"time"

	"github.com/google/uuid"
)

// DispatchRepository defines the interface for the dispatch journal.
// Each controller entry point call produces exactly one Dispatch record, so a request that
// reaches several entry points, or that reuses a request ID, owns several records.
type DispatchRepository interface {
	// InsertDispatch saves a new dispatch record to the journal.
	InsertDispatch(dispatch *Dispatch) error

	// GetDispatches returns the most recent dispatch records, newest first.
	// A limit of zero or less returns every record.
	GetDispatches(limit int) ([]*Dispatch, error)

	// GetDispatch returns a single dispatch record by its journal ID.
	// It returns an error if no record exists for the ID.
	GetDispatch(id uuid.UUID) (*Dispatch, error)

	// GetRequestDispatches returns every dispatch record of a request, oldest first.
	// It returns an error if no record exists for the request ID.
	GetRequestDispatches(requestID uuid.UUID) ([]*Dispatch, error)
}

// Dispatch is a journal entry describing one invocation of an operation through the controller.
type Dispatch struct {
	ID           uuid.UUID     // Journal entry ID, unique per record.
	RequestID    uuid.UUID     // Request ID shared with the request context.
	Verb         string        // Controller entry point: run, present, form or respond.
	Operation    string        // Model name of the operation type.
	Valid        bool          // Success indicator after the success policy was applied.
	Format       string        // Negotiated response format (html, json, xml, yaml).
	Method       string        // HTTP method of the originating request.
	Path         string        // URL path of the originating request.
	Error        string        // Error text when the dispatch returned an error.
	Duration     time.Duration // Wall time spent inside the dispatch.
	DispatchedAt time.Time     // The time the dispatch started.
}
