package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/conduit/domain"
)

var _ domain.DispatchRepository = (*Repository)(nil)

var (
	// ErrDispatchNotFound is returned when no journal entry exists for a journal or request ID.
	ErrDispatchNotFound = errors.New("dispatch not found")
)

// dbDispatch represents a dispatch journal entry as stored in the database.
type dbDispatch struct {
	ID           uuid.UUID      `db:"id"`
	RequestID    uuid.UUID      `db:"request_id"`
	Verb         string         `db:"verb"`
	Operation    string         `db:"operation"`
	Valid        bool           `db:"valid"`
	Format       string         `db:"format"`
	Method       string         `db:"method"`
	Path         string         `db:"path"`
	Error        sql.NullString `db:"error"`
	DurationNS   int64          `db:"duration_ns"`
	DispatchedAt time.Time      `db:"dispatched_at"`
}

// toDomainDispatch converts a dbDispatch to a domain.Dispatch.
func toDomainDispatch(dbDispatch *dbDispatch) *domain.Dispatch {
	return &domain.Dispatch{
		ID:           dbDispatch.ID,
		RequestID:    dbDispatch.RequestID,
		Verb:         dbDispatch.Verb,
		Operation:    dbDispatch.Operation,
		Valid:        dbDispatch.Valid,
		Format:       dbDispatch.Format,
		Method:       dbDispatch.Method,
		Path:         dbDispatch.Path,
		Error:        dbDispatch.Error.String,
		Duration:     time.Duration(dbDispatch.DurationNS),
		DispatchedAt: dbDispatch.DispatchedAt,
	}
}

// fromDomainDispatch converts a domain.Dispatch to a dbDispatch.
func fromDomainDispatch(dispatch *domain.Dispatch) *dbDispatch {
	return &dbDispatch{
		ID:           dispatch.ID,
		RequestID:    dispatch.RequestID,
		Verb:         dispatch.Verb,
		Operation:    dispatch.Operation,
		Valid:        dispatch.Valid,
		Format:       dispatch.Format,
		Method:       dispatch.Method,
		Path:         dispatch.Path,
		Error:        sql.NullString{String: dispatch.Error, Valid: dispatch.Error != ""},
		DurationNS:   int64(dispatch.Duration),
		DispatchedAt: dispatch.DispatchedAt,
	}
}

// InsertDispatch saves a new dispatch record to the journal.
func (repo *Repository) InsertDispatch(dispatch *domain.Dispatch) error {
	query := `INSERT INTO dispatch (id, request_id, verb, operation, valid, format, method, path, error, duration_ns, dispatched_at)
	          VALUES (:id, :request_id, :verb, :operation, :valid, :format, :method, :path, :error, :duration_ns, :dispatched_at)`

	_, err := repo.dbConn.NamedExec(query, fromDomainDispatch(dispatch))
	if err != nil {
		return fmt.Errorf("inserting dispatch %s: %w", dispatch.ID, err)
	}

	return nil
}

// GetDispatches returns the most recent dispatch records, newest first.
func (repo *Repository) GetDispatches(limit int) ([]*domain.Dispatch, error) {
	if limit <= 0 {
		limit = -1
	}

	var dbDispatches []*dbDispatch
	query := `SELECT id, request_id, verb, operation, valid, format, method, path, error, duration_ns, dispatched_at
	          FROM dispatch
	          ORDER BY dispatched_at DESC, id DESC
	          LIMIT ?`

	err := repo.dbConn.Select(&dbDispatches, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching dispatches: %w", err)
	}

	dispatches := make([]*domain.Dispatch, len(dbDispatches))
	for i, dbDispatch := range dbDispatches {
		dispatches[i] = toDomainDispatch(dbDispatch)
	}

	return dispatches, nil
}

// GetDispatch returns a single dispatch record by its journal ID.
func (repo *Repository) GetDispatch(id uuid.UUID) (*domain.Dispatch, error) {
	var dbDispatch dbDispatch
	query := `SELECT id, request_id, verb, operation, valid, format, method, path, error, duration_ns, dispatched_at
	          FROM dispatch WHERE id = ?`

	err := repo.dbConn.Get(&dbDispatch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDispatchNotFound
		}
		return nil, fmt.Errorf("fetching dispatch %s: %w", id, err)
	}

	return toDomainDispatch(&dbDispatch), nil
}

// GetRequestDispatches returns every dispatch record sharing a request ID, oldest first.
func (repo *Repository) GetRequestDispatches(requestID uuid.UUID) ([]*domain.Dispatch, error) {
	var dbDispatches []*dbDispatch
	query := `SELECT id, request_id, verb, operation, valid, format, method, path, error, duration_ns, dispatched_at
	          FROM dispatch
	          WHERE request_id = ?
	          ORDER BY dispatched_at ASC, id ASC`

	err := repo.dbConn.Select(&dbDispatches, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("fetching dispatches of request %s: %w", requestID, err)
	}
	if len(dbDispatches) == 0 {
		return nil, ErrDispatchNotFound
	}

	dispatches := make([]*domain.Dispatch, len(dbDispatches))
	for i, dbDispatch := range dbDispatches {
		dispatches[i] = toDomainDispatch(dbDispatch)
	}

	return dispatches, nil
}
