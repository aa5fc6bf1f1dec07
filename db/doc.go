// Package db provides the sqlite storage layer for conduit.
// It persists the dispatch journal written by the controller and the articles
// served by the demo application.
//
// This package is responsible for:
//   - Establishing the database connection and applying migrations (`db.go`, `migrations/`).
//   - Defining database-specific structs that map to the SQL tables.
//   - Implementing the repository interfaces of the `domain` package.
//   - Converting between domain structs and database rows, including `sql.Null*` fields
//     and JSON encoded columns (`types.go`).
package db
