package db

import (
	"embed"
	"fmt"
	"net/url"

	_ "github.com/tfkr-ae/conduit/db/migrations"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql migrations/*.go
var embedMigrations embed.FS

// pragmas are applied by the sqlite driver to every new connection.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// Repository stores the dispatch journal and the demo articles.
// One value serves the domain.DispatchRepository, domain.ArticleRepository and domain.StatsRepository interfaces.
type Repository struct {
	dbConn *sqlx.DB
}

// NewRepository wraps a connection returned by New.
func NewRepository(conn *sqlx.DB) *Repository {
	return &Repository{
		dbConn: conn,
	}
}

// Close closes the underlying connection.
func (repo *Repository) Close() error {
	err := repo.dbConn.Close()
	if err != nil {
		return fmt.Errorf("closing repo : %w", err)
	}
	return nil
}

// New opens the SQLite file at path and migrates it to the latest schema.
// Writes go through a single connection, and readers wait on a locked database instead of failing.
func New(path string) (*sqlx.DB, error) {
	query := url.Values{"_pragma": pragmas}
	conn, err := sqlx.Connect("sqlite", path+"?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("connecting to %s : %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func migrate(conn *sqlx.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return fmt.Errorf("setting migration dialect : %w", err)
	}
	if err := goose.Up(conn.DB, "migrations"); err != nil {
		return fmt.Errorf("migrating schema : %w", err)
	}
	return nil
}
