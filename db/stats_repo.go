package db

import (
	"fmt"

	"github.com/tfkr-ae/conduit/domain"
)

var _ domain.StatsRepository = (*Repository)(nil)

// CountDispatches returns the total number of journalled dispatches.
func (repo *Repository) CountDispatches() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM dispatch`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting dispatch count: %w", err)
	}

	return count, nil
}

// CountInvalidDispatches returns the number of dispatches whose operation reported failure.
func (repo *Repository) CountInvalidDispatches() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM dispatch WHERE valid = FALSE`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting invalid dispatch count: %w", err)
	}

	return count, nil
}

// CountArticles returns the total number of stored articles.
func (repo *Repository) CountArticles() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM article`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting article count: %w", err)
	}

	return count, nil
}
