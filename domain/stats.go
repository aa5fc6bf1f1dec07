package domain

// StatsRepository defines the interface for retrieving counts about the stored data.
type StatsRepository interface {
	// CountDispatches returns the total number of journalled dispatches.
	CountDispatches() (int, error)
	// CountInvalidDispatches returns the number of dispatches whose operation reported failure.
	CountInvalidDispatches() (int, error)
	// CountArticles returns the total number of stored articles.
	CountArticles() (int, error)
}
