package sample

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tfkr-ae/conduit/db"
	"github.com/tfkr-ae/conduit/domain"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRepository(t *testing.T) *db.Repository {
	t.Helper()
	conn, err := db.New(filepath.Join(t.TempDir(), "sample.db"))
	require.NoError(t, err)

	repo := db.NewRepository(conn)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func setupStore(t *testing.T) (*Store, *db.Repository) {
	t.Helper()
	repo := setupRepository(t)
	store := NewStore(repo)
	store.Now = func() time.Time { return fixedNow }
	return store, repo
}

func createArticle(t *testing.T, repo domain.ArticleRepository, title string) *domain.Article {
	t.Helper()
	article := &domain.Article{
		ID:        uuid.New(),
		Title:     title,
		Body:      "Body of " + title,
		Author:    "ana",
		Tags:      []string{"go"},
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
	require.NoError(t, repo.CreateArticle(article))
	return article
}
