package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/conduit/domain"
)

var _ domain.ArticleRepository = (*Repository)(nil)

var (
	// ErrArticleNotFound is returned when an article does not exist.
	ErrArticleNotFound = errors.New("article not found")
)

// dbArticle represents an article as stored in the database.
type dbArticle struct {
	ID          uuid.UUID    `db:"id"`
	Title       string       `db:"title"`
	Body        string       `db:"body"`
	Author      string       `db:"author"`
	Tags        StringList   `db:"tags"`
	PublishedAt sql.NullTime `db:"published_at"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

// toDomainArticle converts a dbArticle to a domain.Article.
func toDomainArticle(dbArticle *dbArticle) *domain.Article {
	article := &domain.Article{
		ID:        dbArticle.ID,
		Title:     dbArticle.Title,
		Body:      dbArticle.Body,
		Author:    dbArticle.Author,
		Tags:      []string(dbArticle.Tags),
		CreatedAt: dbArticle.CreatedAt,
		UpdatedAt: dbArticle.UpdatedAt,
	}

	if dbArticle.PublishedAt.Valid {
		publishedAt := dbArticle.PublishedAt.Time
		article.PublishedAt = &publishedAt
	}

	return article
}

// fromDomainArticle converts a domain.Article to a dbArticle.
func fromDomainArticle(article *domain.Article) *dbArticle {
	dbArticle := &dbArticle{
		ID:        article.ID,
		Title:     article.Title,
		Body:      article.Body,
		Author:    article.Author,
		Tags:      StringList(article.Tags),
		CreatedAt: article.CreatedAt,
		UpdatedAt: article.UpdatedAt,
	}

	if article.PublishedAt != nil {
		dbArticle.PublishedAt = sql.NullTime{Time: *article.PublishedAt, Valid: true}
	}

	return dbArticle
}

// CreateArticle stores a new article.
func (repo *Repository) CreateArticle(article *domain.Article) error {
	query := `INSERT INTO article (id, title, body, author, tags, published_at, created_at, updated_at)
	          VALUES (:id, :title, :body, :author, :tags, :published_at, :created_at, :updated_at)`

	_, err := repo.dbConn.NamedExec(query, fromDomainArticle(article))
	if err != nil {
		return fmt.Errorf("inserting article %s: %w", article.ID, err)
	}

	return nil
}

// GetArticle returns the article with the given ID.
func (repo *Repository) GetArticle(id uuid.UUID) (*domain.Article, error) {
	var dbArticle dbArticle
	query := `SELECT id, title, body, author, tags, published_at, created_at, updated_at
	          FROM article WHERE id = ?`

	err := repo.dbConn.Get(&dbArticle, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArticleNotFound
		}
		return nil, fmt.Errorf("fetching article %s: %w", id, err)
	}

	return toDomainArticle(&dbArticle), nil
}

// UpdateArticle overwrites the stored fields of an existing article.
func (repo *Repository) UpdateArticle(article *domain.Article) error {
	query := `UPDATE article
	          SET title = :title, body = :body, author = :author, tags = :tags,
	              published_at = :published_at, updated_at = :updated_at
	          WHERE id = :id`

	result, err := repo.dbConn.NamedExec(query, fromDomainArticle(article))
	if err != nil {
		return fmt.Errorf("updating article %s: %w", article.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update rows affected for %s: %w", article.ID, err)
	}

	if rowsAffected == 0 {
		return ErrArticleNotFound
	}

	return nil
}

// DeleteArticle removes the article with the given ID.
func (repo *Repository) DeleteArticle(id uuid.UUID) error {
	query := `DELETE FROM article WHERE id = ?`

	result, err := repo.dbConn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("deleting article %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deletion rows affected for %s: %w", id, err)
	}

	if rowsAffected == 0 {
		return ErrArticleNotFound
	}

	return nil
}

// GetArticles returns every stored article, newest first.
func (repo *Repository) GetArticles() ([]*domain.Article, error) {
	var dbArticles []*dbArticle
	query := `SELECT id, title, body, author, tags, published_at, created_at, updated_at
	          FROM article ORDER BY created_at DESC, id DESC`

	err := repo.dbConn.Select(&dbArticles, query)
	if err != nil {
		return nil, fmt.Errorf("fetching articles: %w", err)
	}

	articles := make([]*domain.Article, len(dbArticles))
	for i, dbArticle := range dbArticles {
		articles[i] = toDomainArticle(dbArticle)
	}

	return articles, nil
}
