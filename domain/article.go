package domain

import (
	"encoding/xml"
	"path"
	"time"

	"github.com/google/uuid"
)

// ArticleRepository defines the interface for persisting articles of the demo application.
type ArticleRepository interface {
	// CreateArticle stores a new article. The article ID must already be set.
	CreateArticle(article *Article) error

	// GetArticle returns the article with the given ID.
	// It returns an error if the article does not exist.
	GetArticle(id uuid.UUID) (*Article, error)

	// UpdateArticle overwrites the stored fields of an existing article.
	UpdateArticle(article *Article) error

	// DeleteArticle removes the article with the given ID.
	DeleteArticle(id uuid.UUID) error

	// GetArticles returns every stored article, newest first.
	GetArticles() ([]*Article, error)
}

// Article is the model exposed by the demo operations.
type Article struct {
	XMLName     xml.Name   `json:"-" xml:"article" yaml:"-"`
	ID          uuid.UUID  `json:"id" xml:"id" yaml:"id"`
	Title       string     `json:"title" xml:"title" yaml:"title"`
	Body        string     `json:"body" xml:"body" yaml:"body"`
	Author      string     `json:"author" xml:"author" yaml:"author"`
	Tags        []string   `json:"tags" xml:"tags>tag" yaml:"tags"`
	PublishedAt *time.Time `json:"published_at,omitempty" xml:"published_at,omitempty" yaml:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" xml:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" xml:"updated_at" yaml:"updated_at"`
}

// Published reports whether the article has been published.
func (a *Article) Published() bool {
	return a.PublishedAt != nil
}

// Identity returns the article ID as used in URLs.
func (a *Article) Identity() string {
	return a.ID.String()
}

// Location returns the URL path of the article under the given namespace, for example /admin/articles/{id}.
func (a *Article) Location(namespace ...string) string {
	segments := append([]string{"/"}, namespace...)
	return path.Join(append(segments, "articles", a.Identity())...)
}
