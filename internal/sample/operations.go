// Package sample is the article application served by the conduit demo server.
// It defines the article operation types, their form and the HTTP handlers dispatching them.
package sample

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/conduit"
	"github.com/tfkr-ae/conduit/db"
	"github.com/tfkr-ae/conduit/domain"
	"github.com/tfkr-ae/conduit/render"
)

// modelName is the model name of every article operation type.
const modelName = "article"

var (
	// ErrArticleNotFound is returned by operations when the requested article does not exist
	ErrArticleNotFound = errors.New("article not found")
)

// Store gives the article operation types access to the repository and the clock.
type Store struct {
	Articles domain.ArticleRepository
	Now      func() time.Time
}

// NewStore returns a Store backed by repo using the wall clock.
func NewStore(repo domain.ArticleRepository) *Store {
	return &Store{
		Articles: repo,
		Now:      time.Now,
	}
}

func (store *Store) now() time.Time {
	if store.Now == nil {
		return time.Now().UTC()
	}
	return store.Now().UTC()
}

// find loads the article named by the "id" param.
func (store *Store) find(params conduit.Params) (*domain.Article, error) {
	id, err := uuid.Parse(params.String("id"))
	if err != nil {
		return nil, fmt.Errorf("parsing article id %q : %w", params.String("id"), ErrArticleNotFound)
	}

	article, err := store.Articles.GetArticle(id)
	if err != nil {
		if errors.Is(err, db.ErrArticleNotFound) {
			return nil, fmt.Errorf("getting article %s : %w", id, ErrArticleNotFound)
		}
		return nil, fmt.Errorf("getting article %s : %w", id, err)
	}
	return article, nil
}

// ArticleOperation is the operation instance of the single article operation types.
type ArticleOperation struct {
	article *domain.Article
	form    *ArticleForm
	errs    map[string][]string
}

// Model implements the conduit.Operation interface
func (op *ArticleOperation) Model() any {
	return op.article
}

// Contract implements the conduit.Operation interface
func (op *ArticleOperation) Contract() conduit.Contract {
	if op.form == nil {
		return nil
	}
	return op.form
}

// Errors returns the errors raised by the operation itself rather than by its form.
func (op *ArticleOperation) Errors() map[string][]string {
	return op.errs
}

// Article returns the article of the operation.
func (op *ArticleOperation) Article() *domain.Article {
	return op.article
}

// Create stores a new article.
type Create struct{ *Store }

// Create returns the operation type creating articles.
func (store *Store) Create() Create { return Create{store} }

func (Create) ModelName() string { return modelName }

func (typ Create) Present(_ context.Context, _ conduit.Params) (conduit.Operation, error) {
	article := &domain.Article{}
	return &ArticleOperation{article: article, form: NewArticleForm(article)}, nil
}

func (typ Create) Run(ctx context.Context, params conduit.Params) (bool, conduit.Operation, error) {
	presented, _ := typ.Present(ctx, params)
	op := presented.(*ArticleOperation)
	if !op.form.Validate(params) {
		return false, op, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return false, op, fmt.Errorf("generating article id : %w", err)
	}
	now := typ.now()
	op.article.ID = id
	op.article.CreatedAt = now
	op.article.UpdatedAt = now
	op.form.Sync(op.article)

	if err := typ.Articles.CreateArticle(op.article); err != nil {
		return false, op, err
	}
	return true, op, nil
}

// Update changes the fields of an existing article.
type Update struct{ *Store }

// Update returns the operation type updating articles.
func (store *Store) Update() Update { return Update{store} }

func (Update) ModelName() string { return modelName }

func (typ Update) Present(_ context.Context, params conduit.Params) (conduit.Operation, error) {
	article, err := typ.find(params)
	if err != nil {
		return nil, err
	}
	return &ArticleOperation{article: article, form: NewArticleForm(article)}, nil
}

func (typ Update) Run(ctx context.Context, params conduit.Params) (bool, conduit.Operation, error) {
	presented, err := typ.Present(ctx, params)
	if err != nil {
		return false, nil, err
	}
	op := presented.(*ArticleOperation)
	if !op.form.Validate(params) {
		return false, op, nil
	}

	op.form.Sync(op.article)
	op.article.UpdatedAt = typ.now()
	if err := typ.Articles.UpdateArticle(op.article); err != nil {
		return false, op, err
	}
	return true, op, nil
}

// Show looks up a single article.
type Show struct{ *Store }

// Show returns the operation type showing articles.
func (store *Store) Show() Show { return Show{store} }

func (Show) ModelName() string { return modelName }

func (typ Show) Present(_ context.Context, params conduit.Params) (conduit.Operation, error) {
	article, err := typ.find(params)
	if err != nil {
		return nil, err
	}
	return &ArticleOperation{article: article}, nil
}

func (typ Show) Run(ctx context.Context, params conduit.Params) (bool, conduit.Operation, error) {
	op, err := typ.Present(ctx, params)
	if err != nil {
		return false, nil, err
	}
	return true, op, nil
}

// Delete removes an article.
type Delete struct{ *Store }

// Delete returns the operation type deleting articles.
func (store *Store) Delete() Delete { return Delete{store} }

func (Delete) ModelName() string { return modelName }

func (typ Delete) Present(_ context.Context, params conduit.Params) (conduit.Operation, error) {
	article, err := typ.find(params)
	if err != nil {
		return nil, err
	}
	return &ArticleOperation{article: article}, nil
}

func (typ Delete) Run(ctx context.Context, params conduit.Params) (bool, conduit.Operation, error) {
	op, err := typ.Present(ctx, params)
	if err != nil {
		return false, nil, err
	}
	article := op.(*ArticleOperation).article
	if err := typ.Articles.DeleteArticle(article.ID); err != nil {
		return false, op, err
	}
	return true, op, nil
}

// Publish stamps the publication time of an unpublished article.
type Publish struct{ *Store }

// Publish returns the operation type publishing articles.
func (store *Store) Publish() Publish { return Publish{store} }

func (Publish) ModelName() string { return modelName }

func (typ Publish) Present(_ context.Context, params conduit.Params) (conduit.Operation, error) {
	article, err := typ.find(params)
	if err != nil {
		return nil, err
	}
	return &ArticleOperation{article: article}, nil
}

func (typ Publish) Run(ctx context.Context, params conduit.Params) (bool, conduit.Operation, error) {
	presented, err := typ.Present(ctx, params)
	if err != nil {
		return false, nil, err
	}
	op := presented.(*ArticleOperation)
	if op.article.Published() {
		op.errs = map[string][]string{"published_at": {"is already set"}}
		return false, op, nil
	}

	now := typ.now()
	op.article.PublishedAt = &now
	op.article.UpdatedAt = now
	if err := typ.Articles.UpdateArticle(op.article); err != nil {
		return false, op, err
	}
	return true, op, nil
}

// ArticleList is the operation instance of Index.
type ArticleList struct {
	articles []*domain.Article
}

// Model implements the conduit.Operation interface
func (op *ArticleList) Model() any {
	return op.articles
}

// Contract implements the conduit.Operation interface
func (op *ArticleList) Contract() conduit.Contract {
	return nil
}

// RenderXML wraps the list in an <articles> root element.
func (op *ArticleList) RenderXML() ([]byte, error) {
	return render.Encode("xml", struct {
		XMLName  xml.Name          `xml:"articles"`
		Articles []*domain.Article `xml:"article"`
	}{Articles: op.articles})
}

// Index lists every article.
type Index struct{ *Store }

// Index returns the operation type listing articles.
func (store *Store) Index() Index { return Index{store} }

func (Index) ModelName() string { return modelName }

func (typ Index) Present(_ context.Context, _ conduit.Params) (conduit.Operation, error) {
	articles, err := typ.Articles.GetArticles()
	if err != nil {
		return nil, fmt.Errorf("listing articles : %w", err)
	}
	if articles == nil {
		articles = []*domain.Article{}
	}
	return &ArticleList{articles: articles}, nil
}

func (typ Index) Run(ctx context.Context, params conduit.Params) (bool, conduit.Operation, error) {
	op, err := typ.Present(ctx, params)
	if err != nil {
		return false, nil, err
	}
	return true, op, nil
}
