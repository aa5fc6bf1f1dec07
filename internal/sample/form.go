package sample

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tfkr-ae/conduit"
	"github.com/tfkr-ae/conduit/domain"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAuthor is prepopulated on new article forms
	DefaultAuthor = "anonymous"

	maxTitleLength  = 200
	maxAuthorLength = 100
	maxTagLength    = 30
	maxTags         = 10
)

// articleInput is the article document accepted from form fields, JSON, YAML and XML bodies.
// Nil fields were not sent and keep their current value.
type articleInput struct {
	XMLName xml.Name  `xml:"article" yaml:"-"`
	Title   *string   `xml:"title" yaml:"title"`
	Body    *string   `xml:"body" yaml:"body"`
	Author  *string   `xml:"author" yaml:"author"`
	Tags    *[]string `xml:"tags>tag" yaml:"tags"`
}

// ArticleForm is the contract of the article operations.
type ArticleForm struct {
	Title  string
	Body   string
	Author string
	Tags   []string

	errs map[string][]string
}

// NewArticleForm returns a form holding the current values of article.
func NewArticleForm(article *domain.Article) *ArticleForm {
	return &ArticleForm{
		Title:  article.Title,
		Body:   article.Body,
		Author: article.Author,
		Tags:   append([]string(nil), article.Tags...),
	}
}

// Prepopulate fills the form before it is rendered: values passed as article[...] query params
// are shown in the form and a missing author defaults to DefaultAuthor.
func (form *ArticleForm) Prepopulate(_ context.Context, params conduit.Params) error {
	if fields, ok := params.Map("article"); ok {
		form.apply(inputFromFields(fields))
	}
	if form.Author == "" {
		form.Author = DefaultAuthor
	}
	return nil
}

// Validate reads the article input from params and checks it.
// It reports whether the form is valid; the messages are available through Errors.
func (form *ArticleForm) Validate(params conduit.Params) bool {
	form.errs = nil

	input, err := readInput(params)
	if err != nil {
		form.addError("article", err.Error())
		return false
	}
	form.apply(input)

	form.Title = strings.TrimSpace(form.Title)
	form.Author = strings.TrimSpace(form.Author)
	form.Tags = normalizeTags(form.Tags)

	if form.Title == "" {
		form.addError("title", "can't be blank")
	} else if utf8.RuneCountInString(form.Title) > maxTitleLength {
		form.addError("title", fmt.Sprintf("is too long (maximum is %d characters)", maxTitleLength))
	}
	if strings.TrimSpace(form.Body) == "" {
		form.addError("body", "can't be blank")
	}
	if utf8.RuneCountInString(form.Author) > maxAuthorLength {
		form.addError("author", fmt.Sprintf("is too long (maximum is %d characters)", maxAuthorLength))
	}
	if len(form.Tags) > maxTags {
		form.addError("tags", fmt.Sprintf("has too many entries (maximum is %d)", maxTags))
	}
	for _, tag := range form.Tags {
		if utf8.RuneCountInString(tag) > maxTagLength {
			form.addError("tags", fmt.Sprintf("%q is too long (maximum is %d characters)", tag, maxTagLength))
		}
	}

	return len(form.errs) == 0
}

// Errors returns the validation messages keyed by field, or nil when the form is valid.
func (form *ArticleForm) Errors() map[string][]string {
	if len(form.errs) == 0 {
		return nil
	}
	return form.errs
}

// TagList returns the tags joined for a text input.
func (form *ArticleForm) TagList() string {
	return strings.Join(form.Tags, ", ")
}

// Sync copies the form values into article.
func (form *ArticleForm) Sync(article *domain.Article) {
	article.Title = form.Title
	article.Body = form.Body
	article.Author = form.Author
	article.Tags = append([]string(nil), form.Tags...)
	if form.Author == "" {
		article.Author = DefaultAuthor
	}
}

func (form *ArticleForm) apply(input articleInput) {
	if input.Title != nil {
		form.Title = *input.Title
	}
	if input.Body != nil {
		form.Body = *input.Body
	}
	if input.Author != nil {
		form.Author = *input.Author
	}
	if input.Tags != nil {
		form.Tags = *input.Tags
	}
}

func (form *ArticleForm) addError(field, message string) {
	if form.errs == nil {
		form.errs = make(map[string][]string)
	}
	form.errs[field] = append(form.errs[field], message)
}

// readInput returns the article input carried by params: nested form fields,
// or the raw request document placed under the model name.
func readInput(params conduit.Params) (articleInput, error) {
	value, ok := params.Get("article")
	if !ok {
		return articleInput{}, errors.New("is required")
	}

	switch v := value.(type) {
	case map[string]any:
		return inputFromFields(v), nil
	case string:
		return decodeDocument([]byte(v))
	}
	return articleInput{}, errors.New("has an unexpected shape")
}

func inputFromFields(fields map[string]any) articleInput {
	var input articleInput
	str := func(key string) *string {
		value, ok := fields[key]
		if !ok {
			return nil
		}
		switch v := value.(type) {
		case string:
			return &v
		case []string:
			joined := strings.Join(v, " ")
			return &joined
		}
		return nil
	}

	input.Title = str("title")
	input.Body = str("body")
	input.Author = str("author")

	switch tags := fields["tags"].(type) {
	case string:
		list := strings.Split(tags, ",")
		input.Tags = &list
	case []string:
		list := append([]string(nil), tags...)
		input.Tags = &list
	}
	return input
}

// decodeDocument parses an XML, JSON or YAML article document. The content is sniffed,
// so the Content-Type header of the request does not need to match.
func decodeDocument(document []byte) (articleInput, error) {
	var input articleInput
	if len(strings.TrimSpace(string(document))) == 0 {
		return input, errors.New("is required")
	}

	detected := mimetype.Detect(document)
	if detected.Is("text/xml") || detected.Is("application/xml") {
		if err := xml.Unmarshal(document, &input); err != nil {
			return input, errors.New("could not be parsed as XML")
		}
		return input, nil
	}

	// JSON documents are valid YAML
	if err := yaml.Unmarshal(document, &input); err != nil {
		return input, errors.New("could not be parsed")
	}
	return input, nil
}

// normalizeTags trims and lowercases tags, dropping blanks and duplicates.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		normalized = append(normalized, tag)
	}
	return normalized
}
