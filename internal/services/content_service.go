package services

import (
	"context"
	"errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/wokecoffee/site/internal/repositories"
)

const defaultExcerptLength = 160

// ErrPostRepositoryMissing signals that the post repository dependency is absent.
var ErrPostRepositoryMissing = errors.New("content service: post repository is not configured")

// ErrEmptyDraft signals a publish attempt with no title or body.
var ErrEmptyDraft = errors.New("content service: draft title and content are required")

// ContentServiceDeps groups constructor parameters for the content service.
type ContentServiceDeps struct {
	Repository    repositories.PostRepository
	ExcerptLength int
}

type contentService struct {
	repo          repositories.PostRepository
	excerptLength int

	bodyPolicy *bluemonday.Policy
	textPolicy *bluemonday.Policy
}

// NewContentService constructs the content service with the supplied dependencies.
func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	if deps.Repository == nil {
		return nil, ErrPostRepositoryMissing
	}
	excerptLength := deps.ExcerptLength
	if excerptLength <= 0 {
		excerptLength = defaultExcerptLength
	}
	return &contentService{
		repo:          deps.Repository,
		excerptLength: excerptLength,
		bodyPolicy:    newPostBodyPolicy(),
		textPolicy:    bluemonday.StrictPolicy(),
	}, nil
}

func (s *contentService) ListPosts(ctx context.Context) ([]PostSummary, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]PostSummary, 0, len(posts))
	for _, post := range posts {
		summaries = append(summaries, PostSummary{
			ID:            post.ID,
			Title:         post.Title,
			Excerpt:       s.excerpt(post.Content),
			CoverImageURL: post.CoverImageURL,
			AuthorName:    post.AuthorName,
			CreatedAt:     post.CreatedAt,
		})
	}
	return summaries, nil
}

func (s *contentService) GetPost(ctx context.Context, postID string) (Post, error) {
	post, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return Post{}, err
	}
	post.Content = s.sanitizeBody(post.Content)
	return post, nil
}

func (s *contentService) LatestPost(ctx context.Context) (Post, error) {
	post, err := s.repo.Latest(ctx)
	if err != nil {
		return Post{}, err
	}
	post.Content = s.sanitizeBody(post.Content)
	return post, nil
}

func (s *contentService) PublishPost(ctx context.Context, draft PostDraft) (Post, error) {
	title := strings.TrimSpace(draft.Title)
	content := s.sanitizeBody(draft.Content)
	if title == "" || strings.TrimSpace(content) == "" {
		return Post{}, ErrEmptyDraft
	}

	return s.repo.Create(ctx, Post{
		Title:         title,
		Content:       content,
		CoverImageURL: strings.TrimSpace(draft.CoverImageURL),
		AuthorID:      strings.TrimSpace(draft.AuthorID),
		AuthorName:    strings.TrimSpace(draft.AuthorName),
	})
}

// sanitizeBody keeps the formatting subset post bodies may carry and strips
// everything else.
func (s *contentService) sanitizeBody(content string) string {
	return strings.TrimSpace(s.bodyPolicy.Sanitize(content))
}

// excerpt flattens the body to plain text and truncates on a rune boundary.
func (s *contentService) excerpt(content string) string {
	text := html.UnescapeString(s.textPolicy.Sanitize(content))
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= s.excerptLength {
		return text
	}

	runes := []rune(text)
	cut := s.excerptLength
	for cut > 0 && runes[cut-1] != ' ' {
		cut--
	}
	if cut == 0 {
		cut = s.excerptLength
	}
	return strings.TrimSpace(string(runes[:cut])) + "…"
}

func newPostBodyPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").OnElements("p", "span", "blockquote")
	return policy
}
