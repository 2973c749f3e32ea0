package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wokecoffee/site/internal/domain"
	"github.com/wokecoffee/site/internal/repositories"
)

type stubPostRepository struct {
	posts   []domain.Post
	listErr error
	created []domain.Post
}

func (s *stubPostRepository) List(context.Context) ([]domain.Post, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.posts, nil
}

func (s *stubPostRepository) Latest(context.Context) (domain.Post, error) {
	if len(s.posts) == 0 {
		return domain.Post{}, repositories.ErrPostNotFound
	}
	return s.posts[0], nil
}

func (s *stubPostRepository) FindByID(_ context.Context, postID string) (domain.Post, error) {
	for _, post := range s.posts {
		if post.ID == postID {
			return post, nil
		}
	}
	return domain.Post{}, repositories.ErrPostNotFound
}

func (s *stubPostRepository) Create(_ context.Context, post domain.Post) (domain.Post, error) {
	post.ID = "new-post"
	post.CreatedAt = time.Date(2026, 8, 15, 8, 0, 0, 0, time.UTC)
	s.created = append(s.created, post)
	return post, nil
}

func newTestContentService(t *testing.T, repo repositories.PostRepository) ContentService {
	t.Helper()
	svc, err := NewContentService(ContentServiceDeps{Repository: repo})
	if err != nil {
		t.Fatalf("NewContentService: %v", err)
	}
	return svc
}

func TestListPostsBuildsPlainTextExcerpts(t *testing.T) {
	repo := &stubPostRepository{posts: []domain.Post{
		{
			ID:      "a",
			Title:   "Opening day",
			Content: "<p>We are <strong>open</strong>.</p><script>alert(1)</script>",
		},
	}}
	svc := newTestContentService(t, repo)

	summaries, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].Excerpt != "We are open." {
		t.Fatalf("unexpected excerpt %q", summaries[0].Excerpt)
	}
}

func TestListPostsTruncatesLongExcerpts(t *testing.T) {
	repo := &stubPostRepository{posts: []domain.Post{
		{ID: "a", Title: "Long", Content: strings.Repeat("roast profile notes ", 30)},
	}}
	svc, err := NewContentService(ContentServiceDeps{Repository: repo, ExcerptLength: 40})
	if err != nil {
		t.Fatalf("NewContentService: %v", err)
	}

	summaries, err := svc.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}

	excerpt := summaries[0].Excerpt
	if !strings.HasSuffix(excerpt, "…") {
		t.Fatalf("expected truncated excerpt to end with ellipsis, got %q", excerpt)
	}
	if n := len([]rune(excerpt)); n > 41 {
		t.Fatalf("excerpt too long: %d runes", n)
	}
}

func TestGetPostSanitisesBody(t *testing.T) {
	repo := &stubPostRepository{posts: []domain.Post{
		{ID: "a", Title: "Hi", Content: `<p>fine</p><img src=x onerror="alert(1)">`},
	}}
	svc := newTestContentService(t, repo)

	post, err := svc.GetPost(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if strings.Contains(post.Content, "onerror") {
		t.Fatalf("event handler survived sanitisation: %q", post.Content)
	}
	if !strings.Contains(post.Content, "<p>fine</p>") {
		t.Fatalf("allowed markup should survive, got %q", post.Content)
	}
}

func TestPublishPostRejectsEmptyDraft(t *testing.T) {
	repo := &stubPostRepository{}
	svc := newTestContentService(t, repo)

	if _, err := svc.PublishPost(context.Background(), PostDraft{Title: "  ", Content: "body"}); !errors.Is(err, ErrEmptyDraft) {
		t.Fatalf("expected ErrEmptyDraft for blank title, got %v", err)
	}
	if _, err := svc.PublishPost(context.Background(), PostDraft{Title: "t", Content: "<script>x</script>"}); !errors.Is(err, ErrEmptyDraft) {
		t.Fatalf("expected ErrEmptyDraft when content sanitises to nothing, got %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("rejected drafts must not reach the repository")
	}
}

func TestPublishPostStoresSanitisedDraft(t *testing.T) {
	repo := &stubPostRepository{}
	svc := newTestContentService(t, repo)

	post, err := svc.PublishPost(context.Background(), PostDraft{
		Title:      " Grand opening ",
		Content:    "<p>Come by!</p><script>alert(1)</script>",
		AuthorID:   "uid-1",
		AuthorName: "Barista One",
	})
	if err != nil {
		t.Fatalf("PublishPost: %v", err)
	}
	if post.ID != "new-post" {
		t.Fatalf("expected repository-assigned id, got %q", post.ID)
	}
	if post.Title != "Grand opening" {
		t.Fatalf("title not normalised: %q", post.Title)
	}
	if strings.Contains(repo.created[0].Content, "script") {
		t.Fatalf("script survived into storage: %q", repo.created[0].Content)
	}
}
