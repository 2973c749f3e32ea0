package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	"github.com/wokecoffee/site/internal/domain"
	pfirestore "github.com/wokecoffee/site/internal/platform/firestore"
	"github.com/wokecoffee/site/internal/repositories"
)

const postCollection = "blogPosts"

type postDocument struct {
	Title         string    `firestore:"title"`
	Content       string    `firestore:"content"`
	CoverImageURL string    `firestore:"coverImageUrl,omitempty"`
	AuthorID      string    `firestore:"authorId"`
	AuthorName    string    `firestore:"authorName"`
	CreatedAt     time.Time `firestore:"createdAt,serverTimestamp"`
}

// PostRepository persists blog posts in the blogPosts collection.
type PostRepository struct {
	base  *pfirestore.BaseRepository[postDocument]
	idGen func() string
}

// PostRepositoryOption customises the repository.
type PostRepositoryOption func(*PostRepository)

// WithPostIDGenerator overrides document id generation (useful for tests).
func WithPostIDGenerator(gen func() string) PostRepositoryOption {
	return func(r *PostRepository) {
		if gen != nil {
			r.idGen = gen
		}
	}
}

// NewPostRepository constructs a Firestore-backed post repository.
func NewPostRepository(provider *pfirestore.Provider, opts ...PostRepositoryOption) (*PostRepository, error) {
	if provider == nil {
		return nil, errors.New("post repository requires firestore provider")
	}
	repo := &PostRepository{
		base:  pfirestore.NewBaseRepository[postDocument](provider, postCollection, nil),
		idGen: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// List returns every post, newest first.
func (r *PostRepository) List(ctx context.Context) ([]domain.Post, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	posts := make([]domain.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, postFromDocument(doc))
	}
	return posts, nil
}

// Latest returns the most recently published post.
func (r *PostRepository) Latest(ctx context.Context) (domain.Post, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc).Limit(1)
	})
	if err != nil {
		return domain.Post{}, err
	}
	if len(docs) == 0 {
		return domain.Post{}, repositories.ErrPostNotFound
	}
	return postFromDocument(docs[0]), nil
}

// FindByID loads a single post.
func (r *PostRepository) FindByID(ctx context.Context, postID string) (domain.Post, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return domain.Post{}, repositories.ErrPostNotFound
	}

	doc, err := r.base.Get(ctx, postID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Post{}, repositories.ErrPostNotFound
		}
		return domain.Post{}, err
	}
	return postFromDocument(doc), nil
}

// Create stores a new post. The repository assigns the document id and the
// store stamps createdAt server-side.
func (r *PostRepository) Create(ctx context.Context, post domain.Post) (domain.Post, error) {
	id := r.idGen()
	doc := postDocument{
		Title:         strings.TrimSpace(post.Title),
		Content:       post.Content,
		CoverImageURL: strings.TrimSpace(post.CoverImageURL),
		AuthorID:      strings.TrimSpace(post.AuthorID),
		AuthorName:    strings.TrimSpace(post.AuthorName),
	}

	result, err := r.base.Add(ctx, id, doc)
	if err != nil {
		return domain.Post{}, err
	}

	post.ID = id
	post.Title = doc.Title
	post.CoverImageURL = doc.CoverImageURL
	post.AuthorID = doc.AuthorID
	post.AuthorName = doc.AuthorName
	post.CreatedAt = result.UpdateTime
	return post, nil
}

func postFromDocument(doc pfirestore.Document[postDocument]) domain.Post {
	createdAt := doc.Data.CreatedAt
	if createdAt.IsZero() {
		createdAt = doc.CreateTime
	}
	return domain.Post{
		ID:            doc.ID,
		Title:         doc.Data.Title,
		Content:       doc.Data.Content,
		CoverImageURL: doc.Data.CoverImageURL,
		AuthorID:      doc.Data.AuthorID,
		AuthorName:    doc.Data.AuthorName,
		CreatedAt:     createdAt,
	}
}
