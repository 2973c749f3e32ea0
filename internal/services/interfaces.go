package services

import (
	"context"
	"time"

	"github.com/wokecoffee/site/internal/domain"
	"github.com/wokecoffee/site/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Post          = domain.Post
	Product       = domain.Product
	GalleryImage  = domain.GalleryImage
	ProductUpdate = repositories.ProductUpdate
	GalleryUpload = repositories.GalleryUpload
)

// PostSummary is the listing row of a blog post: sanitised title plus a
// plain-text excerpt of the body.
type PostSummary struct {
	ID            string
	Title         string
	Excerpt       string
	CoverImageURL string
	AuthorName    string
	CreatedAt     time.Time
}

// PostDraft carries the fields of a post about to be published.
type PostDraft struct {
	Title         string
	Content       string
	CoverImageURL string
	AuthorID      string
	AuthorName    string
}

// ContentService owns the blog surface. Posts are immutable once published;
// there is no edit or delete path.
type ContentService interface {
	ListPosts(ctx context.Context) ([]PostSummary, error)
	GetPost(ctx context.Context, postID string) (Post, error)
	LatestPost(ctx context.Context) (Post, error)
	PublishPost(ctx context.Context, draft PostDraft) (Post, error)
}

// CatalogService owns the shop surface with full product CRUD.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, productID string, update ProductUpdate) error
	DeleteProduct(ctx context.Context, productID string) error
}

// GalleryService owns the photo gallery, a read-through view over the image host.
type GalleryService interface {
	ListImages(ctx context.Context) ([]GalleryImage, error)
	AddImage(ctx context.Context, upload GalleryUpload) (GalleryImage, error)
}
