package repositories

import (
	"context"

	"github.com/wokecoffee/site/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PostRepository persists published blog posts.
type PostRepository interface {
	List(ctx context.Context) ([]domain.Post, error)
	Latest(ctx context.Context) (domain.Post, error)
	FindByID(ctx context.Context, postID string) (domain.Post, error)
	Create(ctx context.Context, post domain.Post) (domain.Post, error)
}

// ProductUpdate carries the optional fields of a product edit. Nil fields are
// left untouched in the stored document; in particular a nil ImageURL means
// the existing image survives the edit.
type ProductUpdate struct {
	Name        *string
	Price       *float64
	Description *string
	ImageURL    *string
}

// ProductRepository persists catalogue entries.
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, productID string, update ProductUpdate) error
	Delete(ctx context.Context, productID string) error
}

// GalleryUpload carries the bytes of a new gallery photo.
type GalleryUpload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// GalleryRepository exposes the image-host backed photo gallery.
type GalleryRepository interface {
	List(ctx context.Context) ([]domain.GalleryImage, error)
	Add(ctx context.Context, upload GalleryUpload) (domain.GalleryImage, error)
}
