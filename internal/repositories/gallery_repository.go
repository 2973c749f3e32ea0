package repositories

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/wokecoffee/site/internal/domain"
	"github.com/wokecoffee/site/internal/platform/storage"
)

const galleryThumbnailWidth = 400

// ImageStore is the slice of the storage client the gallery needs.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, opts storage.UploadOptions) (storage.UploadResult, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	PublicURL(object string) string
	VariantURL(object string, width int) string
}

// GalleryRepositoryOption customises the gallery repository.
type GalleryRepositoryOption func(*imageHostGalleryRepository)

// WithGalleryIDGenerator overrides object id generation (useful for tests).
func WithGalleryIDGenerator(gen func() string) GalleryRepositoryOption {
	return func(repo *imageHostGalleryRepository) {
		if gen != nil {
			repo.idGen = gen
		}
	}
}

type imageHostGalleryRepository struct {
	store  ImageStore
	prefix string
	idGen  func() string
}

var _ GalleryRepository = (*imageHostGalleryRepository)(nil)

// NewImageHostGalleryRepository constructs a GalleryRepository over the image host.
// The gallery has no document store of its own; the object listing is the
// source of truth.
func NewImageHostGalleryRepository(store ImageStore, prefix string, opts ...GalleryRepositoryOption) (GalleryRepository, error) {
	if store == nil {
		return nil, errors.New("gallery repository: image store is required")
	}

	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	repo := &imageHostGalleryRepository{
		store:  store,
		prefix: prefix,
		idGen:  func() string { return strings.ToLower(ulid.Make().String()) },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// List enumerates gallery photos, newest first.
func (r *imageHostGalleryRepository) List(ctx context.Context) ([]domain.GalleryImage, error) {
	objects, err := r.store.List(ctx, r.prefix)
	if err != nil {
		return nil, fmt.Errorf("gallery repository: list: %w", err)
	}

	images := make([]domain.GalleryImage, 0, len(objects))
	for _, obj := range objects {
		images = append(images, r.imageFromObject(obj))
	}
	return images, nil
}

// Add uploads a new photo under the gallery prefix.
func (r *imageHostGalleryRepository) Add(ctx context.Context, upload GalleryUpload) (domain.GalleryImage, error) {
	format := imageFormat(upload.FileName, upload.ContentType)
	objectPath := r.prefix + r.idGen()
	if format != "" {
		objectPath += "." + format
	}

	result, err := r.store.Upload(ctx, upload.Data, storage.UploadOptions{
		ObjectPath:   objectPath,
		ContentType:  upload.ContentType,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return domain.GalleryImage{}, fmt.Errorf("gallery repository: upload: %w", err)
	}

	return domain.GalleryImage{
		PublicID:     r.publicID(result.ObjectPath),
		Format:       format,
		URL:          result.PublicURL,
		ThumbnailURL: r.store.VariantURL(result.ObjectPath, galleryThumbnailWidth),
		CreatedAt:    result.UploadedAt,
	}, nil
}

func (r *imageHostGalleryRepository) imageFromObject(obj storage.ObjectInfo) domain.GalleryImage {
	return domain.GalleryImage{
		PublicID:     r.publicID(obj.Name),
		Format:       imageFormat(obj.Name, obj.ContentType),
		URL:          r.store.PublicURL(obj.Name),
		ThumbnailURL: r.store.VariantURL(obj.Name, galleryThumbnailWidth),
		CreatedAt:    obj.Created,
	}
}

func (r *imageHostGalleryRepository) publicID(object string) string {
	id := strings.TrimPrefix(object, r.prefix)
	if ext := path.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return id
}

func imageFormat(name, contentType string) string {
	if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
		return strings.ToLower(ext)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, "/"); idx >= 0 && strings.HasPrefix(contentType, "image/") {
		return contentType[idx+1:]
	}
	return ""
}
