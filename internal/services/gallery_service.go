package services

import (
	"context"
	"errors"

	"github.com/wokecoffee/site/internal/repositories"
)

// ErrGalleryRepositoryMissing signals that the gallery repository dependency is absent.
var ErrGalleryRepositoryMissing = errors.New("gallery service: gallery repository is not configured")

// ErrEmptyGalleryUpload signals an upload without file bytes.
var ErrEmptyGalleryUpload = errors.New("gallery service: upload has no file bytes")

// GalleryServiceDeps groups constructor parameters for the gallery service.
type GalleryServiceDeps struct {
	Repository repositories.GalleryRepository
}

type galleryService struct {
	repo repositories.GalleryRepository
}

// NewGalleryService constructs the gallery service with the supplied dependencies.
func NewGalleryService(deps GalleryServiceDeps) (GalleryService, error) {
	if deps.Repository == nil {
		return nil, ErrGalleryRepositoryMissing
	}
	return &galleryService{repo: deps.Repository}, nil
}

func (s *galleryService) ListImages(ctx context.Context) ([]GalleryImage, error) {
	return s.repo.List(ctx)
}

func (s *galleryService) AddImage(ctx context.Context, upload GalleryUpload) (GalleryImage, error) {
	if len(upload.Data) == 0 {
		return GalleryImage{}, ErrEmptyGalleryUpload
	}
	return s.repo.Add(ctx, upload)
}
