package services

import (
	"context"
	"errors"
	"strings"

	"github.com/wokecoffee/site/internal/repositories"
)

// ErrProductRepositoryMissing signals that the product repository dependency is absent.
var ErrProductRepositoryMissing = errors.New("catalog service: product repository is not configured")

// ErrInvalidProduct signals a create with missing name, image, or a negative price.
var ErrInvalidProduct = errors.New("catalog service: product requires a name, an image, and a non-negative price")

// CatalogServiceDeps groups constructor parameters for the catalog service.
type CatalogServiceDeps struct {
	Repository repositories.ProductRepository
}

type catalogService struct {
	repo repositories.ProductRepository
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, ErrProductRepositoryMissing
	}
	return &catalogService{repo: deps.Repository}, nil
}

func (s *catalogService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	return s.repo.FindByID(ctx, productID)
}

func (s *catalogService) CreateProduct(ctx context.Context, product Product) (Product, error) {
	product.Name = strings.TrimSpace(product.Name)
	product.ImageURL = strings.TrimSpace(product.ImageURL)
	if product.Name == "" || product.ImageURL == "" || product.Price < 0 {
		return Product{}, ErrInvalidProduct
	}
	return s.repo.Create(ctx, product)
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID string, update ProductUpdate) error {
	if update.Price != nil && *update.Price < 0 {
		return ErrInvalidProduct
	}
	return s.repo.Update(ctx, productID, update)
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	return s.repo.Delete(ctx, productID)
}
