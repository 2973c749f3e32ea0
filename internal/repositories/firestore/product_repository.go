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

const productCollection = "products"

type productDocument struct {
	Name        string    `firestore:"name"`
	Price       float64   `firestore:"price"`
	Description string    `firestore:"description"`
	ImageURL    string    `firestore:"imageUrl"`
	CreatedAt   time.Time `firestore:"createdAt,serverTimestamp"`
}

// ProductRepository persists catalogue entries in the products collection.
type ProductRepository struct {
	base  *pfirestore.BaseRepository[productDocument]
	idGen func() string
}

// ProductRepositoryOption customises the repository.
type ProductRepositoryOption func(*ProductRepository)

// WithProductIDGenerator overrides document id generation (useful for tests).
func WithProductIDGenerator(gen func() string) ProductRepositoryOption {
	return func(r *ProductRepository) {
		if gen != nil {
			r.idGen = gen
		}
	}
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider, opts ...ProductRepositoryOption) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	repo := &ProductRepository{
		base:  pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil),
		idGen: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// List returns every product, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, productFromDocument(doc))
	}
	return products, nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, repositories.ErrProductNotFound
	}

	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		if pfirestore.IsNotFound(err) {
			return domain.Product{}, repositories.ErrProductNotFound
		}
		return domain.Product{}, err
	}
	return productFromDocument(doc), nil
}

// Create stores a new product under a repository-assigned id.
func (r *ProductRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	id := r.idGen()
	doc := productDocument{
		Name:        strings.TrimSpace(product.Name),
		Price:       product.Price,
		Description: strings.TrimSpace(product.Description),
		ImageURL:    strings.TrimSpace(product.ImageURL),
	}

	result, err := r.base.Add(ctx, id, doc)
	if err != nil {
		return domain.Product{}, err
	}

	product.ID = id
	product.Name = doc.Name
	product.Description = doc.Description
	product.ImageURL = doc.ImageURL
	product.CreatedAt = result.UpdateTime
	return product, nil
}

// Update applies a partial edit. Only the fields present in the update reach
// the stored document; an absent image leaves the current image in place.
func (r *ProductRepository) Update(ctx context.Context, productID string, update repositories.ProductUpdate) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return repositories.ErrProductNotFound
	}

	updates := buildProductUpdates(update)
	if len(updates) == 0 {
		return repositories.ErrEmptyUpdate
	}

	if _, err := r.base.Update(ctx, productID, updates); err != nil {
		if pfirestore.IsNotFound(err) {
			return repositories.ErrProductNotFound
		}
		return err
	}
	return nil
}

// Delete removes a product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return repositories.ErrProductNotFound
	}

	if err := r.base.Delete(ctx, productID); err != nil {
		if pfirestore.IsNotFound(err) {
			return repositories.ErrProductNotFound
		}
		return err
	}
	return nil
}

func buildProductUpdates(update repositories.ProductUpdate) []firestore.Update {
	var updates []firestore.Update
	if update.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: strings.TrimSpace(*update.Name)})
	}
	if update.Price != nil {
		updates = append(updates, firestore.Update{Path: "price", Value: *update.Price})
	}
	if update.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: strings.TrimSpace(*update.Description)})
	}
	if update.ImageURL != nil {
		updates = append(updates, firestore.Update{Path: "imageUrl", Value: strings.TrimSpace(*update.ImageURL)})
	}
	return updates
}

func productFromDocument(doc pfirestore.Document[productDocument]) domain.Product {
	createdAt := doc.Data.CreatedAt
	if createdAt.IsZero() {
		createdAt = doc.CreateTime
	}
	return domain.Product{
		ID:          doc.ID,
		Name:        doc.Data.Name,
		Price:       doc.Data.Price,
		Description: doc.Data.Description,
		ImageURL:    doc.Data.ImageURL,
		CreatedAt:   createdAt,
	}
}
