package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wokecoffee/site/internal/repositories"
	"github.com/wokecoffee/site/internal/services"
)

type stubContentService struct {
	summaries []services.PostSummary
	posts     map[string]services.Post
	listErr   error
	publishes []services.PostDraft
}

func (s *stubContentService) ListPosts(context.Context) ([]services.PostSummary, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.summaries, nil
}

func (s *stubContentService) GetPost(_ context.Context, postID string) (services.Post, error) {
	post, ok := s.posts[postID]
	if !ok {
		return services.Post{}, repositories.ErrPostNotFound
	}
	return post, nil
}

func (s *stubContentService) LatestPost(context.Context) (services.Post, error) {
	if len(s.summaries) == 0 {
		return services.Post{}, repositories.ErrPostNotFound
	}
	return s.posts[s.summaries[0].ID], nil
}

func (s *stubContentService) PublishPost(_ context.Context, draft services.PostDraft) (services.Post, error) {
	s.publishes = append(s.publishes, draft)
	return services.Post{ID: "published", Title: draft.Title, Content: draft.Content}, nil
}

type stubCatalogService struct {
	products  []services.Product
	updates   map[string]services.ProductUpdate
	deleted   []string
	updateErr error

	// When set, UpdateProduct announces the targeted id and parks until
	// released, letting tests hold a write in flight.
	updateEntered chan string
	updateRelease chan struct{}
}

func (s *stubCatalogService) ListProducts(context.Context) ([]services.Product, error) {
	return s.products, nil
}

func (s *stubCatalogService) GetProduct(_ context.Context, productID string) (services.Product, error) {
	for _, product := range s.products {
		if product.ID == productID {
			return product, nil
		}
	}
	return services.Product{}, repositories.ErrProductNotFound
}

func (s *stubCatalogService) CreateProduct(_ context.Context, product services.Product) (services.Product, error) {
	product.ID = "new-product"
	s.products = append(s.products, product)
	return product, nil
}

func (s *stubCatalogService) UpdateProduct(_ context.Context, productID string, update services.ProductUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.updateEntered != nil {
		s.updateEntered <- productID
		<-s.updateRelease
	}
	if s.updates == nil {
		s.updates = make(map[string]services.ProductUpdate)
	}
	s.updates[productID] = update
	return nil
}

func (s *stubCatalogService) DeleteProduct(_ context.Context, productID string) error {
	s.deleted = append(s.deleted, productID)
	return nil
}

type stubGalleryService struct {
	images []services.GalleryImage
	added  []services.GalleryUpload
}

func (s *stubGalleryService) ListImages(context.Context) ([]services.GalleryImage, error) {
	return s.images, nil
}

func (s *stubGalleryService) AddImage(_ context.Context, upload services.GalleryUpload) (services.GalleryImage, error) {
	s.added = append(s.added, upload)
	return services.GalleryImage{PublicID: "added", Format: "jpg", URL: "u", ThumbnailURL: "t"}, nil
}

func testPublicHandlers(t *testing.T, content *stubContentService, catalog *stubCatalogService, gallery *stubGalleryService) *PublicHandlers {
	t.Helper()
	handlers, err := NewPublicHandlers(PublicHandlersDeps{
		Content: content,
		Catalog: catalog,
		Gallery: gallery,
	})
	if err != nil {
		t.Fatalf("NewPublicHandlers: %v", err)
	}
	return handlers
}

func publicRouter(h *PublicHandlers) chi.Router {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func galleryFixtures() *stubGalleryService {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return &stubGalleryService{images: []services.GalleryImage{
		{PublicID: "g1", Format: "jpg", URL: "u1", ThumbnailURL: "t1", CreatedAt: base},
		{PublicID: "g2", Format: "jpg", URL: "u2", ThumbnailURL: "t2", CreatedAt: base.Add(-time.Hour)},
		{PublicID: "g3", Format: "png", URL: "u3", ThumbnailURL: "t3", CreatedAt: base.Add(-2 * time.Hour)},
	}}
}

func TestListPostsRendersEntries(t *testing.T) {
	content := &stubContentService{
		summaries: []services.PostSummary{
			{ID: "a", Title: "First", Excerpt: "hello"},
			{ID: "b", Title: "Second", Excerpt: "world"},
		},
		posts: map[string]services.Post{},
	}
	h := testPublicHandlers(t, content, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Phase   string               `json:"phase"`
		Entries []postSummaryPayload `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.Phase != "listing" {
		t.Fatalf("expected listing phase, got %q", body.Phase)
	}
	if len(body.Entries) != 2 || body.Entries[0].ID != "a" {
		t.Fatalf("unexpected entries %+v", body.Entries)
	}
}

func TestListPostsFetchFailure(t *testing.T) {
	content := &stubContentService{listErr: errors.New("backend down")}
	h := testPublicHandlers(t, content, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["error"] != "fetch_failed" {
		t.Fatalf("expected fetch_failed, got %v", body["error"])
	}
}

func TestShowPostDeepLinkLoadsCache(t *testing.T) {
	content := &stubContentService{
		summaries: []services.PostSummary{{ID: "a", Title: "First"}},
		posts: map[string]services.Post{
			"a": {ID: "a", Title: "First", Content: "<p>body</p>"},
		},
	}
	h := testPublicHandlers(t, content, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog/a", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body detailPayload[postPayload]
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.Phase != "detail" || body.Record.Content != "<p>body</p>" {
		t.Fatalf("unexpected detail %+v", body)
	}
}

func TestShowPostUnknownIDIs404(t *testing.T) {
	content := &stubContentService{
		summaries: []services.PostSummary{{ID: "a", Title: "First"}},
		posts:     map[string]services.Post{"a": {ID: "a"}},
	}
	h := testPublicHandlers(t, content, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog/zz", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLightboxNavigationWraps(t *testing.T) {
	h := testPublicHandlers(t, &stubContentService{posts: map[string]services.Post{}}, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery/g3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open lightbox: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gallery/lightbox/next", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("next: expected 200, got %d", rec.Code)
	}

	var body detailPayload[galleryImagePayload]
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body.Key != "g1" {
		t.Fatalf("next from the last image should wrap to the first, got %q", body.Key)
	}
}

func TestLightboxNavigationWithoutOpenDetail(t *testing.T) {
	h := testPublicHandlers(t, &stubContentService{posts: map[string]services.Post{}}, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gallery/lightbox/next", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when no lightbox is open, got %d", rec.Code)
	}
}

func TestLightboxEscapeCloses(t *testing.T) {
	h := testPublicHandlers(t, &stubContentService{posts: map[string]services.Post{}}, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gallery/g1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("open lightbox: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/gallery/lightbox/close?trigger=escape", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if body["phase"] != "listing" {
		t.Fatalf("escape should return to listing, got %v", body["phase"])
	}
}

func TestLatestPostEmptyBlogIs404(t *testing.T) {
	content := &stubContentService{posts: map[string]services.Post{}}
	h := testPublicHandlers(t, content, &stubCatalogService{}, galleryFixtures())
	router := publicRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/blog/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for empty blog, got %d", rec.Code)
	}
}
