package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wokecoffee/site/internal/platform/httpx"
	"github.com/wokecoffee/site/internal/repositories"
	"github.com/wokecoffee/site/internal/services"
	"github.com/wokecoffee/site/internal/view"
)

const defaultDetailCleanupDelay = 300 * time.Millisecond

// PublicHandlersDeps groups constructor parameters for the visitor surface.
type PublicHandlersDeps struct {
	Content services.ContentService
	Catalog services.CatalogService
	Gallery services.GalleryService

	// DetailCleanupDelay tunes how long a dismissed detail lingers for the
	// close animation. Zero uses the default.
	DetailCleanupDelay time.Duration
}

// PublicHandlers serves the blog, shop, and gallery pages. Each surface is a
// long-lived listing controller whose cache mirrors the last successful fetch.
type PublicHandlers struct {
	content services.ContentService

	blog   *view.Controller[services.PostSummary]
	shop   *view.Controller[services.Product]
	photos *view.Controller[services.GalleryImage]
}

// NewPublicHandlers wires the three listing controllers to their services.
func NewPublicHandlers(deps PublicHandlersDeps) (*PublicHandlers, error) {
	if deps.Content == nil || deps.Catalog == nil || deps.Gallery == nil {
		return nil, errors.New("public handlers require content, catalog, and gallery services")
	}

	delay := deps.DetailCleanupDelay
	if delay <= 0 {
		delay = defaultDetailCleanupDelay
	}

	blog, err := view.NewController[services.PostSummary](view.ControllerConfig[services.PostSummary]{
		Load: deps.Content.ListPosts,
		Key:  func(p services.PostSummary) string { return p.ID },
	})
	if err != nil {
		return nil, err
	}

	shop, err := view.NewController[services.Product](view.ControllerConfig[services.Product]{
		Load: deps.Catalog.ListProducts,
		Key:  func(p services.Product) string { return p.ID },
	})
	if err != nil {
		return nil, err
	}

	photos, err := view.NewController[services.GalleryImage](view.ControllerConfig[services.GalleryImage]{
		Load:         deps.Gallery.ListImages,
		Key:          func(img services.GalleryImage) string { return img.PublicID },
		CleanupDelay: delay,
	})
	if err != nil {
		return nil, err
	}

	return &PublicHandlers{
		content: deps.Content,
		blog:    blog,
		shop:    shop,
		photos:  photos,
	}, nil
}

// Blog exposes the blog listing controller for post-mutation refreshes.
func (h *PublicHandlers) Blog() *view.Controller[services.PostSummary] { return h.blog }

// Shop exposes the shop listing controller for post-mutation refreshes.
func (h *PublicHandlers) Shop() *view.Controller[services.Product] { return h.shop }

// Photos exposes the gallery listing controller for post-upload refreshes.
func (h *PublicHandlers) Photos() *view.Controller[services.GalleryImage] { return h.photos }

// Register mounts the visitor routes.
func (h *PublicHandlers) Register(r chi.Router) {
	r.Get("/blog", h.listPosts)
	r.Get("/blog/latest", h.latestPost)
	r.Get("/blog/{postID}", h.showPost)
	r.Post("/blog/close", h.closeBlogDetail)

	r.Get("/shop", h.listProducts)
	r.Get("/shop/{productID}", h.showProduct)
	r.Post("/shop/close", h.closeShopDetail)

	r.Get("/gallery", h.listGallery)
	r.Get("/gallery/{imageID}", h.openLightbox)
	r.Post("/gallery/lightbox/next", h.lightboxNext)
	r.Post("/gallery/lightbox/previous", h.lightboxPrevious)
	r.Post("/gallery/lightbox/close", h.closeLightbox)
}

func (h *PublicHandlers) listPosts(w http.ResponseWriter, r *http.Request) {
	if err := h.blog.Load(r.Context()); err != nil {
		writeFetchError(w, r, "failed to load blog posts")
		return
	}

	model := h.blog.Render()
	entries := make([]postSummaryPayload, 0, len(model.Entries))
	for _, entry := range model.Entries {
		entries = append(entries, postSummaryFromService(entry.Record))
	}
	payload := listingPayload[postSummaryPayload]{
		Phase:   string(model.Phase),
		Entries: entries,
	}
	if len(entries) == 0 {
		payload.EmptyMessage = "No blog posts found. Check back soon!"
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PublicHandlers) latestPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.content.LatestPost(r.Context())
	if err != nil {
		if repositories.IsNotFound(err) {
			writeNotFound(w, r, "no posts published yet")
			return
		}
		writeFetchError(w, r, "failed to load latest post")
		return
	}
	writeJSONResponse(w, http.StatusOK, postFromService(post))
}

func (h *PublicHandlers) showPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	h.ensureLoaded(r, h.blog.Render().Phase, h.blog.Load)
	if !h.blog.Select(postID) {
		writeNotFound(w, r, "post not found")
		return
	}

	post, err := h.content.GetPost(r.Context(), postID)
	if err != nil {
		h.blog.Close()
		if repositories.IsNotFound(err) {
			writeNotFound(w, r, "post not found")
			return
		}
		writeFetchError(w, r, "failed to load post")
		return
	}

	model := h.blog.Render()
	writeJSONResponse(w, http.StatusOK, detailPayload[postPayload]{
		Phase:  string(model.Phase),
		Key:    model.Detail.Key,
		Record: postFromService(post),
	})
}

func (h *PublicHandlers) closeBlogDetail(w http.ResponseWriter, r *http.Request) {
	h.blog.Dismiss(dismissTrigger(r))
	model := h.blog.Render()
	writeJSONResponse(w, http.StatusOK, map[string]any{"phase": string(model.Phase)})
}

func (h *PublicHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.Load(r.Context()); err != nil {
		writeFetchError(w, r, "failed to load products")
		return
	}

	model := h.shop.Render()
	entries := make([]productPayload, 0, len(model.Entries))
	for _, entry := range model.Entries {
		entries = append(entries, productFromService(entry.Record))
	}
	payload := listingPayload[productPayload]{
		Phase:   string(model.Phase),
		Entries: entries,
	}
	if len(entries) == 0 {
		payload.EmptyMessage = "No products available at the moment."
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PublicHandlers) showProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	h.ensureLoaded(r, h.shop.Render().Phase, h.shop.Load)
	if !h.shop.Select(productID) {
		writeNotFound(w, r, "product not found")
		return
	}

	model := h.shop.Render()
	writeJSONResponse(w, http.StatusOK, detailPayload[productPayload]{
		Phase:  string(model.Phase),
		Key:    model.Detail.Key,
		Record: productFromService(model.Detail.Record),
	})
}

func (h *PublicHandlers) closeShopDetail(w http.ResponseWriter, r *http.Request) {
	h.shop.Dismiss(dismissTrigger(r))
	model := h.shop.Render()
	writeJSONResponse(w, http.StatusOK, map[string]any{"phase": string(model.Phase)})
}

func (h *PublicHandlers) listGallery(w http.ResponseWriter, r *http.Request) {
	if err := h.photos.Load(r.Context()); err != nil {
		writeFetchError(w, r, "failed to load gallery")
		return
	}

	model := h.photos.Render()
	entries := make([]galleryImagePayload, 0, len(model.Entries))
	for _, entry := range model.Entries {
		entries = append(entries, galleryImageFromService(entry.Record))
	}
	payload := listingPayload[galleryImagePayload]{
		Phase:   string(model.Phase),
		Entries: entries,
	}
	if len(entries) == 0 {
		payload.EmptyMessage = "No photos yet. Our gallery is brewing."
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *PublicHandlers) openLightbox(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "imageID")

	h.ensureLoaded(r, h.photos.Render().Phase, h.photos.Load)
	if !h.photos.Select(imageID) {
		writeNotFound(w, r, "image not found")
		return
	}
	h.writeLightbox(w)
}

func (h *PublicHandlers) lightboxNext(w http.ResponseWriter, r *http.Request) {
	if !h.photos.Next() {
		writeValidationError(w, r, "no lightbox is open")
		return
	}
	h.writeLightbox(w)
}

func (h *PublicHandlers) lightboxPrevious(w http.ResponseWriter, r *http.Request) {
	if !h.photos.Previous() {
		writeValidationError(w, r, "no lightbox is open")
		return
	}
	h.writeLightbox(w)
}

func (h *PublicHandlers) closeLightbox(w http.ResponseWriter, r *http.Request) {
	h.photos.Dismiss(dismissTrigger(r))
	model := h.photos.Render()
	writeJSONResponse(w, http.StatusOK, map[string]any{"phase": string(model.Phase)})
}

func (h *PublicHandlers) writeLightbox(w http.ResponseWriter) {
	model := h.photos.Render()
	if model.Detail == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"phase": string(model.Phase)})
		return
	}
	writeJSONResponse(w, http.StatusOK, detailPayload[galleryImagePayload]{
		Phase:       string(model.Phase),
		Key:         model.Detail.Key,
		Index:       model.Detail.Index,
		NextKey:     model.Detail.NextKey,
		PreviousKey: model.Detail.PreviousKey,
		Record:      galleryImageFromService(model.Detail.Record),
	})
}

// ensureLoaded primes an idle or errored controller so a deep link straight
// to a detail page has a cache to select from.
func (h *PublicHandlers) ensureLoaded(r *http.Request, phase view.Phase, load func(context.Context) error) {
	if phase == view.PhaseIdle || phase == view.PhaseError {
		_ = load(r.Context())
	}
}

func dismissTrigger(r *http.Request) view.DismissTrigger {
	switch r.URL.Query().Get("trigger") {
	case "escape":
		return view.DismissEscape
	case "overlay":
		return view.DismissOverlay
	default:
		return view.DismissControl
	}
}

type listingPayload[T any] struct {
	Phase   string `json:"phase"`
	Entries []T    `json:"entries"`

	// EmptyMessage carries the copy shown when the list has no entries.
	EmptyMessage string `json:"emptyMessage,omitempty"`
}

type detailPayload[T any] struct {
	Phase       string `json:"phase"`
	Key         string `json:"key"`
	Index       int    `json:"index,omitempty"`
	NextKey     string `json:"nextKey,omitempty"`
	PreviousKey string `json:"previousKey,omitempty"`
	Record      T      `json:"record"`
}

type postSummaryPayload struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Excerpt       string    `json:"excerpt"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	AuthorName    string    `json:"authorName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type postPayload struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	CoverImageURL string    `json:"coverImageUrl,omitempty"`
	AuthorName    string    `json:"authorName,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type productPayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

type galleryImagePayload struct {
	ID           string    `json:"id"`
	Format       string    `json:"format,omitempty"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

func postSummaryFromService(p services.PostSummary) postSummaryPayload {
	return postSummaryPayload{
		ID:            p.ID,
		Title:         p.Title,
		Excerpt:       p.Excerpt,
		CoverImageURL: p.CoverImageURL,
		AuthorName:    p.AuthorName,
		CreatedAt:     p.CreatedAt,
	}
}

func postFromService(p services.Post) postPayload {
	return postPayload{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		CoverImageURL: p.CoverImageURL,
		AuthorName:    p.AuthorName,
		CreatedAt:     p.CreatedAt,
	}
}

func productFromService(p services.Product) productPayload {
	return productPayload{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
}

func galleryImageFromService(img services.GalleryImage) galleryImagePayload {
	return galleryImagePayload{
		ID:           img.PublicID,
		Format:       img.Format,
		URL:          img.URL,
		ThumbnailURL: img.ThumbnailURL,
		CreatedAt:    img.CreatedAt,
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFetchError(w http.ResponseWriter, r *http.Request, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeFetchFailed, message, http.StatusBadGateway))
}

func writeNotFound(w http.ResponseWriter, r *http.Request, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeFetchFailed, message, http.StatusNotFound))
}

func writeValidationError(w http.ResponseWriter, r *http.Request, message string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeValidation, message, http.StatusBadRequest))
}
