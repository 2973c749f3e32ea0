package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/wokecoffee/site/internal/platform/auth"
	"github.com/wokecoffee/site/internal/platform/httpx"
	"github.com/wokecoffee/site/internal/platform/storage"
	"github.com/wokecoffee/site/internal/repositories"
	"github.com/wokecoffee/site/internal/services"
	"github.com/wokecoffee/site/internal/view"
)

const defaultMaxUploadBytes = 10 << 20

// ImageUploader is the slice of the storage client the admin surface needs.
type ImageUploader interface {
	Upload(ctx context.Context, data []byte, opts storage.UploadOptions) (storage.UploadResult, error)
}

// AdminHandlersDeps groups constructor parameters for the operator dashboard.
type AdminHandlersDeps struct {
	Content services.ContentService
	Catalog services.CatalogService
	Gallery services.GalleryService
	Images  ImageUploader

	// Listing controllers refreshed after mutations.
	Blog   *view.Controller[services.PostSummary]
	Shop   *view.Controller[services.Product]
	Photos *view.Controller[services.GalleryImage]

	MaxUploadBytes int64
}

// AdminHandlers drives the post publisher and the product editor. Both forms
// are long-lived editor controllers; the busy guard serialises concurrent
// submissions the same way a disabled submit button does.
type AdminHandlers struct {
	catalog services.CatalogService
	gallery services.GalleryService

	// Each editor is shared across requests; its busy flag only covers
	// Submit, so the handler serialises the whole StartEdit/SetField/Submit
	// cycle to keep one request's field values off another's record.
	postMu        sync.Mutex
	postEditor    *view.Editor
	productMu     sync.Mutex
	productEditor *view.Editor

	photos *view.Controller[services.GalleryImage]

	maxUploadBytes int64
}

// NewAdminHandlers wires the editors to their collections and uploaders.
func NewAdminHandlers(deps AdminHandlersDeps) (*AdminHandlers, error) {
	if deps.Content == nil || deps.Catalog == nil || deps.Gallery == nil {
		return nil, errors.New("admin handlers require content, catalog, and gallery services")
	}
	if deps.Images == nil {
		return nil, errors.New("admin handlers require an image uploader")
	}
	if deps.Blog == nil || deps.Shop == nil || deps.Photos == nil {
		return nil, errors.New("admin handlers require the public listing controllers")
	}

	maxUploadBytes := deps.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}

	postEditor, err := view.NewEditor(view.EditorConfig{
		Collection:           &postCollection{content: deps.Content},
		Uploader:             &assetUploader{store: deps.Images, prefix: "posts/"},
		Fields:               []string{"title", "content"},
		RequiredFields:       []string{"title", "content"},
		ImageField:           "coverImageUrl",
		RequireImageOnCreate: true,
		Refresh:              deps.Blog.Load,
	})
	if err != nil {
		return nil, fmt.Errorf("post editor: %w", err)
	}

	productEditor, err := view.NewEditor(view.EditorConfig{
		Collection:           &productCollection{catalog: deps.Catalog},
		Uploader:             &assetUploader{store: deps.Images, prefix: "products/"},
		Fields:               []string{"name", "price", "description"},
		RequiredFields:       []string{"name", "price", "description"},
		NumericFields:        []string{"price"},
		ImageField:           "imageUrl",
		RequireImageOnCreate: true,
		Refresh:              deps.Shop.Load,
		Remove:               func(id string) { deps.Shop.Remove(id) },
	})
	if err != nil {
		return nil, fmt.Errorf("product editor: %w", err)
	}

	return &AdminHandlers{
		catalog:        deps.Catalog,
		gallery:        deps.Gallery,
		postEditor:     postEditor,
		productEditor:  productEditor,
		photos:         deps.Photos,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

// Register mounts the dashboard routes. Callers wrap the group in the
// Firebase admin middleware.
func (h *AdminHandlers) Register(r chi.Router) {
	r.Get("/me", h.me)

	r.Post("/posts", h.publishPost)

	r.Get("/products/form", h.productForm)
	r.Post("/products/form/cancel", h.cancelProductEdit)
	r.Post("/products", h.createProduct)
	r.Post("/products/{productID}/edit", h.startProductEdit)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)

	r.Post("/gallery", h.uploadGalleryImage)
}

func (h *AdminHandlers) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeAuth, "no identity in request", http.StatusUnauthorized))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"uid":         identity.UID,
		"email":       identity.Email,
		"displayName": identity.DisplayName,
		"photoUrl":    identity.PhotoURL,
		"roles":       identity.Roles,
	})
}

func (h *AdminHandlers) publishPost(w http.ResponseWriter, r *http.Request) {
	form, file, err := h.parseEditorForm(r, "cover")
	if err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	h.postMu.Lock()
	defer h.postMu.Unlock()

	h.postEditor.StartCreate()
	applyFormFields(h.postEditor, form, "title", "content")
	if file != nil {
		h.postEditor.AttachFile(*file)
	}

	result, err := h.postEditor.Submit(r.Context())
	if err != nil {
		writeEditorError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"id": result.ID, "message": "Post published!"})
}

func (h *AdminHandlers) productForm(w http.ResponseWriter, r *http.Request) {
	h.productMu.Lock()
	defer h.productMu.Unlock()

	writeJSONResponse(w, http.StatusOK, formPayloadFromModel(h.productEditor.Render()))
}

func (h *AdminHandlers) cancelProductEdit(w http.ResponseWriter, r *http.Request) {
	h.productMu.Lock()
	defer h.productMu.Unlock()

	h.productEditor.Cancel()
	writeJSONResponse(w, http.StatusOK, formPayloadFromModel(h.productEditor.Render()))
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	form, file, err := h.parseEditorForm(r, "image")
	if err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	h.productMu.Lock()
	defer h.productMu.Unlock()

	h.productEditor.StartCreate()
	applyFormFields(h.productEditor, form, "name", "price", "description")
	if file != nil {
		h.productEditor.AttachFile(*file)
	}

	result, err := h.productEditor.Submit(r.Context())
	if err != nil {
		writeEditorError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"id": result.ID, "message": "Product added!"})
}

func (h *AdminHandlers) startProductEdit(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	product, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			writeNotFound(w, r, "product not found")
			return
		}
		writeFetchError(w, r, "failed to load product")
		return
	}

	h.productMu.Lock()
	defer h.productMu.Unlock()

	if err := h.productEditor.StartEdit(product.ID, productFormValues(product)); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, formPayloadFromModel(h.productEditor.Render()))
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	form, file, err := h.parseEditorForm(r, "image")
	if err != nil {
		writeValidationError(w, r, err.Error())
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			writeNotFound(w, r, "product not found")
			return
		}
		writeFetchError(w, r, "failed to load product")
		return
	}

	h.productMu.Lock()
	defer h.productMu.Unlock()

	if err := h.productEditor.StartEdit(product.ID, productFormValues(product)); err != nil {
		writeValidationError(w, r, err.Error())
		return
	}
	applyFormFields(h.productEditor, form, "name", "price", "description")
	if file != nil {
		h.productEditor.AttachFile(*file)
	}

	if _, err := h.productEditor.Submit(r.Context()); err != nil {
		writeEditorError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"id": productID, "message": "Product updated!"})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	confirmed := r.URL.Query().Get("confirm") == "true"

	h.productMu.Lock()
	defer h.productMu.Unlock()

	if err := h.productEditor.Delete(r.Context(), productID, confirmed); err != nil {
		writeEditorError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"id": productID, "deleted": true, "message": "Product deleted."})
}

func (h *AdminHandlers) uploadGalleryImage(w http.ResponseWriter, r *http.Request) {
	_, file, err := h.parseEditorForm(r, "photo")
	if err != nil {
		writeValidationError(w, r, err.Error())
		return
	}
	if file == nil {
		writeValidationError(w, r, "a photo file is required")
		return
	}

	image, err := h.gallery.AddImage(r.Context(), repositories.GalleryUpload{
		FileName:    file.Name,
		ContentType: file.ContentType,
		Data:        file.Data,
	})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeUploadFailed, "failed to store photo", http.StatusBadGateway))
		return
	}

	_ = h.photos.Load(r.Context())
	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"image":   galleryImageFromService(image),
		"message": "Photo uploaded!",
	})
}

// parseEditorForm reads the multipart form fields and the optional file under
// the given part name.
func (h *AdminHandlers) parseEditorForm(r *http.Request, filePart string) (map[string]string, *view.FileInput, error) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	fields := make(map[string]string)
	if r.MultipartForm != nil {
		for name, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				fields[name] = values[0]
			}
		}
	}

	file, header, err := r.FormFile(filePart)
	if errors.Is(err, http.ErrMissingFile) {
		return fields, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid file part %q: %w", filePart, err)
	}
	defer file.Close()

	input, err := fileInputFromPart(file, header)
	if err != nil {
		return nil, nil, err
	}
	return fields, input, nil
}

func fileInputFromPart(file multipart.File, header *multipart.FileHeader) (*view.FileInput, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return &view.FileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func applyFormFields(editor *view.Editor, form map[string]string, names ...string) {
	for _, name := range names {
		if value, ok := form[name]; ok {
			_ = editor.SetField(name, value)
		}
	}
}

func productFormValues(product services.Product) map[string]string {
	return map[string]string{
		"name":        product.Name,
		"price":       strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", product.Price), "0"), "."),
		"description": product.Description,
	}
}

type formPayload struct {
	Mode          string            `json:"mode"`
	EditingID     string            `json:"editingId,omitempty"`
	Fields        map[string]string `json:"fields"`
	HasFile       bool              `json:"hasFile"`
	Busy          bool              `json:"busy"`
	CancelVisible bool              `json:"cancelVisible"`
}

func formPayloadFromModel(model view.FormModel) formPayload {
	return formPayload{
		Mode:          string(model.Mode),
		EditingID:     model.EditingID,
		Fields:        model.Fields,
		HasFile:       model.HasFile,
		Busy:          model.Busy,
		CancelVisible: model.CancelVisible,
	}
}

func writeEditorError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *view.ValidationError
	var upErr *view.UploadError
	var wErr *view.WriteError

	switch {
	case errors.As(err, &vErr):
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeValidation, vErr.Message, http.StatusBadRequest).
			WithDetails(map[string]any{"field": vErr.Field}))
	case errors.As(err, &upErr):
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeUploadFailed, "image upload failed", http.StatusBadGateway))
	case errors.As(err, &wErr):
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeWriteFailed, "write failed", http.StatusBadGateway))
	case errors.Is(err, view.ErrNotConfirmed):
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeValidation, "delete requires confirmation", http.StatusBadRequest))
	case errors.Is(err, view.ErrBusy):
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeWriteFailed, "another submission is in flight", http.StatusConflict))
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeWriteFailed, "request failed", http.StatusInternalServerError))
	}
}

// postCollection adapts the content service to the editor's collection
// contract. Posts are immutable once published; only Add is supported.
type postCollection struct {
	content services.ContentService
}

func (c *postCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	identity, _ := auth.IdentityFromContext(ctx)

	draft := services.PostDraft{
		Title:         stringField(fields, "title"),
		Content:       stringField(fields, "content"),
		CoverImageURL: stringField(fields, "coverImageUrl"),
	}
	if identity != nil {
		draft.AuthorID = identity.UID
		draft.AuthorName = identity.Byline()
	}

	post, err := c.content.PublishPost(ctx, draft)
	if err != nil {
		return "", err
	}
	return post.ID, nil
}

func (c *postCollection) Update(context.Context, string, map[string]any) error {
	return errors.New("blog posts are immutable once published")
}

func (c *postCollection) Delete(context.Context, string) error {
	return errors.New("blog posts are immutable once published")
}

// productCollection adapts the catalog service to the editor's collection contract.
type productCollection struct {
	catalog services.CatalogService
}

func (c *productCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	product, err := c.catalog.CreateProduct(ctx, services.Product{
		Name:        stringField(fields, "name"),
		Price:       floatField(fields, "price"),
		Description: stringField(fields, "description"),
		ImageURL:    stringField(fields, "imageUrl"),
	})
	if err != nil {
		return "", err
	}
	return product.ID, nil
}

func (c *productCollection) Update(ctx context.Context, id string, fields map[string]any) error {
	var update services.ProductUpdate
	if value, ok := fields["name"]; ok {
		name, _ := value.(string)
		update.Name = &name
	}
	if value, ok := fields["price"]; ok {
		price, _ := value.(float64)
		update.Price = &price
	}
	if value, ok := fields["description"]; ok {
		description, _ := value.(string)
		update.Description = &description
	}
	if value, ok := fields["imageUrl"]; ok {
		imageURL, _ := value.(string)
		update.ImageURL = &imageURL
	}
	return c.catalog.UpdateProduct(ctx, id, update)
}

func (c *productCollection) Delete(ctx context.Context, id string) error {
	return c.catalog.DeleteProduct(ctx, id)
}

// assetUploader adapts the storage client to the editor's uploader contract.
type assetUploader struct {
	store  ImageUploader
	prefix string
}

func (u *assetUploader) Upload(ctx context.Context, file view.FileInput) (string, error) {
	object := u.prefix + strings.ToLower(ulid.Make().String())
	if ext := path.Ext(file.Name); ext != "" {
		object += strings.ToLower(ext)
	}

	result, err := u.store.Upload(ctx, file.Data, storage.UploadOptions{
		ObjectPath:   object,
		ContentType:  file.ContentType,
		CacheControl: "public, max-age=86400",
	})
	if err != nil {
		return "", err
	}
	return result.PublicURL, nil
}

func stringField(fields map[string]any, name string) string {
	value, _ := fields[name].(string)
	return value
}

func floatField(fields map[string]any, name string) float64 {
	value, _ := fields[name].(float64)
	return value
}
