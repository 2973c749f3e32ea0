package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/wokecoffee/site/internal/platform/config"
)

var (
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errEmptyPayload       = errors.New("storage: payload is empty")
	errPayloadTooLarge    = errors.New("storage: payload exceeds upload size cap")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errContentTypeDenied  = errors.New("storage: content type not allowed")
)

// Client provides image-host operations over a single bucket: uploading assets
// that become publicly addressable, and listing the gallery prefix.
type Client struct {
	bucket  *storage.BucketHandle
	cfg     config.StorageConfig
	now     func() time.Time
	gcs     *storage.Client
	ownsGCS bool
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithGCSClient injects a pre-built storage client.
func WithGCSClient(client *storage.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.gcs = client
			c.ownsGCS = false
		}
	}
}

// NewClient constructs a storage client bound to the configured bucket.
func NewClient(ctx context.Context, cfg config.StorageConfig, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errInvalidBucket
	}

	client := &Client{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.gcs == nil {
		gcs, err := storage.NewClient(ctx, []option.ClientOption(nil)...)
		if err != nil {
			return nil, fmt.Errorf("storage: create client: %w", err)
		}
		client.gcs = gcs
		client.ownsGCS = true
	}
	client.bucket = client.gcs.Bucket(cfg.Bucket)
	return client, nil
}

// UploadOptions describe a single asset upload.
type UploadOptions struct {
	ObjectPath   string
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// UploadResult reports where the uploaded asset landed.
type UploadResult struct {
	ObjectPath string
	PublicURL  string
	Size       int64
	UploadedAt time.Time
}

// Upload writes the payload to the bucket and returns its public URL. The
// payload is validated against the configured content-type allow list and
// size cap before any network traffic.
func (c *Client) Upload(ctx context.Context, data []byte, opts UploadOptions) (UploadResult, error) {
	if c == nil || c.bucket == nil {
		return UploadResult{}, errInvalidBucket
	}
	object := strings.TrimSpace(opts.ObjectPath)
	if object == "" {
		return UploadResult{}, errInvalidObject
	}
	if err := c.validatePayload(data, opts.ContentType); err != nil {
		return UploadResult{}, err
	}

	writer := c.bucket.Object(object).NewWriter(ctx)
	writer.ContentType = strings.TrimSpace(opts.ContentType)
	if opts.CacheControl != "" {
		writer.CacheControl = opts.CacheControl
	}
	if len(opts.Metadata) > 0 {
		writer.Metadata = opts.Metadata
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return UploadResult{}, fmt.Errorf("storage: write object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("storage: finalize object %s: %w", object, err)
	}

	return UploadResult{
		ObjectPath: object,
		PublicURL:  c.PublicURL(object),
		Size:       int64(len(data)),
		UploadedAt: c.now().UTC(),
	}, nil
}

// ObjectInfo describes a stored asset returned by List.
type ObjectInfo struct {
	Name        string
	ContentType string
	Size        int64
	Created     time.Time
}

// List enumerates objects under the given prefix, newest first.
func (c *Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if c == nil || c.bucket == nil {
		return nil, errInvalidBucket
	}

	iter := c.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var objects []ObjectInfo
	for {
		attrs, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list prefix %s: %w", prefix, err)
		}
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		objects = append(objects, ObjectInfo{
			Name:        attrs.Name,
			ContentType: attrs.ContentType,
			Size:        attrs.Size,
			Created:     attrs.Created.UTC(),
		})
	}

	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Created.After(objects[j].Created)
	})
	return objects, nil
}

// PublicURL returns the CDN address for the given object.
func (c *Client) PublicURL(object string) string {
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if base := strings.TrimSpace(c.cfg.PublicBaseURL); base != "" {
		return fmt.Sprintf("%s/%s", base, object)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", c.cfg.Bucket, object)
}

// VariantURL returns the CDN address for a resized rendition of the object.
// Width <= 0 yields the full-size URL.
func (c *Client) VariantURL(object string, width int) string {
	base := c.PublicURL(object)
	if width <= 0 {
		return base
	}
	return fmt.Sprintf("%s?w=%d", base, width)
}

// Close releases the underlying storage client when owned by this wrapper.
func (c *Client) Close() error {
	if c == nil || c.gcs == nil || !c.ownsGCS {
		return nil
	}
	return c.gcs.Close()
}

func (c *Client) validatePayload(data []byte, contentType string) error {
	if len(data) == 0 {
		return errEmptyPayload
	}
	if c.cfg.MaxUploadBytes > 0 && int64(len(data)) > c.cfg.MaxUploadBytes {
		return errPayloadTooLarge
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return errContentTypeMissing
	}
	if len(c.cfg.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, c.cfg.AllowedContentTypes) {
		return errContentTypeDenied
	}
	return nil
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			if strings.HasPrefix(normalized, strings.TrimSuffix(candidate, "*")) {
				return true
			}
			continue
		}
		if normalized == candidate {
			return true
		}
	}
	return false
}
