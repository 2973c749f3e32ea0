package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const defaultVersion = "latest"

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves sm:// references using Google Secret Manager with in-process caching.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	logger     *zap.Logger
	projectID  string

	mu    sync.RWMutex
	cache map[string]string
}

// Option customises Fetcher construction.
type Option func(*Fetcher)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClient injects a pre-built Secret Manager client (used in tests).
func WithClient(client secretManagerClient) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
			f.ownsClient = false
		}
	}
}

// NewFetcher constructs a Fetcher bound to the given default project.
func NewFetcher(ctx context.Context, projectID string, opts ...Option) (*Fetcher, error) {
	fetcher := &Fetcher{
		logger:    zap.NewNop(),
		projectID: strings.TrimSpace(projectID),
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(fetcher)
		}
	}

	if fetcher.client == nil {
		client, err := secretManagerClientFactory(ctx)
		if err != nil {
			return nil, fmt.Errorf("secrets: create secret manager client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}
	return fetcher, nil
}

// ResolveSecret fetches the referenced secret version, caching successful reads.
// Accepted forms: sm://projects/<p>/secrets/<name>/versions/<v> and sm://<name>
// (resolved against the default project at version latest).
func (f *Fetcher) ResolveSecret(ctx context.Context, ref string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}
	name, err := f.canonicalName(ref)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	cached, ok := f.cache[name]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", redact(name), err)
	}
	value := string(resp.GetPayload().GetData())

	f.mu.Lock()
	f.cache[name] = value
	f.mu.Unlock()

	f.logger.Debug("secret resolved", zap.String("secret", redact(name)))
	return value, nil
}

// Close releases the underlying client when owned by the fetcher.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}

func (f *Fetcher) canonicalName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	trimmed = strings.TrimPrefix(trimmed, "sm://")
	if trimmed == "" {
		return "", errors.New("secrets: empty secret reference")
	}
	if strings.HasPrefix(trimmed, "projects/") {
		return trimmed, nil
	}
	if f.projectID == "" {
		return "", fmt.Errorf("secrets: short reference %q requires a default project", trimmed)
	}
	name := trimmed
	version := defaultVersion
	if idx := strings.IndexByte(trimmed, '@'); idx > 0 {
		name = trimmed[:idx]
		version = trimmed[idx+1:]
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, name, version), nil
}

// redact keeps only the secret path structure to avoid leaking values in logs.
func redact(name string) string {
	parts := strings.Split(name, "/")
	if len(parts) >= 4 {
		return strings.Join(parts[:4], "/")
	}
	return name
}
