package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultGalleryPrefix  = "gallery/"
	defaultMaxUploadBytes = 10 << 20

	secretRefPrefix = "sm://"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Storage   StorageConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores document database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig describes the image host: the bucket holding uploaded assets,
// the public base URL they are served from, and upload acceptance policy.
type StorageConfig struct {
	Bucket              string
	PublicBaseURL       string
	GalleryPrefix       string
	MaxUploadBytes      int64
	AllowedContentTypes []string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secrets      SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = strings.TrimSpace(path)
	}
}

// WithEnvMap supplies explicit key/value overrides applied after system env.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading the process environment (used in tests).
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver enables resolution of sm:// secret references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secrets = resolver
	}
}

// Load builds the Config from a dotenv file, the process environment and
// explicit overrides, in that precedence order (dotenv < OS env < overrides).
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	values, err := environmentValues(options)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) string {
		return strings.TrimSpace(values[key])
	}

	resolve := func(key string) (string, error) {
		raw := lookup(key)
		if !strings.HasPrefix(raw, secretRefPrefix) {
			return raw, nil
		}
		if options.secrets == nil {
			return "", fmt.Errorf("config: %s references a secret but no resolver is configured", key)
		}
		secret, err := options.secrets.ResolveSecret(ctx, raw)
		if err != nil {
			return "", fmt.Errorf("config: resolve secret for %s: %w", key, err)
		}
		return strings.TrimSpace(secret), nil
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         fallback(lookup("PORT"), defaultPort),
			ReadTimeout:  durationValue(lookup("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationValue(lookup("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationValue(lookup("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    lookup("FIRESTORE_PROJECT_ID"),
			EmulatorHost: lookup("FIRESTORE_EMULATOR_HOST"),
		},
		Storage: StorageConfig{
			Bucket:         lookup("STORAGE_BUCKET"),
			PublicBaseURL:  strings.TrimRight(lookup("STORAGE_PUBLIC_BASE_URL"), "/"),
			GalleryPrefix:  fallback(lookup("STORAGE_GALLERY_PREFIX"), defaultGalleryPrefix),
			MaxUploadBytes: int64Value(lookup("STORAGE_MAX_UPLOAD_BYTES"), defaultMaxUploadBytes),
		},
	}

	cfg.Firebase.ProjectID = fallback(lookup("FIREBASE_PROJECT_ID"), cfg.Firestore.ProjectID)
	credentials, err := resolve("FIREBASE_CREDENTIALS_FILE")
	if err != nil {
		return Config{}, err
	}
	cfg.Firebase.CredentialsFile = credentials

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	if raw := lookup("STORAGE_ALLOWED_CONTENT_TYPES"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				cfg.Storage.AllowedContentTypes = append(cfg.Storage.AllowedContentTypes, trimmed)
			}
		}
	} else {
		cfg.Storage.AllowedContentTypes = []string{"image/*"}
	}
	if !strings.HasSuffix(cfg.Storage.GalleryPrefix, "/") {
		cfg.Storage.GalleryPrefix += "/"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.Firestore.ProjectID) == "" {
		missing = append(missing, "FIRESTORE_PROJECT_ID")
	}
	if strings.TrimSpace(c.Firebase.ProjectID) == "" {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		missing = append(missing, "STORAGE_MAX_UPLOAD_BYTES")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ValidationError{fields: missing}
	}
	return nil
}

func environmentValues(options loaderOptions) (map[string]string, error) {
	values := make(map[string]string)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	for key, value := range dotEnvValues {
		values[key] = value
	}

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			values[key] = parts[1]
		}
	}

	for key, value := range options.envMap {
		values[key] = value
	}

	return values, nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

func durationValue(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func int64Value(raw string, def int64) int64 {
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
