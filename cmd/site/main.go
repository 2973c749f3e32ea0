package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/wokecoffee/site/internal/handlers"
	"github.com/wokecoffee/site/internal/platform/auth"
	"github.com/wokecoffee/site/internal/platform/config"
	pfirestore "github.com/wokecoffee/site/internal/platform/firestore"
	"github.com/wokecoffee/site/internal/platform/observability"
	"github.com/wokecoffee/site/internal/platform/secrets"
	"github.com/wokecoffee/site/internal/platform/storage"
	"github.com/wokecoffee/site/internal/repositories"
	firestoreRepo "github.com/wokecoffee/site/internal/repositories/firestore"
	"github.com/wokecoffee/site/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("site")
	ctx = observability.WithLogger(ctx, logger)

	var configOpts []config.Option
	if projectID := strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT")); projectID != "" {
		fetcher, err := secrets.NewFetcher(ctx, projectID, secrets.WithLogger(logger.Named("secrets")))
		if err != nil {
			logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
		}
		defer func() {
			if err := fetcher.Close(); err != nil {
				logger.Warn("secret fetcher close error", zap.Error(err))
			}
		}()
		configOpts = append(configOpts, config.WithSecretResolver(fetcher))
	}

	cfg, err := config.Load(ctx, configOpts...)
	if err != nil {
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	storageClient, err := storage.NewClient(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(verifier)

	postRepo, err := firestoreRepo.NewPostRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise post repository", zap.Error(err))
	}
	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	galleryRepo, err := repositories.NewImageHostGalleryRepository(storageClient, cfg.Storage.GalleryPrefix)
	if err != nil {
		logger.Fatal("failed to initialise gallery repository", zap.Error(err))
	}

	contentService, err := services.NewContentService(services.ContentServiceDeps{Repository: postRepo})
	if err != nil {
		logger.Fatal("failed to initialise content service", zap.Error(err))
	}
	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{Repository: productRepo})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}
	galleryService, err := services.NewGalleryService(services.GalleryServiceDeps{Repository: galleryRepo})
	if err != nil {
		logger.Fatal("failed to initialise gallery service", zap.Error(err))
	}

	publicHandlers, err := handlers.NewPublicHandlers(handlers.PublicHandlersDeps{
		Content: contentService,
		Catalog: catalogService,
		Gallery: galleryService,
	})
	if err != nil {
		logger.Fatal("failed to initialise public handlers", zap.Error(err))
	}

	adminHandlers, err := handlers.NewAdminHandlers(handlers.AdminHandlersDeps{
		Content:        contentService,
		Catalog:        catalogService,
		Gallery:        galleryService,
		Images:         storageClient,
		Blog:           publicHandlers.Blog(),
		Shop:           publicHandlers.Shop(),
		Photos:         publicHandlers.Photos(),
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	if err != nil {
		logger.Fatal("failed to initialise admin handlers", zap.Error(err))
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceContextMiddleware(),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithPublicRoutes(publicHandlers.Register),
		handlers.WithAdminRoutes(adminHandlers.Register, authenticator.RequireFirebaseAuth(auth.RoleAdmin)),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("coffee shop site listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
