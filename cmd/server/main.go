package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"learnpath/internal/auth"
	"learnpath/internal/cache"
	"learnpath/internal/config"
	apphttp "learnpath/internal/http"
	"learnpath/internal/mailer"
	"learnpath/internal/repository"
	"learnpath/internal/repository/sqlite"
	"learnpath/internal/service"
	"learnpath/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	store := sqlite.NewStore(db)
	if err := store.Init(ctx); err != nil {
		logger.Fatalf("init database: %v", err)
	}

	shared, closeCache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup cache: %v", err)
	}
	defer closeCache()

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	dispatcher := mailer.NewDispatcher(mailer.Config{
		From:          cfg.Mail.From,
		MaxConcurrent: cfg.Mail.MaxConcurrent,
		MaxAttempts:   cfg.Mail.MaxAttempts,
		Logger:        logger,
	}, store.Deliveries, buildSender(cfg, logger))
	if err := dispatcher.Start(ctx); err != nil {
		logger.Fatalf("start mail dispatcher: %v", err)
	}
	if err := dispatcher.Resume(ctx); err != nil {
		logger.Warnf("resume mail deliveries: %v", err)
	}

	templates, err := mailer.NewTemplates()
	if err != nil {
		logger.Fatalf("parse mail templates: %v", err)
	}
	outbox := mailer.NewOutbox(store.Deliveries, dispatcher, templates, cfg.Server.SiteURL, logger)

	catalogService := service.NewCatalogService(store.Catalog, logger)
	if cfg.Catalog.SeedFile != "" {
		res, err := catalogService.SeedFile(ctx, cfg.Catalog.SeedFile)
		if err != nil {
			logger.Fatalf("seed catalog: %v", err)
		}
		logger.Infof("catalog seeded: %d paths, %d courses, %d lessons added", res.Paths, res.Courses, res.Lessons)
	}

	userService := service.NewUserService(service.UserConfig{
		Staging:      cfg.Mail.Staging,
		BcryptCost:   cfg.Auth.BcryptCost,
		AvatarPrefix: cfg.Storage.KeyPrefix,
		Logger:       logger,
	}, store.Users, store.Catalog, outbox, storageSvc)

	oauthService := service.NewOAuthService(service.OAuthConfig{
		Staging:    cfg.Mail.Staging,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	}, buildProviders(cfg, logger), store.Users, store.Providers, store.Catalog, outbox, shared)

	promoteAdmins(ctx, store.Users, cfg.Auth.AdminEmails, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Deps{
		Users:       userService,
		OAuth:       oauthService,
		Progress:    service.NewProgressService(store.Catalog, store.Completions, shared, logger),
		Submissions: service.NewSubmissionService(store.Catalog, store.Submissions, store.Votes),
		Flags:       service.NewFlagService(store.Flags, store.Submissions, logger),
		Catalog:     catalogService,
		Tokens: auth.NewTokens(
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
			time.Duration(cfg.Auth.RememberTTLHours)*time.Hour,
		),
		Logger: logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	dispatcher.Shutdown()

	logger.Info("bye")
}

func buildCache(ctx context.Context, cfg config.Config, logger *logrus.Logger) (cache.Cache, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Info("using in-memory cache")
		return cache.NewMemory(), func() {}, nil
	}

	client, err := cache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("using redis cache at %s", cfg.Redis.Addr)
	return cache.NewRedis(client, cfg.Redis.KeyPrefix), func() { client.Close() }, nil
}

// buildStorage returns nil when no bucket is configured; avatar uploads are then refused.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("storage bucket not set, avatar uploads disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.Bucket), nil
}

func buildSender(cfg config.Config, logger *logrus.Logger) mailer.Sender {
	if cfg.Mail.Host == "" {
		logger.Warn("mail host not set, deliveries are only logged")
		return mailer.LogSender{Logger: logger}
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		UseTLS:   cfg.Mail.TLS,
	})
}

func buildProviders(cfg config.Config, logger *logrus.Logger) map[string]service.Provider {
	providers := make(map[string]service.Provider)
	if c := cfg.OAuth.GitHub; c.Enabled() {
		providers["github"] = service.GitHubProvider(c.ClientID, c.ClientSecret, c.RedirectURL)
	}
	if c := cfg.OAuth.Google; c.Enabled() {
		providers["google"] = service.GoogleProvider(c.ClientID, c.ClientSecret, c.RedirectURL)
	}
	for name := range providers {
		logger.Infof("oauth provider %s enabled", name)
	}
	return providers
}

func promoteAdmins(ctx context.Context, users repository.UserRepository, emails []string, logger *logrus.Logger) {
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		user, err := users.GetByEmail(ctx, email)
		if err != nil {
			logger.Warnf("promote admin %s: %v", email, err)
			continue
		}
		if user.Admin {
			continue
		}
		if err := users.SetAdmin(ctx, user.ID, true); err != nil {
			logger.Warnf("promote admin %s: %v", email, err)
			continue
		}
		logger.Infof("promoted %s to admin", email)
	}
}
