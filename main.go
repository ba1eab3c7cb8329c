package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"profilehub/pkg/access"
	"profilehub/pkg/captcha"
	"profilehub/pkg/config"
	"profilehub/pkg/lifecycle"
	"profilehub/pkg/notify"
	"profilehub/pkg/photostore"
	"profilehub/pkg/signin"
	"profilehub/pkg/storage"
)

func main() {
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %+v", err)
	}
	setupLogging(cfg)

	db, err := openDB(cfg)
	if err != nil {
		log.Fatal(err)
	}

	// `profilehub migrate` runs the migrations and exits.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := storage.Migrate(db); err != nil {
			log.Fatal(err)
		}
		log.Info("migration completed")
		return
	}
	if cfg.DBAutoMigrate {
		if err := storage.Migrate(db); err != nil {
			log.Warnf("auto migrate: %v", err)
		}
	}

	s, err := buildServer(ctx, cfg, db)
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}
	defer s.views.Close()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		m := gin.New()
		m.GET("/metrics", gin.WrapH(s.metrics.handler()))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: m, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err)
			}
		}()
	}

	go func() {
		log.Infof("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("shutting down the server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	s.engine.Wait()
}

func setupLogging(cfg *config.Config) {
	log.SetHeader("${time_rfc3339} ${level} ${short_file}:${line}")
	if cfg.IsDevelopment() {
		log.SetLevel(log.DEBUG)
	} else {
		log.SetLevel(log.INFO)
	}
}

// buildServer wires the components from the config. Optional integrations
// (S3 mirror, report mail, Google sign-in, captcha) switch on when their
// settings are present.
func buildServer(ctx context.Context, cfg *config.Config, db *gorm.DB) (*server, error) {
	if err := ensurePhotosRoot(cfg.PhotosDir); err != nil {
		return nil, err
	}
	opts := photostore.Options{
		Root:      cfg.PhotosDir,
		MaxSide:   cfg.PhotoMaxSide,
		Watermark: cfg.PhotoWatermark,
		MaxPixels: cfg.PhotoMaxPixels,
	}
	if cfg.S3.Enabled() {
		mirror, err := photostore.NewS3Mirror(ctx, photostore.S3MirrorConfig{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			AccessKeySecret: cfg.S3.AccessKeySecret,
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
		})
		if err != nil {
			return nil, err
		}
		opts.Mirror = mirror
		log.Infof("mirroring photos to bucket %s", cfg.S3.Bucket)
	}
	photos := photostore.New(opts)
	store := storage.New(db)

	var notifier lifecycle.Notifier
	if cfg.SMTP.Enabled() {
		notifier = notify.NewMailer(notify.Config{
			Host:    cfg.SMTP.Host,
			Port:    cfg.SMTP.Port,
			User:    cfg.SMTP.User,
			Pass:    cfg.SMTP.Pass,
			From:    cfg.SMTP.From,
			To:      cfg.SMTP.ReportTo,
			SiteURL: cfg.SiteURL,
		})
	}

	var verifier captcha.Verifier = captcha.Disabled{}
	if cfg.CaptchaSecret != "" {
		verifier = captcha.NewRecaptcha(cfg.CaptchaSecret)
	} else {
		log.Warn("CAPTCHA_GOOGLE_SECRET is empty, captcha checks are disabled")
	}

	views, err := newTemplateRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.IsDevelopment() {
		if err := views.Watch(); err != nil {
			log.Warnf("template hot reload disabled: %v", err)
		}
	}

	s := &server{
		cfg:     cfg,
		store:   store,
		engine:  lifecycle.New(store, photos, notifier),
		photos:  photos,
		tokens:  access.NewTokens(cfg.JWTSecret, cfg.JWTExpiresIn),
		captcha: verifier,
		metrics: newMetrics(),
		views:   views,
	}
	if cfg.GoogleSignInEnabled() {
		gv, err := signin.NewGoogleVerifier(ctx, cfg.GoogleClientID)
		if err != nil {
			return nil, err
		}
		s.verifier = gv
	}
	if cfg.OAuthRedirectEnabled() {
		o, err := signin.NewOAuth(signin.OAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Secret:       cfg.JWTSecret,
			Secure:       !cfg.IsDevelopment(),
		})
		if err != nil {
			return nil, err
		}
		s.oauth = o
	}
	return s, nil
}
