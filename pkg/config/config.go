package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env         string `env:"ENV,default=dev"`
	Addr        string `env:"ADDR,default=:8081"`
	MetricsAddr string `env:"METRICS_ADDR"`
	SiteURL     string `env:"SITE_URL,default=http://localhost:8081"`

	DatabaseURL   string `env:"DATABASE_URL,required"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE,default=true"`

	JWTSecret    string        `env:"JWT_SECRET,required"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN,default=60m"`
	JWTMaxAge    int           `env:"JWT_MAXAGE,default=60"` // minutes

	GoogleClientID     string `env:"OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"OAUTH_GOOGLE_REDIRECT_URL"`

	PhotosDir      string `env:"PHOTOS_DIR,default=photos"`
	PhotoMaxSide   int    `env:"PHOTO_MAX_SIDE,default=1600"`
	PhotoWatermark string `env:"PHOTO_WATERMARK"`
	PhotoMaxPixels int    `env:"PHOTO_MAX_PIXELS,default=50000000"`
	MaxUploadMB    int64  `env:"MAX_UPLOAD_MB,default=30"`

	CaptchaID       string  `env:"CAPTCHA_GOOGLE_ID"`
	CaptchaSecret   string  `env:"CAPTCHA_GOOGLE_SECRET"`
	CaptchaMinScore float64 `env:"CAPTCHA_GOOGLE_SCORE,default=0.5"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE,default=30"`

	S3 S3Config

	SMTP SMTPConfig
}

type S3Config struct {
	Endpoint        string `env:"S3_ENDPOINT"`
	AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"S3_ACCESS_KEY_SECRET"`
	Bucket          string `env:"S3_BUCKET"`
	Region          string `env:"S3_REGION,default=auto"`
}

// Enabled reports whether the photo mirror has enough settings to run.
func (s S3Config) Enabled() bool {
	return s.Bucket != "" && s.AccessKeyID != "" && s.AccessKeySecret != ""
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,default=587"`
	User     string `env:"SMTP_USER"`
	Pass     string `env:"SMTP_PASS"`
	From     string `env:"SMTP_FROM"`
	ReportTo string `env:"REPORT_EMAIL_TO"`
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.ReportTo != ""
}

// Load reads ./.env (outside production) and then the process environment.
// Variables already set in the environment win over the .env file.
func Load(ctx context.Context) (*Config, error) {
	if os.Getenv("ENV") != "production" {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(); err != nil {
				return nil, fmt.Errorf("loading .env: %w", err)
			}
		}
	}
	cfg := &Config{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}

// SessionMaxAge is the cookie max-age in seconds.
func (c *Config) SessionMaxAge() int {
	return c.JWTMaxAge * 60
}

func (c *Config) GoogleSignInEnabled() bool {
	return c.GoogleClientID != ""
}

func (c *Config) OAuthRedirectEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}
