package signin

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"golang.org/x/crypto/hkdf"
)

const providerName = "google"

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Secret seeds the cookie store keys.
	Secret string
	Secure bool
}

// OAuth runs the Google redirect flow through goth.
type OAuth struct{}

func NewOAuth(cfg OAuthConfig) (*OAuth, error) {
	hashKey, blockKey, err := deriveKeys(cfg.Secret)
	if err != nil {
		return nil, err
	}
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.MaxAge(15 * 60)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.Secure
	store.Options.SameSite = http.SameSiteLaxMode
	gothic.Store = store

	goth.UseProviders(google.New(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL, "email", "profile"))
	gothic.GetProviderName = func(*http.Request) (string, error) { return providerName, nil }
	return &OAuth{}, nil
}

// deriveKeys expands secret into a 32 byte HMAC key and a 32 byte AES key.
func deriveKeys(secret string) (hashKey, blockKey []byte, err error) {
	if secret == "" {
		return nil, nil, fmt.Errorf("oauth: empty secret")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("profilehub oauth cookie store"))
	hashKey = make([]byte, 32)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("oauth: derive hash key: %w", err)
	}
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("oauth: derive block key: %w", err)
	}
	return hashKey, blockKey, nil
}

// Begin redirects to Google's consent page.
func (o *OAuth) Begin(c *gin.Context) {
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// Complete finishes the flow on the callback request.
func (o *OAuth) Complete(c *gin.Context) (Person, error) {
	u, err := gothic.CompleteUserAuth(c.Writer, c.Request)
	if err != nil {
		return Person{}, fmt.Errorf("complete oauth: %w", err)
	}
	_ = gothic.Logout(c.Writer, c.Request)
	return personFromClaims(map[string]interface{}{"email": u.Email, "name": u.Name})
}
