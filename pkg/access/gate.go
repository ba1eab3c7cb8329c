// Package access derives the request identity from the session cookie and
// classifies crawlers. The gate only annotates requests; Guard is the variant
// that rejects anonymous callers.
package access

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

const (
	CookieName = "token"

	identityKey = "access.identity"
	botKey      = "access.bot"
)

type Identity struct {
	UserID uuid.UUID
	Name   string
}

// Gate reads the session cookie. A missing, expired or forged token leaves the
// request anonymous; it is never a hard failure.
func Gate(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(CookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}
		id, err := tokens.Parse(raw)
		if err != nil {
			log.Debugf("[access] ignoring session token: %v", err)
			c.Next()
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// Guard aborts requests without an identity. onReject writes the response,
// so HTML routes can redirect while JSON routes reply with a body.
func Guard(onReject func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFrom(c); !ok {
			onReject(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// UserIDFrom returns a pointer to the user id, or nil for anonymous requests.
func UserIDFrom(c *gin.Context) *uuid.UUID {
	id, ok := IdentityFrom(c)
	if !ok {
		return nil
	}
	uid := id.UserID
	return &uid
}

var botMarkers = []string{"bot", "crawler", "spider", "crawling"}

// IsBot matches well-known crawler substrings. Used to skip view counting only.
func IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			return true
		}
	}
	return false
}

func BotDetector() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(botKey, IsBot(c.GetHeader("User-Agent")))
		c.Next()
	}
}

func IsBotRequest(c *gin.Context) bool {
	return c.GetBool(botKey)
}

// SetSessionCookie stores the token as an HttpOnly cookie living maxAge seconds.
func SetSessionCookie(c *gin.Context, token string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
