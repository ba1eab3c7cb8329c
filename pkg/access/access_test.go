package access

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	uid := uuid.New()

	raw, err := tokens.Issue(uid, "Anna", "anna@example.com")
	require.NoError(t, err)

	id, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, uid, id.UserID)
	assert.Equal(t, "Anna", id.Name)
}

func TestTokenRejectsExpiredAndForeign(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := &Tokens{Secret: []byte("secret"), TTL: time.Minute, now: func() time.Time { return issued }}
	raw, err := tokens.Issue(uuid.New(), "Anna", "")
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.Parse(raw)
	assert.Error(t, err)

	other := NewTokens("other-secret", time.Hour)
	fresh, err := other.Issue(uuid.New(), "Bob", "")
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Hour).Parse(fresh)
	assert.Error(t, err)
}

func TestIsBot(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsBot("Mozilla/5.0 (compatible; Googlebot/2.1)"))
	assert.True(IsBot("AhrefsCRAWLER"))
	assert.True(IsBot("some-spider/1.0"))
	assert.True(IsBot("Crawling agent"))
	assert.False(IsBot("Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"))
	assert.False(IsBot(""))
}

func newGateRouter(tokens *Tokens) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Gate(tokens), BotDetector())
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"auth": ok, "user": id.UserID.String(), "bot": IsBotRequest(c)})
	})
	guarded := r.Group("")
	guarded.Use(Guard(func(c *gin.Context) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}))
	guarded.GET("/private", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestGateIsNeverAHardFailure(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	r := newGateRouter(tokens)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"auth":false`)

	uid := uuid.New()
	raw, err := tokens.Issue(uid, "Anna", "")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: raw})
	req.Header.Set("User-Agent", "Googlebot")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), `"auth":true`)
	assert.Contains(t, rec.Body.String(), uid.String())
	assert.Contains(t, rec.Body.String(), `"bot":true`)
}

func TestGuardRejectsAnonymous(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	r := newGateRouter(tokens)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	raw, _ := tokens.Issue(uuid.New(), "Anna", "")
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: raw})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionCookieHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	SetSessionCookie(c, "abc", 3600)
	ClearSessionCookie(c)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, -1, cookies[1].MaxAge)
}
