package main

import (
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labstack/gommon/log"

	"profilehub/pkg/access"
	"profilehub/pkg/apperr"
	"profilehub/pkg/captcha"
	"profilehub/pkg/config"
	"profilehub/pkg/lifecycle"
	"profilehub/pkg/photostore"
	"profilehub/pkg/signin"
	"profilehub/pkg/storage"
)

const profilesOnPage = 12

// server holds everything the handlers need. Built once in main.
type server struct {
	cfg      *config.Config
	store    *storage.Gateway
	engine   *lifecycle.Engine
	photos   *photostore.Store
	tokens   *access.Tokens
	captcha  captcha.Verifier
	verifier signin.Verifier // nil when Google sign-in is not configured
	oauth    *signin.OAuth   // nil when the redirect flow is not configured
	metrics  *metrics
	views    *templateRenderer
}

func newRouter(s *server) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		requestID(),
		accessLog(),
		s.metrics.middleware(),
		bodyLimit(s.cfg.MaxUploadMB<<20),
		access.Gate(s.tokens),
		access.BotDetector(),
	)
	r.HTMLRender = s.views
	setupRoutes(r, s)
	return r
}

func setupRoutes(r *gin.Engine, s *server) {
	static, err := fs.Sub(staticFS, "web/static")
	if err != nil {
		log.Fatalf("static assets: %v", err)
	}
	r.StaticFS("/static", http.FS(static))
	r.GET("/photos/:profile/:name", s.photoFileHandler)

	limited := rateLimit(s.cfg.RateLimitPerMinute, time.Minute)

	r.GET("/", s.homeHandler)
	r.GET("/view_profile", s.viewProfileHandler)
	r.GET("/sitemap.xml", s.sitemapHandler)
	r.GET("/robots.txt", s.robotsHandler)
	r.GET("/sign_out", s.signOutHandler)
	r.POST("/sign_in/google", limited, s.googleSignInHandler)
	r.POST("/report", limited, s.reportHandler)
	if s.oauth != nil {
		r.GET("/auth/google", s.oauthBeginHandler)
		r.GET("/auth/google/callback", s.oauthCallbackHandler)
	}

	authGroup := r.Group("")
	authGroup.Use(access.Guard(s.rejectHTML))
	authGroup.GET("/add_profile", s.addProfilePageHandler)
	authGroup.GET("/edit_profile", s.editProfilePageHandler)
	authGroup.POST("/add_profile", limited, s.publishProfileHandler)
	authGroup.POST("/delete_profile", limited, s.deleteProfileHandler)
	authGroup.POST("/comment", limited, s.addCommentHandler)
	authGroup.POST("/comment/remove", limited, s.removeCommentHandler)

	apiGroup := r.Group("")
	apiGroup.Use(access.Guard(s.rejectJSON), limited)
	apiGroup.POST("/profile_photo", s.uploadPhotoHandler)
	apiGroup.POST("/profile_photo/delete", s.deletePhotoHandler)

	r.NoRoute(s.notFoundHandler)
}

func (s *server) rejectHTML(c *gin.Context) {
	s.metrics.failure(apperr.NotAuthorized())
	redirectError(c, "/", apperr.CodeUnauthorized)
}

func (s *server) rejectJSON(c *gin.Context) {
	s.metrics.failure(apperr.NotAuthorized())
	c.JSON(http.StatusUnauthorized, gin.H{"error": apperr.CodeUnauthorized})
}

// page returns the template data every page shares.
func (s *server) page(c *gin.Context) gin.H {
	h := gin.H{
		"Message":        c.Query("message"),
		"Error":          c.Query("error"),
		"GoogleClientID": s.cfg.GoogleClientID,
		"OAuthEnabled":   s.oauth != nil,
		"SiteURL":        s.cfg.SiteURL,
		"SignInURI":      s.cfg.SiteURL + "/sign_in/google",
	}
	if id, ok := access.IdentityFrom(c); ok {
		h["SignedIn"] = true
		h["UserName"] = id.Name
	}
	return h
}

// fail answers an HTML request with the outcome for err: NotFound renders
// the 404 page, anything else redirects to the listing with an error code.
func (s *server) fail(c *gin.Context, err error) {
	ae := s.classify(c, err)
	if ae.Kind == apperr.KindNotFound {
		s.renderNotFound(c)
		return
	}
	redirectError(c, "/", ae.MessageCode())
}

func (s *server) failJSON(c *gin.Context, err error) {
	ae := s.classify(c, err)
	c.JSON(ae.Status(), gin.H{"error": ae.MessageCode()})
}

func (s *server) classify(c *gin.Context, err error) *apperr.Error {
	ae := apperr.From(err)
	s.metrics.failure(ae)
	if ae.Kind == apperr.KindServerError {
		log.Errorf("%s %s rid=%s: %v", c.Request.Method, c.Request.URL.Path, requestIDFrom(c), err)
	} else {
		log.Debugf("%s %s rid=%s: %v", c.Request.Method, c.Request.URL.Path, requestIDFrom(c), err)
	}
	return ae
}

func (s *server) renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404.html", s.page(c))
}

func (s *server) notFoundHandler(c *gin.Context) {
	s.renderNotFound(c)
}

// redirectError sends the browser to path with ?error=code appended.
func redirectError(c *gin.Context, path, code string) {
	c.Redirect(http.StatusFound, withQuery(path, "error", code))
}

func redirectMessage(c *gin.Context, path, code string) {
	c.Redirect(http.StatusFound, withQuery(path, "message", code))
}

func withQuery(path, key, value string) string {
	u, err := url.Parse(path)
	if err != nil {
		return "/"
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func profilePath(id string) string {
	return "/view_profile?id=" + url.QueryEscape(id)
}
