package main

import (
	"github.com/gin-gonic/gin"
	"github.com/labstack/gommon/log"

	"profilehub/pkg/access"
	"profilehub/pkg/signin"
)

const providerGoogle = "Google"

// googleSignInHandler is the Google Identity Services form callback.
func (s *server) googleSignInHandler(c *gin.Context) {
	if s.verifier == nil {
		redirectError(c, "/", signin.CodeInvalidUser)
		return
	}
	credential := c.PostForm("credential")
	formToken := c.PostForm(signin.CSRFCookie)
	cookieToken, _ := c.Cookie(signin.CSRFCookie)
	if code := signin.CheckCSRF(credential, formToken, cookieToken); code != "" {
		log.Warnf("[signin] rejected callback: %s rid=%s", code, requestIDFrom(c))
		redirectError(c, "/", code)
		return
	}
	person, err := s.verifier.Verify(c.Request.Context(), credential)
	if err != nil {
		log.Warnf("[signin] credential rejected: %v", err)
		redirectError(c, "/", signin.CodeInvalidUser)
		return
	}
	s.completeSignIn(c, person)
}

func (s *server) oauthBeginHandler(c *gin.Context) {
	s.oauth.Begin(c)
}

func (s *server) oauthCallbackHandler(c *gin.Context) {
	person, err := s.oauth.Complete(c)
	if err != nil {
		log.Warnf("[signin] oauth callback: %v", err)
		redirectError(c, "/", signin.CodeInvalidUser)
		return
	}
	s.completeSignIn(c, person)
}

// completeSignIn finds or creates the user and starts the session.
func (s *server) completeSignIn(c *gin.Context, person signin.Person) {
	user, err := s.store.FindOrAddUser(c.Request.Context(), person.Name, person.Email, providerGoogle)
	if err != nil {
		s.fail(c, err)
		return
	}
	token, err := s.tokens.Issue(user.ID, user.Name, user.Email)
	if err != nil {
		s.fail(c, err)
		return
	}
	access.SetSessionCookie(c, token, s.cfg.SessionMaxAge())
	log.Infof("[signin] user %s signed in", user.ID)
	redirectMessage(c, "/", "sign_in_ok")
}

func (s *server) signOutHandler(c *gin.Context) {
	access.ClearSessionCookie(c)
	redirectMessage(c, "/", "sign_out_ok")
}
