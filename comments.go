package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"profilehub/pkg/access"
	"profilehub/pkg/apperr"
	"profilehub/pkg/validation"
)

func firstCode(errs validation.Errors) string {
	for _, codes := range errs {
		if len(codes) > 0 {
			return codes[0]
		}
	}
	return apperr.CodeBadRequest
}

func (s *server) addCommentHandler(c *gin.Context) {
	identity, _ := access.IdentityFrom(c)
	profileID, err := uuid.Parse(c.PostForm("profile_id"))
	if err != nil {
		s.fail(c, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}
	back := profilePath(profileID.String())
	text, errs := validation.ValidateComment(c.PostForm("text"))
	if !errs.Empty() {
		redirectError(c, back, firstCode(errs))
		return
	}
	if _, err := s.engine.AddComment(c.Request.Context(), identity.UserID, profileID, text); err != nil {
		if apperr.Is(err, apperr.KindBadParams) {
			redirectError(c, back, s.classify(c, err).MessageCode())
			return
		}
		s.fail(c, err)
		return
	}
	redirectMessage(c, back, "comment_added")
}

func (s *server) removeCommentHandler(c *gin.Context) {
	identity, _ := access.IdentityFrom(c)
	id, err := uuid.Parse(c.PostForm("id"))
	if err != nil {
		s.fail(c, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}
	profileID, err := s.engine.RemoveComment(c.Request.Context(), identity.UserID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	redirectMessage(c, profilePath(profileID.String()), "comment_removed")
}

// reportHandler accepts reports from anyone, signed in or not.
func (s *server) reportHandler(c *gin.Context) {
	profileID, err := validation.ParseOptionalUUID(c.PostForm("profile_id"))
	if err != nil {
		s.fail(c, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}
	back := "/"
	if profileID != nil {
		back = profilePath(profileID.String())
	}
	text, errs := validation.ValidateReport(c.PostForm("text"))
	if !errs.Empty() {
		redirectError(c, back, firstCode(errs))
		return
	}
	meta := map[string]interface{}{
		"ip":         c.ClientIP(),
		"user_agent": c.Request.UserAgent(),
		"request_id": requestIDFrom(c),
	}
	if _, err := s.engine.AddReport(c.Request.Context(), access.UserIDFrom(c), profileID, text, meta); err != nil {
		s.fail(c, err)
		return
	}
	redirectMessage(c, back, "report_added")
}
