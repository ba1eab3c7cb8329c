package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"profilehub/models"
	"profilehub/pkg/access"
	"profilehub/pkg/apperr"
	"profilehub/pkg/captcha"
	"profilehub/pkg/storage"
	"profilehub/pkg/validation"
)

type photoView struct {
	ID         uuid.UUID
	URL        string
	PreviewURL string
	FileName   string
	Size       int64
}

func (s *server) photoViews(profileID uuid.UUID, photos []models.ProfilePhoto) []photoView {
	out := make([]photoView, len(photos))
	for i, ph := range photos {
		out[i] = photoView{
			ID:         ph.ID,
			URL:        s.photos.PhotoURL(profileID, ph.FileName),
			PreviewURL: s.photos.PreviewURL(profileID, ph.FileName),
			FileName:   ph.FileName,
			Size:       ph.Size,
		}
	}
	return out
}

func formFromProfile(p *models.Profile) validation.ProfileForm {
	f := validation.ProfileForm{
		Name:        p.Name,
		City:        p.City,
		PhoneNumber: p.PhoneNumber,
		Description: p.Description,
	}
	if p.Height > 0 {
		f.Height = strconv.Itoa(p.Height)
	}
	if p.Weight > 0 {
		f.Weight = strconv.Itoa(p.Weight)
	}
	if p.IsActive() {
		f.ProfileID = p.ID.String()
	}
	return f
}

func (s *server) renderProfileForm(c *gin.Context, status int, form validation.ProfileForm, errs validation.Errors, photos []photoView) {
	ctx := c.Request.Context()
	cities, err := s.store.FindCitiesOn(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	data := s.page(c)
	data["Form"] = form
	data["Errors"] = errs
	data["Photos"] = photos
	data["Cities"] = cities
	data["IsEdit"] = form.ProfileID != ""
	data["CaptchaID"] = s.cfg.CaptchaID
	c.HTML(status, "profile_form.html", data)
}

// addProfilePageHandler shows the add form bound to the user's draft, so
// photos uploaded before submit land on the row being published.
func (s *server) addProfilePageHandler(c *gin.Context) {
	identity, _ := access.IdentityFrom(c)
	p, photos, err := s.engine.DraftForAdd(c.Request.Context(), identity.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.renderProfileForm(c, http.StatusOK, formFromProfile(p), nil, s.photoViews(p.ID, photos))
}

func (s *server) editProfilePageHandler(c *gin.Context) {
	identity, _ := access.IdentityFrom(c)
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		s.renderNotFound(c)
		return
	}
	p, photos, err := s.engine.ProfileForEdit(c.Request.Context(), identity.UserID, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.renderProfileForm(c, http.StatusOK, formFromProfile(p), nil, s.photoViews(p.ID, photos))
}

// publishProfileHandler validates, scores the captcha, then publishes.
func (s *server) publishProfileHandler(c *gin.Context) {
	ctx := c.Request.Context()
	identity, _ := access.IdentityFrom(c)

	var form validation.ProfileForm
	if err := c.ShouldBind(&form); err != nil {
		s.fail(c, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}
	req, errs := validation.ValidateProfile(form)
	if !errs.Empty() {
		s.renderProfileForm(c, http.StatusBadRequest, form, errs, s.formPhotos(c, identity.UserID, form.ProfileID))
		return
	}
	if err := captcha.Check(ctx, s.captcha, req.CaptchaToken, s.cfg.CaptchaMinScore); err != nil {
		s.fail(c, err)
		return
	}
	_, updated, err := s.engine.Publish(ctx, identity.UserID, req.ProfileID, storage.ProfileFields{
		Name:        req.Name,
		Height:      req.Height,
		Weight:      req.Weight,
		Description: req.Description,
		PhoneNumber: req.PhoneNumber,
		City:        req.City,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	code := "profile_added"
	if updated {
		code = "profile_updated"
	}
	redirectMessage(c, "/", code)
}

// formPhotos loads the photos shown next to a re-rendered invalid form.
// Lookup failures just show no photos.
func (s *server) formPhotos(c *gin.Context, userID uuid.UUID, rawID string) []photoView {
	ctx := c.Request.Context()
	if id, err := uuid.Parse(rawID); err == nil {
		p, photos, err := s.engine.ProfileForEdit(ctx, userID, id)
		if err != nil {
			return nil
		}
		return s.photoViews(p.ID, photos)
	}
	if rawID != "" {
		return nil
	}
	p, photos, err := s.engine.DraftForAdd(ctx, userID)
	if err != nil {
		return nil
	}
	return s.photoViews(p.ID, photos)
}

func (s *server) deleteProfileHandler(c *gin.Context) {
	identity, _ := access.IdentityFrom(c)
	id, err := uuid.Parse(c.PostForm("id"))
	if err != nil {
		s.fail(c, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}
	if err := s.engine.DeleteProfile(c.Request.Context(), identity.UserID, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/?filter_type=my")
}
