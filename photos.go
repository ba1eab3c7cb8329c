package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"profilehub/pkg/access"
	"profilehub/pkg/apperr"
	"profilehub/pkg/lifecycle"
	"profilehub/pkg/validation"
)

const photoFormField = "new_profile_photos"

type previewConfig struct {
	Caption string `json:"caption"`
	Size    int64  `json:"size"`
	URL     string `json:"url"`
	Key     string `json:"key"`
}

// photoUploadResponse is the shape the upload widget expects.
type photoUploadResponse struct {
	Error                string          `json:"error"`
	InitialPreview       []string        `json:"initialPreview"`
	InitialPreviewConfig []previewConfig `json:"initialPreviewConfig"`
	Append               bool            `json:"append"`
}

func (s *server) uploadPhotoHandler(c *gin.Context) {
	identity, _ := access.IdentityFrom(c)
	resp := photoUploadResponse{InitialPreview: []string{}, InitialPreviewConfig: []previewConfig{}, Append: true}

	form, err := c.MultipartForm()
	if err != nil {
		s.photoUploadFailed(c, resp, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}
	var raw string
	if v := form.Value["profile_id"]; len(v) > 0 {
		raw = v[0]
	}
	profileID, err := validation.ParseOptionalUUID(raw)
	if err != nil {
		s.photoUploadFailed(c, resp, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}

	headers := form.File[photoFormField]
	uploads := make([]lifecycle.Upload, len(headers))
	for i, fh := range headers {
		fh := fh
		uploads[i] = lifecycle.Upload{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	p, added, err := s.engine.AddPhotos(c.Request.Context(), identity.UserID, profileID, uploads)
	s.metrics.photo("upload", len(added))
	if err != nil {
		s.photoUploadFailed(c, resp, err)
		return
	}
	for _, ph := range added {
		resp.InitialPreview = append(resp.InitialPreview, s.photos.PhotoURL(p.ID, ph.FileName))
		resp.InitialPreviewConfig = append(resp.InitialPreviewConfig, previewConfig{
			Caption: ph.FileName,
			Size:    ph.Size,
			URL:     "/profile_photo/delete",
			Key:     ph.ID.String(),
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) photoUploadFailed(c *gin.Context, resp photoUploadResponse, err error) {
	ae := s.classify(c, err)
	resp.Error = ae.MessageCode()
	c.JSON(ae.Status(), resp)
}

func (s *server) deletePhotoHandler(c *gin.Context) {
	identity, _ := access.IdentityFrom(c)
	id, err := uuid.Parse(c.PostForm("key"))
	if err != nil {
		s.failJSON(c, apperr.Wrap(apperr.KindBadParams, apperr.CodeBadRequest, err))
		return
	}
	if err := s.engine.DeletePhoto(c.Request.Context(), identity.UserID, id); err != nil {
		s.failJSON(c, err)
		return
	}
	s.metrics.photo("delete", 1)
	c.JSON(http.StatusOK, gin.H{"error": ""})
}
