package main

import (
	"encoding/xml"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"profilehub/models"
	"profilehub/pkg/access"
	"profilehub/pkg/photostore"
)

const noPhotoURL = "/static/img/no_photo.svg"

type profileCard struct {
	ID               uuid.UUID
	Name             string
	City             string
	ShortDescription string
	PhotoURL         string
	Created          string
}

type commentView struct {
	ID        uuid.UUID
	Author    string
	Text      string
	CreatedAt time.Time
	Mine      bool
}

type pagination struct {
	HasNext     bool
	HasPrevious bool
	Current     int
	Total       int64
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// homeHandler lists search results, the user's own profiles, or a page of
// active profiles, in that order of precedence.
func (s *server) homeHandler(c *gin.Context) {
	ctx := c.Request.Context()
	search := strings.TrimSpace(c.Query("search"))
	city := strings.TrimSpace(c.Query("filter_city"))
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	identity, signedIn := access.IdentityFrom(c)
	ownOnly := signedIn && c.Query("filter_type") == "my"

	var (
		profiles []models.Profile
		pages    int64
		err      error
	)
	switch {
	case search != "":
		profiles, err = s.store.SearchProfiles(ctx, search, profilesOnPage)
	case ownOnly:
		profiles, err = s.store.FindUserProfiles(ctx, identity.UserID)
	default:
		pages, profiles, err = s.store.PaginateActiveProfiles(ctx, profilesOnPage, page, city)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	ids := make([]uuid.UUID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	firstPhotos, err := s.store.FindFirstPhotoPerProfile(ctx, ids)
	if err != nil {
		s.fail(c, err)
		return
	}
	cities, err := s.store.FindCitiesOn(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	cards := make([]profileCard, 0, len(profiles))
	for _, p := range profiles {
		card := profileCard{
			ID:               p.ID,
			Name:             p.Name,
			City:             p.City,
			ShortDescription: shorten(p.Description, 20),
			PhotoURL:         noPhotoURL,
			Created:          p.CreatedAt.Format(dateFormat),
		}
		if ph := firstPhotos[p.ID]; ph != nil {
			card.PhotoURL = s.photos.PreviewURL(p.ID, ph.FileName)
		}
		cards = append(cards, card)
	}

	current := page
	if current < 1 {
		current = 1
	}
	data := s.page(c)
	data["Profiles"] = cards
	data["Cities"] = cities
	data["CurrentCity"] = city
	data["Search"] = search
	data["IsUserProfiles"] = ownOnly
	data["Pagination"] = pagination{
		HasNext:     int64(current) < pages,
		HasPrevious: current > 1,
		Current:     current,
		Total:       pages,
	}
	c.HTML(http.StatusOK, "home.html", data)
}

func (s *server) viewProfileHandler(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := uuid.Parse(c.Query("id"))
	if err != nil {
		s.renderNotFound(c)
		return
	}
	p, err := s.store.FindActiveProfile(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if p == nil {
		s.renderNotFound(c)
		return
	}
	photos, err := s.store.FindActivePhotos(ctx, p.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	comments, err := s.store.AllCommentsForProfile(ctx, p.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !access.IsBotRequest(c) {
		if _, err := s.store.IncrementViewCount(ctx, []uuid.UUID{p.ID}); err != nil {
			log.Warnf("view count for %s: %v", p.ID, err)
		}
	}

	data := s.page(c)
	canComment := false
	identity, signedIn := access.IdentityFrom(c)
	if signedIn {
		data["IsOwner"] = identity.UserID == p.UserID
		existing, err := s.store.FindCommentByProfileAndUser(ctx, p.ID, identity.UserID)
		if err != nil {
			s.fail(c, err)
			return
		}
		canComment = existing == nil
	}
	urls := make([]string, len(photos))
	for i, ph := range photos {
		urls[i] = s.photos.PhotoURL(p.ID, ph.FileName)
	}
	views := make([]commentView, len(comments))
	for i, cm := range comments {
		views[i] = commentView{
			ID:        cm.ID,
			Author:    cm.User.Name,
			Text:      cm.Text,
			CreatedAt: cm.CreatedAt,
			Mine:      signedIn && cm.UserID == identity.UserID,
		}
	}
	data["Profile"] = p
	data["PhotoURLs"] = urls
	data["Comments"] = views
	data["CanComment"] = canComment
	c.HTML(http.StatusOK, "view_profile.html", data)
}

// photoFileHandler serves stored photos. Soft-deleted files and folders are
// hidden.
func (s *server) photoFileHandler(c *gin.Context) {
	profileID, err := uuid.Parse(c.Param("profile"))
	name := c.Param("name")
	if err != nil || strings.HasPrefix(name, photostore.DeletedPrefix) || name != filepath.Base(name) {
		s.renderNotFound(c)
		return
	}
	c.File(filepath.Join(s.photos.ProfileDir(profileID), name))
}

type sitemapURL struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq"`
	Priority   float64 `xml:"priority"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *server) sitemapHandler(c *gin.Context) {
	ctx := c.Request.Context()
	base := strings.TrimRight(s.cfg.SiteURL, "/")
	cities, err := s.store.FindCitiesOn(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	profiles, err := s.store.AllActiveProfiles(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{Loc: base + "/", ChangeFreq: "daily", Priority: 1.0})
	for _, city := range cities {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        base + "/?filter_city=" + url.QueryEscape(city.Name),
			ChangeFreq: "daily",
			Priority:   0.9,
		})
	}
	for _, p := range profiles {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        base + profilePath(p.ID.String()),
			LastMod:    p.UpdatedAt.Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   0.7,
		})
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", append([]byte(xml.Header), out...))
}

func (s *server) robotsHandler(c *gin.Context) {
	base := strings.TrimRight(s.cfg.SiteURL, "/")
	c.String(http.StatusOK, "User-agent: *\nSitemap: %s/sitemap.xml\n", base)
}
