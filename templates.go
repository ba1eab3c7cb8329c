package main

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin/render"
	"github.com/labstack/gommon/log"

	"profilehub/pkg/validation"
)

//go:embed web/templates/*.html
var templateFS embed.FS

//go:embed web/static
var staticFS embed.FS

const (
	templateDir  = "web/templates"
	templateGlob = templateDir + "/*.html"
	dateFormat   = "2006-01-02 15:04"
)

var messages = map[string]string{
	"profile_added":        "Your profile is published.",
	"profile_updated":      "Your profile is updated.",
	"comment_added":        "Thanks, your comment is posted.",
	"comment_removed":      "Your comment was removed.",
	"report_added":         "Thanks, the report was sent to the moderators.",
	"sign_in_ok":           "You are signed in.",
	"sign_out_ok":          "You are signed out.",
	"server_error":         "Something went wrong on our side. Please try again.",
	"unauthorized":         "Please sign in first.",
	"404":                  "Nothing here.",
	"bad_request":          "The request could not be processed.",
	"bot_detected":         "The submission looked automated and was rejected.",
	"comment_exists":       "You already commented on this profile.",
	"too_many_photos":      "A profile can hold at most 5 photos.",
	"not_image":            "Only image files can be uploaded.",
	"image_too_large":      "The image has too many pixels.",
	"lost_credentials":     "Sign-in failed: no credential received.",
	"lost_g_csrf_token":    "Sign-in failed: missing security token.",
	"invalid_g_csrf_token": "Sign-in failed: security token mismatch.",
	"invalid_user":         "Sign-in failed: the account could not be verified.",
	"is_empty":             "Required.",
	"length":               "Wrong length.",
	"range":                "Out of range.",
	"format":               "Wrong format.",
}

// messageText maps a message code to display text. Unknown codes are shown
// as they are.
func messageText(code string) string {
	if s, ok := messages[code]; ok {
		return s
	}
	return code
}

var templateFuncs = template.FuncMap{
	"message": messageText,
	"date": func(t time.Time) string {
		return t.Format(dateFormat)
	},
	"fieldErrors": func(errs validation.Errors, field string) string {
		if errs == nil {
			return ""
		}
		texts := make([]string, 0, len(errs[field]))
		for _, code := range errs[field] {
			texts = append(texts, messageText(code))
		}
		return strings.Join(texts, " ")
	},
	"add": func(a, b int) int { return a + b },
}

func parseTemplates(fsys fs.FS) (*template.Template, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, templateGlob)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// templateRenderer is gin's HTMLRender. In development it re-reads the
// templates from disk whenever one is written.
type templateRenderer struct {
	mu        sync.RWMutex
	templates *template.Template
	watcher   *fsnotify.Watcher
}

func newTemplateRenderer() (*templateRenderer, error) {
	t, err := parseTemplates(templateFS)
	if err != nil {
		return nil, err
	}
	return &templateRenderer{templates: t}, nil
}

func (t *templateRenderer) Instance(name string, data interface{}) render.Render {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return render.HTML{Template: t.templates, Name: name, Data: data}
}

func (t *templateRenderer) reload() {
	fresh, err := parseTemplates(os.DirFS("."))
	if err != nil {
		log.Errorf("[templates] reload failed, keeping previous set: %v", err)
		return
	}
	t.mu.Lock()
	t.templates = fresh
	t.mu.Unlock()
	log.Infof("[templates] reloaded")
}

// Watch switches to the on-disk templates and reloads them on change.
func (t *templateRenderer) Watch() error {
	if _, err := os.Stat(templateDir); err != nil {
		return fmt.Errorf("template dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if err := w.Add(templateDir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", templateDir, err)
	}
	t.watcher = w
	t.reload()

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					log.Debugf("[templates] modified file: %s", event.Name)
					t.reload()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Errorf("[templates] watcher: %v", err)
			}
		}
	}()
	return nil
}

func (t *templateRenderer) Close() {
	if t.watcher != nil {
		t.watcher.Close()
	}
}
