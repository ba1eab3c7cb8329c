// Package notify emails operators about new abuse reports.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"gopkg.in/gomail.v2"

	"profilehub/models"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	To       string
	SiteURL  string
	Attempts int
}

// sender is what gomail.Dialer offers; tests swap it out.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	cfg    Config
	dialer sender
	delay  func(attempt int) time.Duration
}

func NewMailer(cfg Config) *Mailer {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	return &Mailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		delay:  func(attempt int) time.Duration { return time.Duration(1<<attempt) * time.Second },
	}
}

// NotifyReport sends one message per report, retrying with 1s, 2s, 4s pauses.
func (m *Mailer) NotifyReport(ctx context.Context, r *models.Report) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.From)
	msg.SetHeader("To", m.cfg.To)
	msg.SetHeader("Subject", fmt.Sprintf("New report %s", r.ID))
	msg.SetBody("text/html", m.reportBody(r))

	for attempt := 0; attempt < m.cfg.Attempts; attempt++ {
		err := m.dialer.DialAndSend(msg)
		if err == nil {
			log.Infof("[notify] report %s sent to %s", r.ID, m.cfg.To)
			return nil
		}
		wait := m.delay(attempt)
		log.Warnf("[notify] attempt %d for report %s failed: %v, retrying in %v", attempt+1, r.ID, err, wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("report mail cancelled: %w", ctx.Err())
		}
	}
	return fmt.Errorf("report mail for %s failed after %d attempts", r.ID, m.cfg.Attempts)
}

func (m *Mailer) reportBody(r *models.Report) string {
	var b strings.Builder
	b.WriteString("<p>A new report was filed.</p><ul>")
	if r.ProfileID != nil {
		link := fmt.Sprintf("%s/view_profile?id=%s", strings.TrimRight(m.cfg.SiteURL, "/"), r.ProfileID)
		fmt.Fprintf(&b, `<li>Profile: <a href="%s">%s</a></li>`, html.EscapeString(link), r.ProfileID)
	}
	if r.UserID != nil {
		fmt.Fprintf(&b, "<li>User: %s</li>", r.UserID)
	} else {
		b.WriteString("<li>User: anonymous</li>")
	}
	for k, v := range r.Context {
		fmt.Fprintf(&b, "<li>%s: %s</li>", html.EscapeString(k), html.EscapeString(fmt.Sprint(v)))
	}
	b.WriteString("</ul><p>")
	b.WriteString(html.EscapeString(r.Text))
	b.WriteString("</p>")
	return b.String()
}
