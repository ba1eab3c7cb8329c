package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"profilehub/models"
)

type flakySender struct {
	failures int
	calls    int
	sent     []*gomail.Message
}

func (f *flakySender) DialAndSend(m ...*gomail.Message) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	f.sent = append(f.sent, m...)
	return nil
}

func testMailer(s sender) *Mailer {
	m := NewMailer(Config{Host: "smtp.local", Port: 587, From: "bot@example.com", To: "ops@example.com", SiteURL: "https://example.com/"})
	m.dialer = s
	m.delay = func(int) time.Duration { return time.Millisecond }
	return m
}

func TestNotifyReportRetries(t *testing.T) {
	s := &flakySender{failures: 2}
	m := testMailer(s)
	pid := uuid.New()
	r := &models.Report{ID: uuid.New(), ProfileID: &pid, Text: "<b>spam</b>"}

	require.NoError(t, m.NotifyReport(context.Background(), r))
	assert.Equal(t, 3, s.calls)
	require.Len(t, s.sent, 1)
	assert.Equal(t, []string{"ops@example.com"}, s.sent[0].GetHeader("To"))
}

func TestNotifyReportGivesUp(t *testing.T) {
	s := &flakySender{failures: 10}
	m := testMailer(s)
	err := m.NotifyReport(context.Background(), &models.Report{ID: uuid.New(), Text: "x"})
	assert.Error(t, err)
	assert.Equal(t, 3, s.calls)
}

func TestNotifyReportHonoursCancel(t *testing.T) {
	s := &flakySender{failures: 10}
	m := testMailer(s)
	m.delay = func(int) time.Duration { return time.Hour }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.NotifyReport(ctx, &models.Report{ID: uuid.New(), Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.calls)
}

func TestReportBodyEscapes(t *testing.T) {
	m := testMailer(&flakySender{})
	pid := uuid.New()
	body := m.reportBody(&models.Report{ProfileID: &pid, Text: "<script>x</script>"})
	assert.Contains(t, body, "https://example.com/view_profile?id="+pid.String())
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "anonymous")
}
