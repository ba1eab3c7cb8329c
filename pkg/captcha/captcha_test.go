package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/pkg/apperr"
)

func fakeSiteverify(t *testing.T, body string, status int) *Recaptcha {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	rc := NewRecaptcha("s3cret")
	rc.Endpoint = srv.URL
	return rc
}

func TestRecaptchaVerify(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		score   float64
		wantErr bool
	}{
		{"good score", `{"success":true,"score":0.9,"action":"submit"}`, 200, 0.9, false},
		{"missing score", `{"success":true}`, 200, 0, false},
		{"unsuccessful", `{"success":false,"error-codes":["invalid-input-response"]}`, 200, 0, false},
		{"bad status", `oops`, 502, 0, true},
		{"bad json", `{`, 200, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score, err := fakeSiteverify(t, tc.body, tc.status).Verify(context.Background(), "tok")
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.score, score, 1e-9)
		})
	}
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	low := fakeSiteverify(t, `{"success":true,"score":0.2}`, 200)
	assert.True(t, apperr.Is(Check(ctx, low, "tok", 0.5), apperr.KindBotDetection))

	high := fakeSiteverify(t, `{"success":true,"score":0.7}`, 200)
	assert.NoError(t, Check(ctx, high, "tok", 0.5))

	down := fakeSiteverify(t, ``, 500)
	assert.True(t, apperr.Is(Check(ctx, down, "tok", 0.5), apperr.KindServerError))

	assert.NoError(t, Check(ctx, Disabled{}, "", 0.5))
}
