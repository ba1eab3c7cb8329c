// Package captcha scores form submissions with reCAPTCHA v3.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"profilehub/pkg/apperr"
)

const VerifyURL = "https://www.google.com/recaptcha/api/siteverify"

type Verifier interface {
	Verify(ctx context.Context, token string) (float64, error)
}

type Recaptcha struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

func NewRecaptcha(secret string) *Recaptcha {
	return &Recaptcha{
		Secret:   secret,
		Endpoint: VerifyURL,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"`
	Action     string   `json:"action"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify returns the token's score. An unsuccessful check or a response
// without a score yields 0 and no error.
func (r *Recaptcha) Verify(ctx context.Context, token string) (float64, error) {
	form := url.Values{"secret": {r.Secret}, "response": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("siteverify: unexpected status %d", resp.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode siteverify: %w", err)
	}
	if !out.Success {
		log.Debugf("[captcha] rejected: %v", out.ErrorCodes)
		return 0, nil
	}
	if out.Score == nil {
		return 0, nil
	}
	return *out.Score, nil
}

// Disabled accepts everything. Used when no secret is configured.
type Disabled struct{}

func (Disabled) Verify(context.Context, string) (float64, error) { return 1.0, nil }

// Check classifies the token: BotDetection below min, ServerError when the
// verifier cannot be reached.
func Check(ctx context.Context, v Verifier, token string, min float64) error {
	score, err := v.Verify(ctx, token)
	if err != nil {
		return apperr.Server(err)
	}
	if score < min {
		log.Warnf("[captcha] score %.2f below %.2f", score, min)
		return apperr.BotDetection()
	}
	return nil
}
