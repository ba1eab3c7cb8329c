// Package signin verifies Google identities, either from a Google Identity
// Services credential post or through the OAuth redirect flow.
package signin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// CSRFCookie is the double-submit cookie Google sets next to the form field
// of the same name.
const CSRFCookie = "g_csrf_token"

// Redirect message codes for rejected sign-ins.
const (
	CodeLostCredentials  = "lost_credentials"
	CodeLostCSRFToken    = "lost_g_csrf_token"
	CodeInvalidCSRFToken = "invalid_g_csrf_token"
	CodeInvalidUser      = "invalid_user"
)

var ErrNoEmail = errors.New("identity has no email")

// Person is the verified identity.
type Person struct {
	Email string
	Name  string
}

type Verifier interface {
	Verify(ctx context.Context, credential string) (Person, error)
}

// CheckCSRF returns the message code for a rejected callback, or "" when the
// credential is present and the form token matches the cookie.
func CheckCSRF(credential, formToken, cookieToken string) string {
	switch {
	case credential == "":
		return CodeLostCredentials
	case formToken == "":
		return CodeLostCSRFToken
	case subtle.ConstantTimeCompare([]byte(formToken), []byte(cookieToken)) != 1:
		return CodeInvalidCSRFToken
	}
	return ""
}

// GoogleVerifier checks ID tokens against Google's public keys.
type GoogleVerifier struct {
	validator *idtoken.Validator
	clientID  string
}

func NewGoogleVerifier(ctx context.Context, clientID string, opts ...option.ClientOption) (*GoogleVerifier, error) {
	v, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("idtoken validator: %w", err)
	}
	return &GoogleVerifier{validator: v, clientID: clientID}, nil
}

func (g *GoogleVerifier) Verify(ctx context.Context, credential string) (Person, error) {
	payload, err := g.validator.Validate(ctx, credential, g.clientID)
	if err != nil {
		return Person{}, fmt.Errorf("validate credential: %w", err)
	}
	return personFromClaims(payload.Claims)
}

func personFromClaims(claims map[string]interface{}) (Person, error) {
	email, _ := claims["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		return Person{}, ErrNoEmail
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return Person{Email: strings.ToLower(email), Name: name}, nil
}
