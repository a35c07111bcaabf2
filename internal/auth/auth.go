// Package auth issues and verifies the bearer tokens that identify API callers.
//
// Tokens are HS256-signed JWTs. The subject claim becomes the audit actor
// for every mutation made during the request.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrJamesThe3rd/spendtrack/internal/audit"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySubject = errors.New("token subject is empty")
)

type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Enabled reports whether a signing secret is configured.
func (i *Issuer) Enabled() bool {
	return len(i.secret) > 0
}

// Issue signs a token for subject that expires after the configured TTL.
func (i *Issuer) Issue(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := i.now()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Parse verifies token and returns its subject. Only HS256 is accepted.
func (i *Issuer) Parse(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", ErrEmptySubject
	}

	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token and records the
// token subject as the audit actor. With no secret configured every request
// passes through under the default actor.
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearer(r)
		if err != nil {
			unauthorized(w, err)
			return
		}

		subject, err := i.Parse(token)
		if err != nil {
			unauthorized(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(audit.WithActor(r.Context(), subject)))
	})
}

func bearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}

	return strings.TrimSpace(token), nil
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="spendtrack"`)
	http.Error(w, err.Error(), http.StatusUnauthorized)
}
