// Package auth checks request credentials against the configured API token
// and user account.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Realm is sent in WWW-Authenticate challenges.
const Realm = "Image Host"

// Principal types.
const (
	TypeAPI   = "api"
	TypeBasic = "basic"
)

// Principal is an authenticated caller.
type Principal struct {
	ID   string
	Type string
}

// Credentials are the accepted secrets. Empty fields disable the matching
// scheme. PasswordHash, a bcrypt hash, takes precedence over Password.
type Credentials struct {
	APIToken     string
	Username     string
	Password     string
	PasswordHash string
}

// Authenticator resolves requests to principals.
type Authenticator struct {
	creds Credentials
}

// New returns an Authenticator for creds.
func New(creds Credentials) *Authenticator {
	return &Authenticator{creds: creds}
}

// Enabled reports whether any credential is configured.
func (a *Authenticator) Enabled() bool {
	return a.creds.APIToken != "" || a.creds.Username != ""
}

// Authenticate returns the principal of r, or nil when the request carries
// no valid credential.
func (a *Authenticator) Authenticate(r *http.Request) *Principal {
	scheme, credentials, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok {
		return nil
	}
	credentials = strings.TrimSpace(credentials)

	switch {
	case strings.EqualFold(scheme, "Bearer"):
		if a.creds.APIToken != "" && equal(credentials, a.creds.APIToken) {
			return &Principal{ID: "api-user", Type: TypeAPI}
		}
	case strings.EqualFold(scheme, "Basic"):
		raw, err := base64.StdEncoding.DecodeString(credentials)
		if err != nil {
			return nil
		}
		user, pass, ok := strings.Cut(string(raw), ":")
		if ok && a.checkUser(user, pass) {
			return &Principal{ID: user, Type: TypeBasic}
		}
	}
	return nil
}

func (a *Authenticator) checkUser(user, pass string) bool {
	if a.creds.Username == "" || !equal(user, a.creds.Username) {
		return false
	}
	if a.creds.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.creds.PasswordHash), []byte(pass)) == nil
	}
	return a.creds.Password != "" && equal(pass, a.creds.Password)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// HashPassword returns the bcrypt hash to use as PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by Middleware, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// Middleware resolves the caller and stores the principal, possibly nil,
// in the request context. It never rejects a request.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := a.Authenticate(r); p != nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// Challenge writes a 401 response with a WWW-Authenticate header.
func Challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="`+Realm+`"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}` + "\n"))
}

// Require rejects requests without a principal.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			Challenge(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
