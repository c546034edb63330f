// Package session issues and reads the signed cookie that binds a browser to a team.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

const issuer = "wrongsecrets-balancer"

// ErrNoSession indicates the request carries no valid session cookie.
var ErrNoSession = errors.New("no valid session")

// Manager signs session cookies with HS256. The token subject is the team namespace.
type Manager struct {
	name   string
	secret []byte
	secure bool
	now    func() time.Time
}

// New returns a Manager for the configured cookie.
func New(cfg config.Cookie) *Manager {
	return &Manager{
		name:   cfg.Name,
		secret: []byte(cfg.Secret),
		secure: cfg.Secure,
		now:    time.Now,
	}
}

// Issue sets a session cookie for teamName. The cookie has no expiry and lives for the
// browser session.
func (m *Manager) Issue(w http.ResponseWriter, teamName string) error {
	claims := jwtlib.RegisteredClaims{
		Issuer:   issuer,
		Subject:  team.Namespace(teamName),
		IssuedAt: jwtlib.NewNumericDate(m.now()),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	http.SetCookie(w, m.cookie(token, 0))
	return nil
}

// Team returns the team bound to the request's session cookie.
func (m *Manager) Team(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return "", ErrNoSession
	}

	var claims jwtlib.RegisteredClaims
	_, err = jwtlib.ParseWithClaims(cookie.Value, &claims, func(*jwtlib.Token) (any, error) {
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}), jwtlib.WithIssuer(issuer))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoSession, err)
	}

	teamName, ok := team.FromNamespace(claims.Subject)
	if !ok {
		return "", fmt.Errorf("%w: unexpected subject %q", ErrNoSession, claims.Subject)
	}
	return teamName, nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", -1))
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	}
}
