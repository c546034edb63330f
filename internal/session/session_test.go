package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
)

func newManager() *Manager {
	return New(config.Cookie{Name: "balancer", Secret: "cookie-secret", Secure: true})
}

// roundTrip copies the cookies set on rec into a new request.
func roundTrip(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/balancer/teams/blue/wait-till-ready", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestIssueAndRead(t *testing.T) {
	m := newManager()
	rec := httptest.NewRecorder()

	require.NoError(t, m.Issue(rec, "blue"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "balancer", c.Name)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Zero(t, c.MaxAge)

	teamName, err := m.Team(roundTrip(t, rec))
	require.NoError(t, err)
	assert.Equal(t, "blue", teamName)
}

func TestTokenSubjectIsNamespace(t *testing.T) {
	m := newManager()
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, "blue"))

	var claims jwtlib.RegisteredClaims
	_, err := jwtlib.ParseWithClaims(rec.Result().Cookies()[0].Value, &claims, func(*jwtlib.Token) (any, error) {
		return []byte("cookie-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "t-blue", claims.Subject)
	assert.Nil(t, claims.ExpiresAt)
}

func TestTeam_Rejects(t *testing.T) {
	m := newManager()

	forged := func(secret string, method jwtlib.SigningMethod, subject string) string {
		token := jwtlib.NewWithClaims(method, jwtlib.RegisteredClaims{Issuer: issuer, Subject: subject})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)
		return signed
	}

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie"},
		{name: "garbage", cookie: &http.Cookie{Name: "balancer", Value: "not-a-token"}},
		{name: "wrong secret", cookie: &http.Cookie{Name: "balancer", Value: forged("other", jwtlib.SigningMethodHS256, "t-blue")}},
		{name: "wrong algorithm", cookie: &http.Cookie{Name: "balancer", Value: forged("cookie-secret", jwtlib.SigningMethodHS512, "t-blue")}},
		{name: "not a team namespace", cookie: &http.Cookie{Name: "balancer", Value: forged("cookie-secret", jwtlib.SigningMethodHS256, "kube-system")}},
		{name: "other cookie name", cookie: &http.Cookie{Name: "session", Value: forged("cookie-secret", jwtlib.SigningMethodHS256, "t-blue")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			_, err := m.Team(req)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestClear(t *testing.T) {
	m := newManager()
	rec := httptest.NewRecorder()

	m.Clear(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "balancer", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestIssuedAtUsesClock(t *testing.T) {
	m := newManager()
	fixed := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, "blue"))

	var claims jwtlib.RegisteredClaims
	_, err := jwtlib.ParseWithClaims(rec.Result().Cookies()[0].Value, &claims, func(*jwtlib.Token) (any, error) {
		return []byte("cookie-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, claims.IssuedAt.Equal(fixed))
}
