package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubPage struct {
	lastErr string
}

func (s *stubPage) Login(w io.Writer, errMsg string) error {
	s.lastErr = errMsg
	_, err := io.WriteString(w, "login:"+errMsg)
	return err
}

func newProtected(t *testing.T, password string) (*Auth, *stubPage) {
	t.Helper()
	hash := ""
	if password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(b)
	}
	page := &stubPage{}
	return New("test-secret", hash, page), page
}

func withCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestPanelIDIsStickyPerBrowser(t *testing.T) {
	a, _ := newProtected(t, "")

	rec := httptest.NewRecorder()
	first, err := a.PanelID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, first)

	req := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	second, err := a.PanelID(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := a.PanelID(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestMiddlewareOpenWithoutPassword(t *testing.T) {
	a, _ := newProtected(t, "")
	assert.False(t, a.Enabled())

	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareRequiresLogin(t *testing.T) {
	a, page := newProtected(t, "s3cret")
	require.True(t, a.Enabled())

	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/play", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// wrong password
	form := url.Values{"password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	a.LoginHandler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", page.lastErr)

	// right password
	form = url.Values{"password": {"s3cret"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	login := httptest.NewRecorder()
	a.LoginHandler(login, req)
	require.Equal(t, http.StatusFound, login.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), login))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	// logout revokes access
	logout := httptest.NewRecorder()
	a.LogoutHandler(logout, withCookies(httptest.NewRequest(http.MethodGet, "/logout", nil), login))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), logout))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLoginPageRendered(t *testing.T) {
	a, _ := newProtected(t, "pw")
	rec := httptest.NewRecorder()
	a.LoginHandler(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "login:", rec.Body.String())
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}
