package auth

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/tahcohcat/lector-web/internal/logger"
)

const (
	sessionName      = "lector-session"
	keyPanelID       = "panel_id"
	keyAuthenticated = "authenticated"
)

// LoginPage renders the login form.
type LoginPage interface {
	Login(w io.Writer, errMsg string) error
}

// Auth owns the session cookie. The cookie carries the reader panel ID and,
// when a password is configured, the login flag.
type Auth struct {
	store        *sessions.CookieStore
	passwordHash string
	page         LoginPage
	logger       *logger.Log
}

func New(sessionSecret, passwordHash string, page LoginPage) *Auth {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Auth{
		store:        store,
		passwordHash: passwordHash,
		page:         page,
		logger:       logger.New().WithField("component", "auth"),
	}
}

// HashPassword produces the value for auth.password_hash.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Enabled reports whether a password protects the panel.
func (a *Auth) Enabled() bool {
	return a.passwordHash != ""
}

// PanelID returns the panel bound to this browser, minting one on first visit.
func (a *Auth) PanelID(w http.ResponseWriter, r *http.Request) (string, error) {
	session, _ := a.store.Get(r, sessionName)
	if id, ok := session.Values[keyPanelID].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	session.Values[keyPanelID] = id
	if err := session.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return id, nil
}

func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if err := a.page.Login(w, ""); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		password := r.FormValue("password")

		if !a.Enabled() || bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil {
			session, _ := a.store.Get(r, sessionName)
			session.Values[keyAuthenticated] = true
			if err := session.Save(r, w); err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		a.logger.Warn("rejected login attempt")
		w.WriteHeader(http.StatusUnauthorized)
		a.page.Login(w, "Invalid password")
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := a.store.Get(r, sessionName)
	session.Values[keyAuthenticated] = false
	session.Save(r, w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Middleware redirects browsers to /login when a password is configured and
// the session has not logged in. API calls get 401 instead.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		session, _ := a.store.Get(r, sessionName)
		if ok, _ := session.Values[keyAuthenticated].(bool); !ok {
			if r.Method == http.MethodGet && r.URL.Path == "/" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
