package auth

import (
	"net/http"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/scribehq/scribe/internal/cache"
	"github.com/scribehq/scribe/internal/config"
)

const oauthStateTTL = 10 * time.Minute

// GitHubOAuthProvider implements the OAuth web flow against GitHub. The
// resulting access token carries the repo scope and is what every content
// operation runs with.
type GitHubOAuthProvider struct {
	oauth    *oauth2.Config
	sessions *SessionStore

	// Outstanding CSRF states with their expiry.
	states *cache.Cache[string, time.Time]

	frontendURL   string
	secureCookies bool
}

func NewGitHubOAuthProvider(clientID, clientSecret string, cfg config.AuthConfig) *GitHubOAuthProvider {
	return &GitHubOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"repo", "read:user"},
			Endpoint:     githuboauth.Endpoint,
		},
		sessions:      NewSessionStore(time.Duration(cfg.SessionTTLHours) * time.Hour),
		states:        cache.NewCache[string, time.Time](),
		frontendURL:   cfg.FrontendURL,
		secureCookies: cfg.SecureCookies,
	}
}

func (p *GitHubOAuthProvider) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/login", p.handleLogin)
	mux.HandleFunc("GET /api/auth/callback", p.handleCallback)
	mux.HandleFunc("POST /api/auth/logout", p.handleLogout)
}

func (p *GitHubOAuthProvider) SessionToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(config.CookieSessionID)
	if err != nil {
		return "", ErrNotAuthenticated
	}
	token, ok := p.sessions.Token(cookie.Value)
	if !ok {
		return "", ErrNotAuthenticated
	}
	return token, nil
}

func (p *GitHubOAuthProvider) EnforceToken(w http.ResponseWriter, r *http.Request) (string, error) {
	token, err := p.SessionToken(r)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, config.ErrNotAuthenticated, http.StatusUnauthorized)
		return "", err
	}
	return token, nil
}

func (p *GitHubOAuthProvider) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := randomToken()
	p.states.Set(state, time.Now().Add(oauthStateTTL))
	p.cleanupStates()

	http.Redirect(w, r, p.oauth.AuthCodeURL(state), http.StatusFound)
}

func (p *GitHubOAuthProvider) handleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	expiry, ok := p.states.Get(state)
	if !ok || time.Now().After(expiry) {
		http.Error(w, config.ErrInvalidOAuthState, http.StatusBadRequest)
		return
	}
	p.states.Delete(state)

	code := r.URL.Query().Get("code")
	token, err := p.oauth.Exchange(r.Context(), code)
	if err != nil {
		authLogger.Error().Err(err).Msg("OAuth code exchange failed")
		http.Error(w, config.ErrTokenExchange, http.StatusInternalServerError)
		return
	}

	sessionID := p.sessions.Create(token.AccessToken)

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSessionID,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(p.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   p.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	http.Redirect(w, r, p.frontendURL, http.StatusFound)
}

func (p *GitHubOAuthProvider) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(config.CookieSessionID); err == nil {
		p.sessions.Delete(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.CookieSessionID,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (p *GitHubOAuthProvider) cleanupStates() {
	now := time.Now()
	for _, state := range p.states.Keys() {
		if expiry, ok := p.states.Get(state); ok && now.After(expiry) {
			p.states.Delete(state)
		}
	}
}
