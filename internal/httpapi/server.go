// Package httpapi exposes the auth service as a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mstelder/authd/internal/auth"
	"github.com/mstelder/authd/internal/email"
	"github.com/mstelder/authd/internal/errorz"
	"github.com/mstelder/authd/internal/krypto"
)

const sessionCookieName = "session_id"

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger      *slog.Logger
	AuthService *auth.Service
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	// SecureCookie controls the Secure flag on the session cookie.
	// Only disable this in local development.
	SecureCookie bool
}

type Server struct {
	deps *ServerDeps
	cfg  ServerConfig
	mux  *http.ServeMux
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	s := &Server{
		deps: deps,
		cfg:  cfg,
		mux:  http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleWelcome)
	s.mux.HandleFunc("POST /users", s.handleRegister)
	s.mux.HandleFunc("POST /sessions", s.handleLogin)
	s.mux.HandleFunc("DELETE /sessions", s.handleLogout)
	s.mux.HandleFunc("GET /profile", s.handleProfile)
	s.mux.HandleFunc("POST /reset_password", s.handleResetRequest)
	s.mux.HandleFunc("PUT /reset_password", s.handleResetPassword)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Bienvenue"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.handleError(w, r, err)
		return
	}

	credentials, err := parseCredentials(in.Email, in.Password)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	user, err := s.deps.AuthService.RegisterUser(r.Context(), credentials)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUser) {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": "email already registered"})
			return
		}
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"email":   string(user.Email),
		"message": "user created",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	credentials, err := s.loginCredentials(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if !s.deps.AuthService.ValidLogin(r.Context(), credentials) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	token, err := s.deps.AuthService.CreateSession(r.Context(), credentials.Email)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if token == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	s.writeJSON(w, http.StatusOK, map[string]string{
		"email":   string(credentials.Email),
		"message": "logged in",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessionUser(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if user == nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if err := s.deps.AuthService.DestroySession(r.Context(), user.ID); err != nil {
		s.handleError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Path:   "/",
		MaxAge: -1,
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.sessionUser(r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if user == nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"email": string(user.Email)})
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.handleError(w, r, err)
		return
	}

	addr, err := email.ParseAddress(in.Email)
	if err != nil {
		s.handleError(w, r, errorz.InvalidInput{errorz.Keyed{Key: "email", Err: err}})
		return
	}

	token, err := s.deps.AuthService.RequestPasswordReset(r.Context(), addr)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownEmail) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"email":       string(addr),
		"reset_token": token.String(),
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email       string `json:"email"`
		ResetToken  string `json:"reset_token"`
		NewPassword string `json:"new_password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		s.handleError(w, r, err)
		return
	}

	var invalid errorz.InvalidInput
	if in.Email == "" {
		invalid = append(invalid, errorz.Keyed{Key: "email", Err: errors.New("missing")})
	}
	if in.ResetToken == "" {
		invalid = append(invalid, errorz.Keyed{Key: "reset_token", Err: errors.New("missing")})
	}
	if in.NewPassword == "" {
		invalid = append(invalid, errorz.Keyed{Key: "new_password", Err: errors.New("missing")})
	}
	if len(invalid) > 0 {
		s.handleError(w, r, invalid)
		return
	}

	token, err := krypto.ParseToken(in.ResetToken)
	if err != nil {
		// A token that can't even be parsed certainly belongs to nobody.
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	password, err := auth.ParsePassword(in.NewPassword)
	if err != nil {
		s.handleError(w, r, errorz.InvalidInput{errorz.Keyed{Key: "new_password", Err: err}})
		return
	}

	err = s.deps.AuthService.ResetPassword(r.Context(), auth.NewPassword{
		Token:    &token,
		Password: password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"email":   in.Email,
		"message": "Password updated",
	})
}

// loginCredentials reads credentials from the Authorization header if one
// is provided, otherwise from the JSON request body.
func (s *Server) loginCredentials(r *http.Request) (auth.Credentials, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		identifier, secret, ok := ParseBasicAuth(header)
		if !ok {
			return auth.Credentials{}, errorz.InvalidInput{errors.New("malformed authorization header")}
		}
		return parseCredentials(identifier, string(secret.SecretValue()))
	}

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		return auth.Credentials{}, err
	}

	return parseCredentials(in.Email, in.Password)
}

func (s *Server) sessionUser(r *http.Request) (*auth.User, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}

	token, err := krypto.ParseToken(cookie.Value)
	if err != nil {
		return nil, nil
	}

	return s.deps.AuthService.UserBySession(r.Context(), &token)
}

func parseCredentials(rawEmail, rawPassword string) (auth.Credentials, error) {
	var invalid errorz.InvalidInput

	addr, err := email.ParseAddress(rawEmail)
	if err != nil {
		invalid = append(invalid, errorz.Keyed{Key: "email", Err: err})
	}

	password, err := auth.ParsePassword(rawPassword)
	if err != nil {
		invalid = append(invalid, errorz.Keyed{Key: "password", Err: err})
	}

	if len(invalid) > 0 {
		return auth.Credentials{}, invalid
	}

	return auth.Credentials{
		Email:    addr,
		Password: password,
	}, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errorz.InvalidInput{err}
	}

	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errorz.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.deps.Logger.Error("internal server error", "url", r.URL.String(), "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
