package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/portfolio-cms/apiserver/internal/auth"
	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/internal/services"
	"github.com/portfolio-cms/apiserver/types"
)

// UserService is the account behaviour the auth endpoints depend on.
type UserService interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	Register(ctx context.Context, username, password string) (types.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	UpdateCredentials(ctx context.Context, userID int, update services.CredentialsUpdate) (types.User, error)
}

// TokenVerifier resolves a session token to a user id.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

// AuthHandler provides registration, login and credential endpoints.
type AuthHandler struct {
	userService UserService
	verifier    TokenVerifier
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService UserService, verifier TokenVerifier) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		verifier:    verifier,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService UserService, verifier TokenVerifier) {
	handler := NewAuthHandler(userService, verifier)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Put("/admin", handler.UpdateCredentials)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces token authentication and injects the user id into
// the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return RequireAuth(h.verifier)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				writeError(w, http.StatusUnauthorized, "no token, authorization denied")
				return
			}

			token := bearerToken(header)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "invalid token format, authorization denied")
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger := logutil.GetOrDefault(r.Context())
				switch {
				case errors.Is(err, auth.ErrMissingSecret):
					logger.Error().Msg("token secret is not configured")
					writeError(w, http.StatusInternalServerError, "server configuration error")
				case errors.Is(err, auth.ErrMissingUserID):
					writeError(w, http.StatusUnauthorized, "invalid token: userId missing")
				case errors.Is(err, auth.ErrTokenExpired):
					writeError(w, http.StatusUnauthorized, "token has expired")
				default:
					logger.Debug().Err(err).Msg("token rejected")
					writeError(w, http.StatusUnauthorized, "token is malformed or invalid")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}

// Register creates a new user account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.userService.Register(r.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, services.ErrUserExists) {
			writeError(w, http.StatusBadRequest, "user already exists")
			return
		}
		writeServiceError(w, r, err, "user not found", "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "user registered"})
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "invalid credentials")
			return
		}
		writeServiceError(w, r, err, "user not found", "failed to authenticate")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// UpdateCredentials changes the authenticated user's username and/or password.
func (h *AuthHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id from token")
		return
	}

	var req CredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateCredentials(r.Context(), userID, services.CredentialsUpdate{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			writeError(w, http.StatusBadRequest, "username already taken")
			return
		}
		writeServiceError(w, r, err, "user not found", "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, UpdateCredentialsResponse{
		Message: "admin credentials updated",
		User:    user,
	})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "user not found", "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// CredentialsRequest is the body of register, login and credential updates.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UpdateCredentialsResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

// bearerToken strips an optional "Bearer" scheme from header.
func bearerToken(header string) string {
	scheme, rest, found := strings.Cut(header, " ")
	if strings.EqualFold(scheme, "Bearer") {
		if !found {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return header
}
