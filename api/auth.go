package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/mockinterview/internal/apperr"
	"github.com/garnizeh/mockinterview/internal/models"
	"github.com/garnizeh/mockinterview/pkg/repository"
)

const minPasswordLen = 8

type AuthHandler struct {
	userRepo      repository.UserRepo
	profileRepo   repository.ProfileRepo
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(ur repository.UserRepo, pr repository.ProfileRepo, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{userRepo: ur, profileRepo: pr, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) issueToken(u *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": u.ID,
		"email":   u.Email,
		"exp":     time.Now().Add(h.tokenDuration).Unix(),
	})
	return token.SignedString([]byte(h.jwtSecret))
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, apperr.Validation("email and password are required"))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, r, apperr.Validation("invalid email"))
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, r, apperr.Validation("password must be at least 8 characters"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindInternal, "hash password", err))
		return
	}

	ctx := r.Context()
	u := &models.User{Email: email, PasswordHash: string(hash)}
	userID, err := h.userRepo.CreateUser(ctx, u)
	if errors.Is(err, repository.ErrDuplicate) {
		writeError(w, r, apperr.Conflict("email already registered"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Persistence("create user", err))
		return
	}
	u.ID = userID

	// The profile row is optional: Get falls back to an empty profile and
	// Update upserts, so a failure here must not fail a signup whose user
	// row already exists.
	if err := h.profileRepo.CreateProfile(ctx, &models.Profile{UserID: userID, DisplayName: strings.TrimSpace(req.DisplayName)}); err != nil {
		logger.Warn("create profile failed", slog.String("user_id", userID), slog.Any("err", err))
	}

	tokenStr, err := h.issueToken(u)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindInternal, "sign token", err))
		return
	}
	logger.Info("user signed up", slog.String("user_id", userID))
	writeJSON(w, authResponse{Token: tokenStr}, http.StatusCreated)
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, apperr.Validation("email and password are required"))
		return
	}

	u, err := h.userRepo.GetUserByEmail(r.Context(), email)
	if err != nil {
		writeError(w, r, apperr.Persistence("load user", err))
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, r, apperr.Unauthorized("credentials not found"))
		return
	}

	tokenStr, err := h.issueToken(u)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindInternal, "sign token", err))
		return
	}
	writeJSON(w, authResponse{Token: tokenStr}, http.StatusOK)
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// stateless JWT: the client drops the token
	writeJSON(w, map[string]string{"message": "signed out"}, http.StatusOK)
}
