package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rozeluxe01/101505276-lab-test1-chat-app/internal/store"
)

// Handler serves the /api/auth endpoints. The JSON shapes are a fixed
// contract with the browser client.
type Handler struct {
	users    *store.UserStore
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler builds the auth handler around the account store.
func NewHandler(users *store.UserStore, log *slog.Logger) *Handler {
	return &Handler{
		users:    users,
		validate: validator.New(),
		log:      log,
	}
}

// RegisterRoutes mounts signup and login under the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)
}

type signupRequest struct {
	Username  string `json:"username" validate:"required"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Password  string `json:"password" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup creates an account and responds 201 with the username.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.log.Error("password hash failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	if _, err := h.users.CreateUser(req.Username, req.Firstname, req.Lastname, hash); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			writeError(w, http.StatusBadRequest, "Username already exists")
			return
		}
		h.log.Error("account creation failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"username": req.Username,
	})
}

// Login verifies credentials and responds with the account's display fields.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	user, err := h.users.GetUser(req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.log.Error("account lookup failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	match, err := ComparePassword(req.Password, user.PasswordHash)
	if err != nil {
		h.log.Error("password comparison failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if !match {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"username":  user.Username,
		"firstname": user.Firstname,
		"lastname":  user.Lastname,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
