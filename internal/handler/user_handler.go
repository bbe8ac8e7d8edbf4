package handler

import (
	"net/http"
	"strconv"

	"identity-service/internal/models"
	"identity-service/internal/service"
	"identity-service/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	responder
	userService *service.UserService
	auth        Authenticator
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService, auth Authenticator, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		responder:   responder{logger: logger},
		userService: userService,
		auth:        auth,
	}
}

// RegisterRoutes registers all user routes
func (h *UserHandler) RegisterRoutes(router chi.Router, authenticate func(http.Handler) http.Handler) {
	router.Route("/users", func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/me", h.GetProfile)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(h.auth, h.logger, models.RoleAdmin, models.RoleSuperAdmin))

			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/by-email", h.GetUserByEmail)
			r.Get("/{userID}", h.GetUserByID)
		})
	})
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	payload, _ := PayloadFromContext(r.Context())

	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	account, err := h.userService.CreateUser(r.Context(), models.Role(payload.Role), req)
	if err != nil {
		h.respondWithError(w, err, "Failed to create user")
		return
	}

	h.logger.Info("User created by admin",
		util.String("account_id", account.IDHex()),
		util.String("actor_id", payload.ID))

	h.respondWithJSON(w, http.StatusCreated, successResponse(account, "User created successfully"))
}

// GetProfile handles GET /users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	payload, _ := PayloadFromContext(r.Context())

	account, err := h.userService.GetProfile(r.Context(), payload.ID)
	if err != nil {
		h.respondWithError(w, err, "Failed to get profile")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(account, ""))
}

// GetUserByID handles GET /users/{userID}
func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	account, err := h.userService.GetUserByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondWithError(w, err, "Failed to get user")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(account, ""))
}

// GetUserByEmail handles GET /users/by-email?email=
func (h *UserHandler) GetUserByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.badRequest(w, "email query parameter is required")
		return
	}

	account, err := h.userService.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.respondWithError(w, err, "Failed to get user")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(account, ""))
}

// ListUsers handles GET /users?page=&limit=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(r, "page")
	if !ok {
		h.badRequest(w, "page must be a positive integer")
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		h.badRequest(w, "limit must be a positive integer")
		return
	}

	result, err := h.userService.ListUsers(r.Context(), page, limit)
	if err != nil {
		h.respondWithError(w, err, "Failed to list users")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(result, ""))
}

// queryInt reads an optional positive integer; absent yields 0.
func queryInt(r *http.Request, key string) (int64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
