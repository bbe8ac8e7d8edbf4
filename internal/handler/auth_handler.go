package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"identity-service/internal/models"
	"identity-service/internal/service"
	"identity-service/internal/token"
	"identity-service/internal/util"
)

const otpExpiryLayout = "2006-01-02 15:04:05"

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	responder
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		responder:   responder{logger: logger},
		authService: authService,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// otpCode accepts the code as a JSON string or number.
type otpCode string

func (c *otpCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = otpCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("otp must be a string or number")
	}
	*c = otpCode(n.String())
	return nil
}

type verifyOTPRequest struct {
	Email string  `json:"email"`
	OTP   otpCode `json:"otp"`
}

type verifyOTPResponse struct {
	Message string           `json:"message"`
	Tokens  *token.TokenPair `json:"tokens"`
	ID      string           `json:"_id"`
	Email   string           `json:"email"`
	Role    models.Role      `json:"role"`
}

type registerResponse struct {
	Message       string `json:"message"`
	OTPExpiryTime string `json:"otpExpiryTime"`
}

type loginResponse struct {
	Login   *service.LoginResult `json:"login"`
	Message string               `json:"message"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Tokens  token.TokenPair `json:"tokens"`
	Message string          `json:"message"`
}

// RegisterRoutes mounts the auth routes; authenticate guards the routes
// that need a signed-in account.
func (h *AuthHandler) RegisterRoutes(router chi.Router, authenticate func(http.Handler) http.Handler) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/login", h.Login)
		r.Post("/resend-otp", h.ResendOTP)
		r.Post("/forget-password", h.ForgetPassword)
		r.Patch("/reset-password", h.ResetPassword)
		r.Post("/refresh-token", h.RefreshToken)

		r.With(authenticate).Patch("/change-password", h.ChangePassword)
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	res, err := h.authService.Register(r.Context(), req)
	if err != nil {
		h.respondWithError(w, err, "Error creating user.")
		return
	}

	h.respondWithJSON(w, http.StatusCreated, registerResponse{
		Message:       "Check your email. Please verify your OTP.",
		OTPExpiryTime: formatExpiry(res.OTPExpires),
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	res := h.authService.VerifyOTP(r.Context(), req.Email, string(req.OTP))
	if !res.Success {
		h.logger.Info("OTP verification failed", util.String("reason", string(res.Reason)))
		h.respondWithJSON(w, http.StatusBadRequest, MessageResponse{Message: res.Message})
		return
	}

	h.respondWithJSON(w, http.StatusOK, verifyOTPResponse{
		Message: "OTP verified successfully.",
		Tokens:  res.Tokens,
		ID:      res.AccountID,
		Email:   res.Email,
		Role:    res.Role,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	res, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithError(w, err, "Error during login.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, loginResponse{
		Login:   res,
		Message: http.StatusText(http.StatusOK),
	})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	if _, err := h.authService.ResendOTP(r.Context(), req.Email); err != nil {
		h.respondWithError(w, err, "Error while resending otp.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("OTP resended successfully to %s.", util.NormalizeEmail(req.Email)),
	})
}

func (h *AuthHandler) ForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	if _, err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondWithError(w, err, "Error while forgetting password.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{
		Message: "Please check your mail to reset your password.",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		h.respondWithError(w, err, "Error while resetting password.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Password reset successfully."})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	payload, ok := PayloadFromContext(r.Context())
	if !ok {
		h.respondWithError(w, service.ErrInvalidCredential, "")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badRequest(w, "Invalid request body")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), payload.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondWithError(w, err, "Error while changing password.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, MessageResponse{Message: "Password changed successfully."})
}

func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil || req.RefreshToken == "" {
		h.badRequest(w, "Refresh token is required")
		return
	}

	pair, err := h.authService.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondWithError(w, err, "Error while refreshing token.")
		return
	}

	h.respondWithJSON(w, http.StatusOK, refreshResponse{
		Tokens:  pair,
		Message: http.StatusText(http.StatusOK),
	})
}

func formatExpiry(t time.Time) string {
	return t.Local().Format(otpExpiryLayout)
}

