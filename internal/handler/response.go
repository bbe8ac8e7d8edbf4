package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"identity-service/internal/service"
	"identity-service/internal/util"
)

// Response is the envelope used by the user management endpoints and by
// every error reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// MessageResponse is the body of most auth replies.
type MessageResponse struct {
	Message string `json:"message"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

// responder holds the reply helpers shared by all handlers.
type responder struct {
	logger *zap.Logger
}

func (h responder) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError maps err to a status and a client-safe message.
// fallback is shown for errors without a public message.
func (h responder) respondWithError(w http.ResponseWriter, err error, fallback string) {
	statusCode := getStatusCode(err)
	message := publicMessage(err)
	if message == "" {
		message = fallback
	}

	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", statusCode),
			util.String("message", message),
		)
	} else {
		h.logger.Warn("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", statusCode),
			util.String("message", message),
		)
	}

	h.respondWithJSON(w, statusCode, Response{
		Success: false,
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

func (h responder) badRequest(w http.ResponseWriter, message string) {
	h.respondWithJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Error:   http.StatusText(http.StatusBadRequest),
		Message: message,
	})
}

// decodeJSON reads a single JSON object from the body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}

// getStatusCode determines the HTTP status for a service error.
func getStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrExpired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUnverified), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyExists), errors.Is(err, service.ErrOTPIssueInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
	case errors.Is(err, service.ErrAlreadyExists):
		return "Email already in use"
	case errors.Is(err, service.ErrNotFound):
		return "User not exist on this email"
	case errors.Is(err, service.ErrInvalidCredential):
		return "Invalid email or password"
	case errors.Is(err, service.ErrUnverified):
		return "You need to verify your account, if you want to login"
	case errors.Is(err, service.ErrPreconditionFailed):
		return "Please complete your verification step for resetting password"
	case errors.Is(err, service.ErrExpired):
		return "OTP has expired"
	case errors.Is(err, service.ErrForbidden):
		return "Permission denied"
	case errors.Is(err, service.ErrOTPIssueInProgress):
		return "An OTP is already being sent to this email, try again shortly"
	}
	return ""
}
