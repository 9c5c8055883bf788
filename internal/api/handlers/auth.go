// auth.go - обработчики /auth: регистрация, вход, профиль.
package handlers

import (
	"net/http"
	"unicode/utf8"

	apierrors "github.com/smartlt/criclabs-assignment/internal/api/errors"
	"github.com/smartlt/criclabs-assignment/internal/api/middleware"
)

// minPasswordLength - минимальная длина пароля при регистрации (в символах).
const minPasswordLength = 6

// Register - POST /auth/register.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if req.Password != "" && utf8.RuneCountInString(req.Password) < minPasswordLength {
		apierrors.ValidationError(w, "password must be at least 6 characters")
		return
	}

	res, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

// Login - POST /auth/login.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

// Profile - GET /auth/profile. Возвращает пользователя из токена.
func (h *APIHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(user))
}
