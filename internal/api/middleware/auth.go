// auth.go - JWT middleware: проверяет Bearer token и помещает
// публичный профиль пользователя в контекст запроса.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/smartlt/criclabs-assignment/internal/api/errors"
	"github.com/smartlt/criclabs-assignment/internal/domain/model"
	"github.com/smartlt/criclabs-assignment/internal/service"
)

// contextKey - тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUser - аутентифицированный пользователь (*model.PublicUser).
	ContextKeyUser contextKey = "auth_user"
	// contextKeyUserSlot - слот для передачи user_id в RequestLogger.
	contextKeyUserSlot contextKey = "auth_user_slot"
)

// TokenValidator проверяет токен и возвращает его владельца.
// nil, nil - токен валиден, но пользователь не существует.
// Реализуется service.AuthService.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.PublicUser, error)
}

// JWTAuth - middleware аутентификации по Bearer token.
type JWTAuth struct {
	validator TokenValidator
	logger    *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
func NewJWTAuth(validator TokenValidator, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		validator: validator,
		logger:    logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware возвращает HTTP middleware для JWT-аутентификации.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Missing Authorization header")
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Authorization header must be: Bearer <token>")
				return
			}
			token = strings.TrimSpace(token)
			if token == "" {
				apierrors.Unauthorized(w, "Empty bearer token")
				return
			}

			user, err := j.validator.ValidateToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, service.ErrUnauthorized) {
					j.logger.Debug("JWT валидация не пройдена",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr),
					)
					apierrors.Unauthorized(w, "Invalid or expired token")
					return
				}
				j.logger.Error("Ошибка проверки токена", slog.String("error", err.Error()))
				apierrors.InternalError(w, "Internal server error")
				return
			}
			if user == nil {
				apierrors.Unauthorized(w, "User not found")
				return
			}

			if slot, ok := r.Context().Value(contextKeyUserSlot).(*userSlot); ok {
				slot.userID = user.ID
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser возвращает контекст с аутентифицированным пользователем.
func WithUser(ctx context.Context, user *model.PublicUser) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// UserFromContext извлекает пользователя из контекста запроса.
// Возвращает nil, если запрос не прошёл через JWTAuth.
func UserFromContext(ctx context.Context) *model.PublicUser {
	user, _ := ctx.Value(ContextKeyUser).(*model.PublicUser)
	return user
}

// userSlot - изменяемая ячейка, через которую RequestLogger узнаёт user_id.
type userSlot struct {
	userID string
}

func withUserSlot(ctx context.Context, slot *userSlot) context.Context {
	return context.WithValue(ctx, contextKeyUserSlot, slot)
}
