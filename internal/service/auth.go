// auth.go - регистрация, вход и проверка access token.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartlt/criclabs-assignment/internal/auth"
	"github.com/smartlt/criclabs-assignment/internal/domain/model"
	"github.com/smartlt/criclabs-assignment/internal/repository"
)

// Сообщения для клиента.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgUserExists         = "User with this email already exists"
)

// authAttemptsTotal - попытки регистрации и входа по результату.
var authAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dm_auth_attempts_total",
		Help: "Общее количество попыток регистрации и входа.",
	},
	[]string{"operation", "result"},
)

// AuthResult - ответ на успешную регистрацию или вход.
type AuthResult struct {
	AccessToken string
	User        *model.PublicUser
}

// AuthService - сервис аутентификации.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	cache      *UserCache
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
// cache может быть nil - тогда каждый запрос идёт в БД.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenManager,
	cache *UserCache,
	bcryptCost int,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		cache:      cache,
		bcryptCost: bcryptCost,
		logger:     logger.With(slog.String("component", "auth_service")),
	}
}

// Register создаёт учётную запись и сразу выпускает токен.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	result, err := s.register(ctx, email, password, strings.TrimSpace(name))
	authAttemptsTotal.WithLabelValues("register", attemptResult(err)).Inc()
	return result, err
}

func (s *AuthService) register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errorf(ErrValidation, "password is required")
	}
	if name == "" {
		return nil, errorf(ErrValidation, "name is required")
	}

	// Предварительная проверка; гонку закрывает уникальный индекс
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, errorf(ErrConflict, msgUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, errorf(ErrValidation, "password must be at most 72 bytes")
		}
		return nil, err
	}

	user := &model.User{Email: email, Name: name, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, errorf(ErrConflict, msgUserExists)
		}
		return nil, err
	}

	s.logger.Info("Пользователь зарегистрирован", slog.String("user_id", user.ID))
	return s.issue(user)
}

// Login проверяет email и пароль. Неизвестный email и неверный пароль
// дают одинаковую ошибку.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	result, err := s.login(ctx, email, password)
	authAttemptsTotal.WithLabelValues("login", attemptResult(err)).Inc()
	return result, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, errorf(ErrValidation, "email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorf(ErrUnauthorized, msgInvalidCredentials)
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("Неверный пароль", slog.String("user_id", user.ID))
		return nil, errorf(ErrUnauthorized, msgInvalidCredentials)
	}

	return s.issue(user)
}

// ValidateToken проверяет токен и возвращает профиль его владельца.
// Возвращает nil, nil, если пользователь токена больше не существует.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*model.PublicUser, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errorf(ErrUnauthorized, "Invalid or expired token")
	}

	user, err := s.Profile(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// Profile возвращает публичный профиль пользователя.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.PublicUser, error) {
	key := model.CanonicalID(userID)
	if s.cache != nil {
		if user, ok := s.cache.Get(key); ok {
			return user, nil
		}
	}

	user, err := s.users.GetPublicByID(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorf(ErrNotFound, "User not found")
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(key, user)
	}
	return user, nil
}

// issue выпускает токен для пользователя.
func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthResult{AccessToken: token, User: user.Public()}, nil
}

// validateEmail проверяет синтаксис адреса: допускается только голый адрес
// без отображаемого имени.
func validateEmail(email string) error {
	if email == "" {
		return errorf(ErrValidation, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errorf(ErrValidation, "email must be a valid email address")
	}
	return nil
}

// attemptResult - значение лейбла result для dm_auth_attempts_total.
func attemptResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
