// Пакет auth - выпуск и проверка собственных access token (JWT HS256).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken - токен не прошёл проверку (подпись, срок, issuer, формат).
var ErrInvalidToken = errors.New("невалидный токен")

// Claims - содержимое access token.
// sub - UUID пользователя, email - для удобства клиента.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenManager подписывает и проверяет токены общим секретом.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт TokenManager.
// secret - ключ HS256, ttl - время жизни токена,
// leeway - допустимое отклонение часов при проверке.
func NewTokenManager(secret, issuer string, ttl, leeway time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		leeway: leeway,
		now:    time.Now,
	}
}

// Issue выпускает токен для пользователя.
func (m *TokenManager) Issue(userID, email string) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Parse проверяет подпись, срок действия и issuer токена.
// Любая ошибка проверки оборачивает ErrInvalidToken.
func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(m.issuer),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: отсутствует sub", ErrInvalidToken)
	}
	return claims, nil
}
