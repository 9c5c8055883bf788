// Пакет model - доменные модели сервиса Data Mapping.
package model

import "time"

// User - учётная запись пользователя.
// Хранится в таблице users. PasswordHash никогда не сериализуется в ответы API.
type User struct {
	// ID - UUID пользователя
	ID string
	// Email - адрес электронной почты (уникален, регистр сохраняется как есть)
	Email string
	// Name - отображаемое имя
	Name string
	// PasswordHash - bcrypt-хэш пароля
	PasswordHash string
	// CreatedAt - время регистрации
	CreatedAt time.Time
	// UpdatedAt - время последнего изменения
	UpdatedAt time.Time
}

// PublicUser - публичная проекция пользователя (без хэша пароля).
type PublicUser struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public возвращает публичную проекцию пользователя.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
