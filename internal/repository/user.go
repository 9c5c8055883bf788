package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/smartlt/criclabs-assignment/internal/domain/model"
)

// UserRepository - доступ к таблице users.
type UserRepository interface {
	// Create сохраняет нового пользователя. ErrConflict - email уже занят.
	Create(ctx context.Context, u *model.User) error
	// GetByEmail возвращает пользователя вместе с хэшем пароля.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetPublicByID возвращает публичную проекцию (password_hash не выбирается).
	GetPublicByID(ctx context.Context, id string) (*model.PublicUser, error)
}

// userRepo - реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = model.NewID()
	}

	query := `
		INSERT INTO users (id, email, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь с email %s уже существует", ErrConflict, u.Email)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1`

	u := &model.User{}
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя по email: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetPublicByID(ctx context.Context, id string) (*model.PublicUser, error) {
	if !model.IsValidID(id) {
		return nil, ErrNotFound
	}

	query := `
		SELECT id, email, name, created_at, updated_at
		FROM users
		WHERE id = $1`

	u := &model.PublicUser{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}
