package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-registration/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. The unique index on email decides races between
// concurrent creates; the loser gets ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, name, email string) (*model.User, error) {
	user := &model.User{Name: name, Email: email}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (name, email)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		name, email,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if c, ok := constraintViolation(err, codeUniqueViolation); ok && c == constraintUserEmail {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// GetByEmail returns the user with the given email or ErrNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, name, email, created_at FROM users WHERE email = $1`, email)
}

// GetByID returns the user with the given id or ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, name, email, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
