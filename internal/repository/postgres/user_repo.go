package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malekai-gauntlet/gymdesk/internal/models"
	"github.com/malekai-gauntlet/gymdesk/internal/repository"
)

type UserRepo struct{ db *pgxpool.Pool }

func NewUserRepo(db *pgxpool.Pool) repository.UserRepository { return &UserRepo{db: db} }

// Create stores a user (bcrypt hash in password_h).
func (r *UserRepo) Create(ctx context.Context, email, firstName, lastName, role, passwordHash string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (email, first_name, last_name, role, password_h)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, email, first_name, last_name, role, created_at, updated_at`,
		email, firstName, lastName, role, passwordHash).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, remote("create user", err)
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, string, error) {
	var u models.User
	var ph string
	err := r.db.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, role, password_h, created_at, updated_at
		FROM users WHERE email=$1`, email).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &ph, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", remote("get user by email", err)
	}
	return &u, ph, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, role, created_at, updated_at
		FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, remote("get user by id", err)
	}
	return &u, nil
}
