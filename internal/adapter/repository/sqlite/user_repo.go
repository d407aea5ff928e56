package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iho/goexpense/internal/domain"
)

type userRow struct {
	ID             string `db:"id"`
	Email          string `db:"email"`
	Name           string `db:"name"`
	Phone          string `db:"phone"`
	HashedPassword string `db:"hashed_password"`
	Active         bool   `db:"active"`
	CreatedAt      int64  `db:"created_at"`
	UpdatedAt      int64  `db:"updated_at"`
}

// UserRepository implements usecase.UserRepository.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	row := userRow{
		ID:             user.ID,
		Email:          user.Email,
		Name:           user.Name,
		Phone:          user.Phone,
		HashedPassword: user.HashedPassword,
		Active:         user.Active,
		CreatedAt:      user.CreatedAt.UnixNano(),
		UpdatedAt:      user.UpdatedAt.UnixNano(),
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO users (id, email, name, phone, hashed_password, active, created_at, updated_at)
		VALUES (:id, :email, :name, :phone, :hashed_password, :active, :created_at, :updated_at)
	`, row)
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}

	return classify(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `SELECT * FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, `SELECT * FROM users WHERE email = ?`, email)
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (*domain.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, classify(err)
	}

	return &domain.User{
		ID:             row.ID,
		Email:          row.Email,
		Name:           row.Name,
		Phone:          row.Phone,
		HashedPassword: row.HashedPassword,
		Active:         row.Active,
		CreatedAt:      time.Unix(0, row.CreatedAt).UTC(),
		UpdatedAt:      time.Unix(0, row.UpdatedAt).UTC(),
	}, nil
}
