package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payflow.io/payflow/internal/activities"
	"payflow.io/payflow/internal/domain"
	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// DirectoryRepository stores addresses, users and customers.
type DirectoryRepository struct {
	db *pgxpool.Pool
}

// NewDirectoryRepository creates a DirectoryRepository.
func NewDirectoryRepository(db *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// CreateAddress inserts an address unless one with the same id exists.
func (r *DirectoryRepository) CreateAddress(ctx context.Context, a *domain.Address) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO addresses (id, street, city, zip_code, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Street, a.City, a.ZipCode, a.Country, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert address %s: %w", a.ID, err)
	}
	return nil
}

// CreateUser inserts a user unless one with the same id exists. An email
// already held by another user yields apperrors.ErrAlreadyExists.
func (r *DirectoryRepository) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, address_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Name, u.Email, u.Phone, u.AddressID, u.CreatedAt)
	if err != nil {
		if code, _ := pgErrorCode(err); code == pgUniqueViolation {
			return fmt.Errorf("user email %s: %w", u.Email, apperrors.ErrAlreadyExists)
		}
		return fmt.Errorf("insert user %s: %w", u.ID, err)
	}
	return nil
}

// CreateCustomer inserts a customer unless one with the same id exists. A
// missing user yields apperrors.ErrNotFound.
func (r *DirectoryRepository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO customers (id, user_id, company_name, contact_name, email, phone, address_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $8)
		ON CONFLICT (id) DO NOTHING
	`, c.ID, c.UserID, c.CompanyName, c.ContactName, c.Email, c.Phone, c.AddressID, c.CreatedAt)
	if err != nil {
		if code, constraint := pgErrorCode(err); code == pgForeignKeyViolation && constraint == "customers_user_id_fkey" {
			return fmt.Errorf("user %s: %w", c.UserID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	return nil
}

// GetUser reads one user.
func (r *DirectoryRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, phone, COALESCE(address_id, ''), created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.AddressID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserContact returns the name and email of a user.
func (r *DirectoryRepository) GetUserContact(ctx context.Context, id string) (*activities.Contact, error) {
	u, err := r.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return &activities.Contact{Name: u.Name, Email: u.Email}, nil
}

// CustomerExists reports whether a customer row exists.
func (r *DirectoryRepository) CustomerExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check customer %s: %w", id, err)
	}
	return exists, nil
}
