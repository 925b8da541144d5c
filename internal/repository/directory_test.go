package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow.io/payflow/internal/domain"
	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/testutil"
)

func seedUser(t *testing.T, repo *DirectoryRepository, id, email string) {
	t.Helper()
	ctx := context.Background()
	addr := &domain.Address{
		ID:          "addr-" + id,
		AddressData: domain.AddressData{Street: "1 Main St", City: "Springfield", ZipCode: "12345", Country: "US"},
		CreatedAt:   created,
	}
	require.NoError(t, repo.CreateAddress(ctx, addr))
	require.NoError(t, repo.CreateUser(ctx, &domain.User{
		ID: id, Name: "Ada Lovelace", Email: email, AddressID: addr.ID, CreatedAt: created,
	}))
}

func TestDirectoryRepository_UserRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewDirectoryRepository(testutil.OpenMigratedPool(t, "repo_dir_user"))
	seedUser(t, repo, "u1", "ada@example.com")

	u, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "addr-u1", u.AddressID)

	contact, err := repo.GetUserContact(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", contact.Name)

	_, err = repo.GetUserContact(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDirectoryRepository_ReplayedUserIsNoOp(t *testing.T) {
	repo := NewDirectoryRepository(testutil.OpenMigratedPool(t, "repo_dir_replay"))
	seedUser(t, repo, "u1", "ada@example.com")
	seedUser(t, repo, "u1", "ada@example.com")
}

func TestDirectoryRepository_DuplicateEmail(t *testing.T) {
	repo := NewDirectoryRepository(testutil.OpenMigratedPool(t, "repo_dir_email"))
	seedUser(t, repo, "u1", "ada@example.com")

	err := repo.CreateUser(context.Background(), &domain.User{
		ID: "u2", Name: "Other", Email: "ada@example.com", CreatedAt: created,
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestDirectoryRepository_Customers(t *testing.T) {
	ctx := context.Background()
	repo := NewDirectoryRepository(testutil.OpenMigratedPool(t, "repo_dir_customer"))
	seedUser(t, repo, "u1", "ada@example.com")

	c := &domain.Customer{
		ID: "c1", UserID: "u1", CompanyName: "Ada Company", ContactName: "Ada Lovelace",
		Email: "ada@example.com", AddressID: "addr-u1", CreatedAt: created,
	}
	require.NoError(t, repo.CreateCustomer(ctx, c))
	require.NoError(t, repo.CreateCustomer(ctx, c))

	ok, err := repo.CustomerExists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CustomerExists(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectoryRepository_CustomerWithoutUser(t *testing.T) {
	repo := NewDirectoryRepository(testutil.OpenMigratedPool(t, "repo_dir_orphan"))

	err := repo.CreateCustomer(context.Background(), &domain.Customer{
		ID: "c1", UserID: "ghost", CompanyName: "Ghost Co", ContactName: "Nobody",
		Email: "ghost@example.com", CreatedAt: created,
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
