package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}}
}

func (m *mockUserRepo) FindByRegID(_ context.Context, regID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[regID]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *user
	m.users[user.RegID] = &copied
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return sql.ErrNoRows
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{RegID: "t9", Role: models.RoleTeacher, Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))

	_, err = svc.Create(context.Background(), CreateUserRequest{RegID: "t9", Role: models.RoleTeacher, Password: "secret1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), CreateUserRequest{RegID: "x", Role: "admin", Password: "secret1"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEnsureDefaultUsersOnlySeedsEmptyStore(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	seeded, err := svc.EnsureDefaultUsers(context.Background(), "pass123")
	require.NoError(t, err)
	assert.True(t, seeded)
	require.Len(t, repo.users, 2)
	assert.Equal(t, models.RoleTeacher, repo.users["teacher1"].Role)
	assert.Equal(t, models.RoleStudent, repo.users["student1"].Role)

	seeded, err = svc.EnsureDefaultUsers(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, seeded)
}

func TestSeedDefaultsResetsExistingPasswords(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)
	require.NoError(t, svc.SeedDefaults(context.Background(), "pass123"))
	require.NoError(t, svc.SeedDefaults(context.Background(), "changed1"))

	assert.Len(t, repo.users, 2)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["teacher1"].PasswordHash), []byte("changed1")))
}

func TestSetPasswordUnknownUser(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)
	err := svc.SetPassword(context.Background(), "ghost", "pw1234")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.True(t, errors.Is(svc.SetPassword(context.Background(), "ghost", " "), appErrors.ErrValidation))
}
