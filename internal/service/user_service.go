package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
)

// DefaultUsers are provisioned by seeding.
var DefaultUsers = []struct {
	RegID string
	Role  models.UserRole
}{
	{RegID: "teacher1", Role: models.RoleTeacher},
	{RegID: "student1", Role: models.RoleStudent},
}

type userRepository interface {
	FindByRegID(ctx context.Context, regID string) (*models.User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	RegID    string          `json:"regId" validate:"required,max=64"`
	Role     models.UserRole `json:"role" validate:"required,oneof=teacher student"`
	Password string          `json:"password" validate:"required,min=6,max=128"`
}

// UserService manages credential records.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Create registers a new user.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	req.RegID = strings.TrimSpace(req.RegID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	if _, err := s.repo.FindByRegID(ctx, req.RegID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "regId already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check user")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		RegID:        req.RegID,
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to create user")
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("reg_id", user.RegID))
	return user, nil
}

// SetPassword replaces the password of the user identified by regID.
func (s *UserService) SetPassword(ctx context.Context, regID, password string) error {
	if strings.TrimSpace(password) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "password is required")
	}
	user, err := s.repo.FindByRegID(ctx, strings.TrimSpace(regID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to fetch user")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, time.Now().UTC()); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	return nil
}

// SeedDefaults creates the default accounts, resetting the password of any that already exist.
func (s *UserService) SeedDefaults(ctx context.Context, password string) error {
	for _, def := range DefaultUsers {
		err := s.SetPassword(ctx, def.RegID, password)
		if err == nil {
			s.logger.Info("default user password reset", zap.String("reg_id", def.RegID))
			continue
		}
		if !errors.Is(err, appErrors.ErrNotFound) {
			return err
		}
		if _, err := s.Create(ctx, CreateUserRequest{RegID: def.RegID, Role: def.Role, Password: password}); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDefaultUsers seeds the default accounts only when no user exists.
func (s *UserService) EnsureDefaultUsers(ctx context.Context, password string) (bool, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return false, appErrors.Internal(err, "failed to count users")
	}
	if count > 0 {
		return false, nil
	}
	if err := s.SeedDefaults(ctx, password); err != nil {
		return false, err
	}
	return true, nil
}
