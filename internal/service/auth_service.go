package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-bulletin-api/internal/models"
	appConfig "github.com/noah-isme/campus-bulletin-api/pkg/config"
	appErrors "github.com/noah-isme/campus-bulletin-api/pkg/errors"
	"github.com/noah-isme/campus-bulletin-api/pkg/ratelimit"
)

// Login outcome labels.
const (
	LoginOutcomeSuccess = "success"
	LoginOutcomeInvalid = "invalid"
	LoginOutcomeLimited = "limited"
)

const developmentSecret = "campus-bulletin-dev-secret"

// ErrMissingSecret is returned when production starts without JWT_SECRET.
var ErrMissingSecret = errors.New("JWT_SECRET must be set in production")

// dummyHash is compared against when the user does not exist so both failure paths cost one bcrypt check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("campus-bulletin-dummy"), bcrypt.DefaultCost)

type authUserRepository interface {
	FindByRegID(ctx context.Context, regID string) (*models.User, error)
}

// AuthConfig defines configuration for token issuance.
type AuthConfig struct {
	Env    string
	Secret string
	Expiry time.Duration
	Issuer string
}

// AuthService verifies credentials and issues signed session tokens.
type AuthService struct {
	repo      authUserRepository
	limiter   ratelimit.Limiter
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService. It fails when no secret is configured in production.
func NewAuthService(repo authUserRepository, limiter ratelimit.Limiter, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthConfig) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiry <= 0 {
		config.Expiry = time.Hour
	}
	if config.Secret == "" {
		if config.Env == appConfig.EnvProduction {
			return nil, ErrMissingSecret
		}
		logger.Warn("JWT_SECRET not set, using development secret")
		config.Secret = developmentSecret
	}
	return &AuthService{
		repo:      repo,
		limiter:   limiter,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		config:    config,
		now:       time.Now,
	}, nil
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.RegID = strings.TrimSpace(req.RegID)
	if strings.TrimSpace(req.Password) == "" {
		req.Password = ""
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "regId and password are required")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "login:"+req.IP)
		if err != nil {
			s.logger.Warn("login rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			s.metrics.RecordLogin(LoginOutcomeLimited)
			return nil, appErrors.Clone(appErrors.ErrTooManyRequests, "too many login attempts, try again later")
		}
	}

	user, err := s.repo.FindByRegID(ctx, req.RegID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to fetch user")
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		s.metrics.RecordLogin(LoginOutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.RecordLogin(LoginOutcomeInvalid)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid credentials")
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	s.metrics.RecordLogin(LoginOutcomeSuccess)
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.config.Expiry.Seconds()),
		User: models.UserInfo{
			ID:    user.ID,
			RegID: user.RegID,
			Role:  user.Role,
		},
	}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	issuedAt := s.now().UTC()
	claims := models.JWTClaims{
		UserID: user.ID,
		RegID:  user.RegID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
}
