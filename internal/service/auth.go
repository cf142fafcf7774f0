package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"taskmanager/internal/apperr"
	"taskmanager/internal/auth"
	"taskmanager/internal/models"
	"taskmanager/internal/policy"
	"taskmanager/internal/repository"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgEmailTaken         = "Email already registered"
	msgInvalidToken       = "Invalid token"
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type AuthResult struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type AuthService struct {
	users    repository.UserStore
	tokens   *auth.TokenIssuer
	validate *validator.Validate
	metrics  *metrics.Metrics

	// PasswordCost is the bcrypt cost for new hashes.
	PasswordCost int
	// dummyHash is compared against when the email is unknown so both login
	// failures cost the same.
	dummyHash []byte
}

func NewAuthService(users repository.UserStore, tokens *auth.TokenIssuer, validate *validator.Validate, m *metrics.Metrics) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &AuthService{
		users:        users,
		tokens:       tokens,
		validate:     validate,
		metrics:      m,
		PasswordCost: bcrypt.DefaultCost,
		dummyHash:    dummy,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a regular user. Admins are provisioned out of band.
func (s *AuthService) Register(ctx context.Context, in Credentials) (AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return AuthResult{}, validationError(err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.PasswordCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return AuthResult{}, apperr.Internal("Error hashing password", err)
	}

	user, err := s.users.Create(ctx, in.Email, string(hashedPassword), models.RoleUser)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		logger.SecurityLogger.Warn("Duplicate email", zap.String("email", in.Email))
		return AuthResult{}, apperr.Conflict(msgEmailTaken)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return AuthResult{}, apperr.Internal("Error creating user", err)
	}

	res, err := s.issue(user)
	if err != nil {
		return AuthResult{}, err
	}
	logger.AuditLogger.Info("User registered successfully", zap.Int("user_id", user.ID))
	return res, nil
}

// Login answers an unknown email and a wrong password identically.
func (s *AuthService) Login(ctx context.Context, in Credentials) (AuthResult, error) {
	in.Email = normalizeEmail(in.Email)
	if in.Email == "" || in.Password == "" {
		return AuthResult{}, apperr.Validation("email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
		logger.SecurityLogger.Warn("Login for unknown email", zap.String("email", in.Email))
		s.metrics.Login(false)
		return AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	case err != nil:
		logger.ErrorLogger.Error("Error fetching user", zap.Error(err))
		return AuthResult{}, apperr.Internal("Error fetching user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.Int("user_id", user.ID))
		s.metrics.Login(false)
		return AuthResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	res, err := s.issue(user)
	if err != nil {
		return AuthResult{}, err
	}
	s.metrics.Login(true)
	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID), zap.String("role", string(user.Role)))
	return res, nil
}

func (s *AuthService) issue(user models.User) (AuthResult, error) {
	token, exp, err := s.tokens.Issue(user.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return AuthResult{}, apperr.Internal("Error generating token", err)
	}
	return AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// Authenticate resolves a bearer token to the requester. The role comes from
// the stored user so a demoted or deleted account loses access immediately.
func (s *AuthService) Authenticate(ctx context.Context, token string) (policy.Requester, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return policy.Requester{}, apperr.Unauthorized(msgInvalidToken)
	}
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.SecurityLogger.Warn("Token for missing user", zap.Int("user_id", userID))
		return policy.Requester{}, apperr.Unauthorized(msgInvalidToken)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error resolving token user", zap.Error(err))
		return policy.Requester{}, apperr.Internal("Error resolving user", err)
	}
	return policy.Requester{ID: user.ID, Role: user.Role}, nil
}
