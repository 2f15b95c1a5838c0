package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"adminpanel/internal/apperr"
	"adminpanel/internal/models"
	"adminpanel/internal/repositories"
	"adminpanel/pkg/validator"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo  repositories.UserRepository
	validator *validator.DefaultValidator
	logger    *slog.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, v *validator.DefaultValidator, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		validator: v,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates a user with the "user" role.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.createUser(ctx, name, email, password, models.RoleUser)
}

// EnsureAdmin makes sure an admin account exists for email, promoting an
// existing user when needed. Admins cannot be created any other way.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != models.RoleAdmin {
			if err := s.userRepo.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
				return nil, apperr.Storage("could not promote admin", err)
			}
			existing.Role = models.RoleAdmin
			s.logger.InfoContext(ctx, "user promoted to admin", slog.String("user_id", existing.ID))
		}
		return existing, nil
	case errors.Is(err, repositories.ErrUserNotFound):
		user, err := s.createUser(ctx, name, email, password, models.RoleAdmin)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "admin account created", slog.String("user_id", user.ID))
		return user, nil
	default:
		return nil, apperr.Storage("could not look up admin", err)
	}
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	user := &models.User{
		Name:     strings.TrimSpace(name),
		Email:    normalizeEmail(email),
		Password: password,
		Role:     role,
	}
	if err := s.validator.Validate(user); err != nil {
		return nil, apperr.Validation("invalid registration", validator.FieldErrors(err))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashedPassword)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return nil, apperr.Validation("email already registered", map[string]string{"email": "already registered"})
		}
		return nil, apperr.Storage("could not register user", err)
	}
	return user, nil
}

// Login checks the credentials and returns a signed token for the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", nil, apperr.Authentication("invalid credentials", nil)
		}
		return "", nil, apperr.Storage("could not look up user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, apperr.Authentication("invalid credentials", nil)
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// IssueToken signs an HS256 token carrying the user's identity and role.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    string(user.Role),
		"exp":     now.Add(s.tokenTTL).Unix(),
		"iat":     now.Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// Authenticate decodes a bearer token into a Principal.
func (s *AuthService) Authenticate(tokenString string) (*models.Principal, error) {
	if tokenString == "" {
		return nil, apperr.Authentication("missing token", nil)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, apperr.Authentication("invalid or expired token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperr.Authentication("invalid token", nil)
	}

	userID, _ := claims["user_id"].(string)
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if userID == "" {
		return nil, apperr.Authentication("invalid token claims", nil)
	}
	switch models.Role(role) {
	case models.RoleAdmin, models.RoleUser:
	default:
		return nil, apperr.Authentication("invalid token claims", nil)
	}

	return &models.Principal{UserID: userID, Email: email, Role: models.Role(role)}, nil
}

// Authorize reports whether principal satisfies required. Admins satisfy
// every role; a nil principal satisfies none.
func Authorize(principal *models.Principal, required models.Role) bool {
	return principal.HasRole(required)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
