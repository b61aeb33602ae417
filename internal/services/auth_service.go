package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/yukikurage/favor-exchange-api/internal/auth"
	"github.com/yukikurage/favor-exchange-api/internal/constants"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/notify"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrFailedToHashPassword = errors.New("failed to hash password")
	ErrFailedToCreateUser   = errors.New("failed to create user")
	ErrFailedToIssueToken   = errors.New("failed to issue token")
)

// AuthService handles authentication related business logic.
type AuthService struct {
	gw         *repository.Gateway
	tokens     *auth.TokenManager
	revocation *auth.RevocationStore
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(gw *repository.Gateway, tokens *auth.TokenManager, revocation *auth.RevocationStore, dispatcher *notify.Dispatcher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		gw:         gw,
		tokens:     tokens,
		revocation: revocation,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// SignupInput represents the required information to create a new user.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Session is an issued access token.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// Signup creates a new user along with an empty profile.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		return nil, ErrDisplayNameRequired
	}
	if len(input.Password) < constants.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	var user *models.User
	err = s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Users.FindByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		user = &models.User{
			Email:        email,
			PasswordHash: string(hashedPassword),
			Role:         models.RoleMember,
			Status:       models.UserStatusActive,
		}
		profile := models.NewProfile(0, displayName)

		if err := repos.Users.CreateWithProfile(ctx, user, &profile); err != nil {
			switch {
			case errors.Is(err, gorm.ErrDuplicatedKey):
				return ErrEmailTaken
			case errors.Is(err, repository.ErrCreateUser), errors.Is(err, repository.ErrCreateProfile):
				return fmt.Errorf("%w: %w", ErrFailedToCreateUser, err)
			default:
				return fmt.Errorf("failed to complete signup: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.Uint64("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var user *models.User
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		user, err = repos.Users.FindByEmail(ctx, email)
		if err != nil {
			return notFound(err, ErrInvalidCredentials, "user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, ErrAccountInactive
	}

	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToIssueToken, err)
	}

	now := s.now()
	if err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		return repos.Users.TouchLogin(ctx, user.ID, now)
	}); err != nil {
		s.logger.Warn("failed to record login", zap.Uint64("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	return &Session{User: user, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Authenticate verifies an access token and rejects revoked ones.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(token, auth.PurposeAccess)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.revocation.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("revocation lookup failed", zap.Error(err))
		return nil, ErrRevocationUnavailable
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Logout revokes tokenID until it would have expired.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if err := s.revocation.Revoke(ctx, tokenID, expiresAt); err != nil {
		s.logger.Error("failed to revoke token", zap.Error(err))
		return ErrRevocationUnavailable
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var user *models.User
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		user, err = repos.Users.FindByID(ctx, id)
		if err != nil {
			return notFound(err, ErrUserNotFound, "user")
		}
		return nil
	})
	return user, err
}

// RequestPasswordReset mails a reset token to the account owner. Unknown
// addresses succeed silently so callers cannot probe for accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var user *models.User
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		user, err = repos.Users.FindByEmail(ctx, email)
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if !user.IsActive() {
		return nil
	}

	token, _, err := s.tokens.IssuePasswordReset(user.ID, constants.PasswordResetTTL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToIssueToken, err)
	}

	s.dispatcher.Dispatch(ctx, notify.Message{
		Event:   notify.EventPasswordReset,
		To:      user.Email,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Use this token within %s to choose a new password:\n\n%s\n",
			constants.PasswordResetTTL, token),
	})
	return nil
}

// ResetPassword sets a new password using a reset token. Each token works once
// when revocation is available.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Parse(token, auth.PurposePasswordReset)
	if err != nil {
		return ErrInvalidResetToken
	}
	if revoked, err := s.revocation.IsRevoked(ctx, claims.ID); err != nil {
		s.logger.Error("revocation lookup failed", zap.Error(err))
		return ErrRevocationUnavailable
	} else if revoked {
		return ErrInvalidResetToken
	}
	if len(newPassword) < constants.MinPasswordLength {
		return ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrFailedToHashPassword
	}

	err = s.gw.Do(ctx, func(repos *repository.Repositories) error {
		if err := repos.Users.UpdatePassword(ctx, claims.UserID, string(hashedPassword)); err != nil {
			return notFound(err, ErrInvalidResetToken, "user")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.revocation.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("failed to revoke used reset token", zap.Error(err))
	}
	s.logger.Info("password reset", zap.Uint64("user_id", claims.UserID))
	return nil
}

var validate = validator.New()

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
